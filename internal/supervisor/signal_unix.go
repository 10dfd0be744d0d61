//go:build unix

// Grounded on original_source/yakut/cmd/orchestrate/_child.py: POSIX
// uses SIGINT/SIGTERM/SIGKILL and signals the whole process group by
// placing the child in its own group (setpgid) and signaling -pgid.
// golang.org/x/sys/unix supplies the Kill/signal constants; os/exec's
// SysProcAttr is still the syscall package's type, which os/exec wires
// into the actual fork/exec call.
package supervisor

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

func preparePlatform(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalTree sends sig to the process group rooted at pid. Setpgid at
// launch made pid its own process group leader, so -pid addresses the
// whole subtree in one syscall (spec.md §4.D rationale: "processes
// launched through a shell can spawn grandchildren that must be reaped").
func signalTree(pid int, sig unix.Signal) error {
	return unix.Kill(-pid, sig)
}

func interruptSignal() unix.Signal { return unix.SIGINT }
func terminateSignal() unix.Signal { return unix.SIGTERM }
func killSignal() unix.Signal      { return unix.SIGKILL }

func killedBySignalExitCode(sig unix.Signal) int {
	return -int(sig)
}
