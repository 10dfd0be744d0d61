//go:build !unix

// Fallback for platforms without POSIX process groups or real signals
// (spec.md §4.D edge case: "systems without a true kill use the
// platform's strongest termination signal twice"). No process-group
// fan-out is available, so only the direct child is reached; escalation
// collapses interrupt and terminate onto os.Kill.
package supervisor

import (
	"os"
	"os/exec"
	"syscall"
)

func preparePlatform(cmd *exec.Cmd) {}

func signalTree(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(sig)
}

func interruptSignal() syscall.Signal { return syscall.SIGKILL }
func terminateSignal() syscall.Signal { return syscall.SIGKILL }
func killSignal() syscall.Signal      { return syscall.SIGKILL }

func killedBySignalExitCode(sig syscall.Signal) int {
	return -int(sig)
}
