// Package supervisor implements the child-process state machine of
// spec.md §4.D (component D): launch, non-blocking poll, and
// escalating-signal shutdown across a whole process subtree.
//
// Grounded on original_source/yakut/cmd/orchestrate/_child.py (class
// Child): the same Starting/Running/Stopping/Exited lifecycle, the same
// stop(escalate_after, give_up_after) two-stage escalation with a final
// kill that disowns the child and is logged at error level, and the
// same "detach stdin, pipe stdout/stderr, new process group" launch
// recipe — translated from subprocess.Popen(shell=True) to os/exec.
package supervisor

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/cyphal-tools/orchestrate/internal/envtable"
	"github.com/cyphal-tools/orchestrate/internal/invariant"
)

// State is a Child's lifecycle stage (spec.md §4.D).
type State int

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateExited
)

// Child supervises one shell-launched process and its descendant
// subtree. All exported methods are safe for concurrent use: the
// poller, the Stop escalation timers, and Kill may all touch the same
// state (spec.md §5 "Shared resources").
type Child struct {
	mu       sync.Mutex
	cmd      *exec.Cmd
	state    State
	exitCode int
	done     chan struct{}
	stopping bool
	timers   []*time.Timer

	logger *slog.Logger
}

// Start launches command through the OS shell with env overlaid onto
// the inherited process environment (spec.md §4.D "Starting"). stdout
// and stderr receive the child's output; stdin is detached.
func Start(command string, env *envtable.Table, stdout, stderr io.Writer, logger *slog.Logger) (*Child, error) {
	invariant.Precondition(command != "", "command must not be empty")
	if logger == nil {
		logger = slog.Default()
	}

	cmd := shellCommand(command)
	cmd.Env = mergeEnviron(os.Environ(), env)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Stdin = nil // nil => reads from the null device (os/exec contract)
	preparePlatform(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %q: %w", command, err)
	}

	c := &Child{
		cmd:    cmd,
		state:  StateRunning,
		done:   make(chan struct{}),
		logger: logger,
	}
	go c.wait()
	return c, nil
}

// PID returns the child's process ID. Stable even after the child exits.
func (c *Child) PID() int {
	return c.cmd.Process.Pid
}

func (c *Child) wait() {
	err := c.cmd.Wait()
	code := exitCodeFromError(c.cmd, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateExited {
		c.exitCode = code
		c.state = StateExited
		c.stopTimersLocked()
		close(c.done)
	}
}

// Poll blocks for at most timeout waiting for the child to exit.
// Returns (exitCode, true) if the child has exited (idempotent on
// repeated calls), or (0, false) if it is still running (spec.md §4.D
// "Running").
func (c *Child) Poll(timeout time.Duration) (int, bool) {
	c.mu.Lock()
	if c.state == StateExited {
		code := c.exitCode
		c.mu.Unlock()
		return code, true
	}
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
		c.mu.Lock()
		code := c.exitCode
		c.mu.Unlock()
		return code, true
	case <-time.After(timeout):
		return 0, false
	}
}

// Stop begins escalating-signal shutdown (spec.md §4.D "Stopping"):
// interrupt immediately, terminate after escalateAfter, kill (and give
// up) after giveUpAfter. Idempotent: a second call while already
// stopping or after exit has no effect. giveUpAfter is clamped to be
// at least escalateAfter.
func (c *Child) Stop(escalateAfter, giveUpAfter time.Duration) {
	if giveUpAfter < escalateAfter {
		giveUpAfter = escalateAfter
	}

	c.mu.Lock()
	if c.state == StateExited || c.stopping {
		c.mu.Unlock()
		return
	}
	c.stopping = true
	c.state = StateStopping
	pid := c.cmd.Process.Pid
	c.mu.Unlock()

	c.logger.Debug("stopping child", "pid", pid, "escalate_after", escalateAfter, "give_up_after", giveUpAfter)
	_ = signalTree(pid, interruptSignal())

	terminateTimer := time.AfterFunc(escalateAfter, func() {
		if c.isExited() {
			return
		}
		c.logger.Warn("child still alive, escalating to terminate", "pid", pid)
		_ = signalTree(pid, terminateSignal())
	})

	killTimer := time.AfterFunc(giveUpAfter, func() {
		c.kill(pid, true)
	})

	c.mu.Lock()
	c.timers = append(c.timers, terminateTimer, killTimer)
	c.mu.Unlock()
}

// Kill is the abnormal-termination entry point (spec.md §4.D): it
// immediately sends kill to the subtree and marks the child exited with
// a killed-by-signal exit code, used when the Script runner aborts due
// to an internal error.
func (c *Child) Kill() {
	c.mu.Lock()
	if c.state == StateExited {
		c.mu.Unlock()
		return
	}
	pid := c.cmd.Process.Pid
	c.mu.Unlock()
	c.kill(pid, false)
}

func (c *Child) kill(pid int, giveUpLog bool) {
	if giveUpLog {
		c.logger.Error("child still alive after give-up timeout, killing and disowning", "pid", pid)
	}
	_ = signalTree(pid, killSignal())
	c.forceExit(killedBySignalExitCode(killSignal()))
}

// isExited reports whether the child has already exited.
func (c *Child) isExited() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateExited
}

// forceExit marks the child exited with code if it hasn't already
// exited on its own (used when escalation gives up and kills it).
func (c *Child) forceExit(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateExited {
		return
	}
	c.exitCode = code
	c.state = StateExited
	c.stopTimersLocked()
	close(c.done)
}

func (c *Child) stopTimersLocked() {
	for _, t := range c.timers {
		t.Stop()
	}
}

// exitCodeFromError extracts a POSIX-style exit code from exec.Cmd.Wait's error.
func exitCodeFromError(cmd *exec.Cmd, err error) int {
	if err == nil {
		return 0
	}
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	return 1
}

func mergeEnviron(base []string, overlay *envtable.Table) []string {
	out := append([]string(nil), base...)
	for _, name := range overlay.Names() {
		v, _ := overlay.Get(name)
		out = append(out, name+"="+string(v))
	}
	return out
}

// shellCommand builds the exec.Cmd that runs command through the OS
// shell, mirroring subprocess.Popen(cmd, shell=True) (spec.md §4.D).
func shellCommand(command string) *exec.Cmd {
	return exec.Command(shellPath(), "-c", command)
}

func shellPath() string {
	if sh := os.Getenv("SHELL"); sh != "" {
		return sh
	}
	return "/bin/sh"
}
