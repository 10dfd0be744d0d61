// Package script runs a schema.Script: a sequence of shell statements,
// nested compositions, and join barriers, concurrently fanned out and
// reduced to a single first-failure-wins exit code (spec.md §4.E,
// component E).
//
// Grounded on original_source/yakut/cmd/orchestrate/_executor.py's
// exec_script/exec_shell: a ThreadPoolExecutor with one worker per
// statement becomes a goroutine per statement here; join barriers wait
// on everything launched so far via a shared sync.WaitGroup snapshot.
package script

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cyphal-tools/orchestrate/internal/envtable"
	"github.com/cyphal-tools/orchestrate/internal/gate"
	"github.com/cyphal-tools/orchestrate/internal/schema"
	"github.com/cyphal-tools/orchestrate/internal/supervisor"
)

// PollInterval is how often a running shell statement's liveness and
// exit status are checked (spec.md §4.E; matches the original's default
// Context.poll_interval of 0.05s).
const PollInterval = 50 * time.Millisecond

// CompositionRunner executes a nested composition and returns its exit
// code. A nested Composition carries its own fully-resolved env from
// schema load time, so no env is threaded through here. internal/composition
// implements this; script depends only on the interface to avoid an
// import cycle (composition runs scripts, scripts run nested compositions).
type CompositionRunner func(comp *schema.Composition, g gate.Func, stack Stack) int

// Stack is an immutable call-stack path used purely for log context,
// mirroring the original's Stack helper.
type Stack []string

// Push returns a new Stack with node appended.
func (s Stack) Push(node string) Stack {
	out := make(Stack, len(s), len(s)+1)
	copy(out, s)
	return append(out, node)
}

func (s Stack) String() string {
	out := ""
	for i, n := range s {
		if i > 0 {
			out += " "
		}
		out += n
	}
	return out
}

// Run executes scr against env, returning the exit code of the first
// statement to fail (0 if every statement, including nested
// compositions, succeeded). An empty script always succeeds (spec.md
// §4.E "a Script with no statements is a no-op that always succeeds").
//
// Statements run concurrently; a Join statement blocks until every
// statement launched before it has completed, mirroring the original's
// wait(pending) call. Once any statement fails, the derived inner
// liveness gate reports false: no further statements are launched, and
// already-running shell statements and nested compositions, which all
// watch that gate, are asked to stop.
func Run(scr schema.Script, env *envtable.Table, killTimeout float64, g gate.Func, runNested CompositionRunner, logger *slog.Logger, stdout, stderr io.Writer, stack Stack) int {
	if len(scr) == 0 {
		return 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	var mu sync.Mutex
	var firstFailure int
	failed := false

	accept := func(result int) {
		mu.Lock()
		defer mu.Unlock()
		if result != 0 && !failed {
			failed = true
			firstFailure = result
		}
	}
	innerGate := func() bool {
		mu.Lock()
		f := failed
		mu.Unlock()
		return !f && g()
	}

	var wg sync.WaitGroup
	for index, stmt := range scr {
		stmtStack := stack.Push(fmt.Sprintf("%d", index))
		if !innerGate() {
			break
		}
		switch stmt.Kind {
		case schema.KindShell:
			wg.Add(1)
			go func(cmd string) {
				defer wg.Done()
				accept(runShell(cmd, env.Copy(), killTimeout, innerGate, logger, stdout, stderr, stmtStack))
			}(stmt.Shell)
		case schema.KindNested:
			wg.Add(1)
			go func(comp *schema.Composition) {
				defer wg.Done()
				accept(runNested(comp, innerGate, stmtStack))
			}(stmt.Nested)
		case schema.KindJoin:
			logger.Debug("joining pending statements", "stack", stmtStack.String())
			wg.Wait()
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if failed {
		return firstFailure
	}
	return 0
}

// runShell launches cmd, polls it until it exits or the gate closes, and
// if the gate closes first, stops it with half the kill timeout as the
// escalation window and the full kill timeout as the give-up window
// (spec.md §4.E, grounded on exec_shell's ch.stop(kill_timeout*0.5, kill_timeout)).
func runShell(cmd string, env *envtable.Table, killTimeout float64, g gate.Func, logger *slog.Logger, stdout, stderr io.Writer, stack Stack) int {
	started := time.Now()
	child, err := supervisor.Start(cmd, env, stdout, stderr, logger)
	if err != nil {
		logger.Error("failed to start shell statement", "cmd", cmd, "err", err, "stack", stack.String())
		return 1
	}
	defer child.Kill()

	prefix := fmt.Sprintf("PID=%08d ", child.PID())
	logger.Info(prefix+"executing", "cmd", cmd, "stack", stack.String(), "env_vars", len(env.Names()))

	var code int
	var exited bool
	for g() && !exited {
		code, exited = child.Poll(PollInterval)
	}
	if !exited {
		logger.Warn(prefix+"stopping", "elapsed", time.Since(started))
		half := time.Duration(killTimeout * 0.5 * float64(time.Second))
		full := time.Duration(killTimeout * float64(time.Second))
		child.Stop(half, full)
	}
	for !exited {
		code, exited = child.Poll(PollInterval)
	}

	logger.Info(prefix+"exit status", "code", code, "elapsed", time.Since(started))
	return code
}
