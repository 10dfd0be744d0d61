// Package composition runs a schema.Composition: resolve external
// imports, then predicate, main, and finalizer scripts in sequence
// (spec.md §4.F, component F).
//
// Grounded on original_source/yakut/cmd/orchestrate/_executor.py's
// exec_file/exec_composition: externals are loaded and merged into the
// environment before scripts run; if the predicate succeeds, the
// finalizer always runs once (hardwired liveness gate) and its exit
// code only reports if main otherwise succeeded.
package composition

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cyphal-tools/orchestrate/internal/envtable"
	"github.com/cyphal-tools/orchestrate/internal/gate"
	"github.com/cyphal-tools/orchestrate/internal/locate"
	"github.com/cyphal-tools/orchestrate/internal/orcherr"
	"github.com/cyphal-tools/orchestrate/internal/schema"
	"github.com/cyphal-tools/orchestrate/internal/script"
)

// Context carries the file search path and I/O shared across every
// composition and script invocation in one orchestrate run (spec.md §4.C/§6).
type Context struct {
	SearchDirs []string
	Stdout     io.Writer
	Stderr     io.Writer
	Logger     *slog.Logger
}

// RunFile locates file on dirs, loads it, and runs it, merging any env
// it exports back into env (spec.md §4.F "exec_file": "the provided
// values are inherited by the executed composition; afterwards they
// are updated with the variables defined by the composition, which
// take precedence over the supplied variables").
//
// dirs is searched in priority order for file when it is relative;
// ctx.SearchDirs is not consulted. Run builds dirs for external= imports
// with the directory of the referencing file first, ahead of the
// directories inherited from its caller (supplemented from the original's locate(),
// which resolves external= references relative to the referencing
// file before falling back to the configured lookup paths — see
// SPEC_FULL.md "Supplemented features").
func RunFile(ctx *Context, file string, env *envtable.Table, g gate.Func, stack script.Stack, dirs []string) int {
	logger := ctx.logger()
	path, err := locate.Find(file, dirs)
	if err != nil {
		logger.Warn("cannot locate file", "file", file, "paths", dirs)
		return orcherr.KindFile.ExitCode()
	}

	source, readErr := os.ReadFile(path)
	if readErr != nil {
		logger.Warn("cannot read file", "path", path, "err", readErr)
		return orcherr.KindFile.ExitCode()
	}

	comp, loadErr := schema.Load(source, env)
	if loadErr != nil {
		logger.Warn("cannot load file", "path", path, "err", loadErr)
		return orcherr.ExitCodeFor(loadErr, 1)
	}

	// Export the composition's own directive-defined env back to the
	// caller; its entries take precedence over what was supplied.
	// Grounded on exec_file's `inout_env.update(comp.env)`, which runs
	// unconditionally before exec_composition is even invoked — the
	// original does not wait for (or gate on) the callee's exit code, and
	// does not propagate variables the callee's own external= imports add
	// to its *local* running env, only the callee's own directives.
	env.Merge(comp.Env)

	childStack := stack.Push(fmt.Sprintf("%q", file))
	logger.Debug("loaded composition", "stack", childStack.String())
	childDirs := append([]string{filepath.Dir(path)}, dirs...)
	return Run(ctx, comp, g, childStack, childDirs)
}

// Run executes comp's externals, predicate, main, and finalizer scripts
// in that order (spec.md §4.F):
//
//   - If any external import fails, its exit code is returned immediately.
//   - If the predicate script fails, the composition is skipped: main and
//     the finalizer do not run, and 0 is returned (spec.md §4.F step 3,
//     "the predicate is the only place where a failure is deliberately
//     swallowed").
//   - Otherwise the finalizer always runs once, with a hardwired
//     always-alive gate (spec.md §4.F step 5), and its own failure only
//     surfaces if main otherwise reported success.
func Run(ctx *Context, comp *schema.Composition, g gate.Func, stack script.Stack, dirs []string) int {
	logger := ctx.logger()
	env := comp.Env.Copy()

	for _, ext := range comp.Ext {
		if res := RunFile(ctx, ext.File, env, g, stack.Push("external"), dirs); res != 0 {
			return res
		}
	}

	runNested := func(nested *schema.Composition, inner gate.Func, nestedStack script.Stack) int {
		return Run(ctx, nested, inner, nestedStack, dirs)
	}

	runScript := func(node string, scr schema.Script, g gate.Func) int {
		stmtStack := stack.Push(node)
		started := time.Now()
		res := script.Run(scr, env.Copy(), comp.KillTimeout, g, runNested, logger, ctx.Stdout, ctx.Stderr, stmtStack)
		logger.Debug("script exit status", "stack", stmtStack.String(), "code", res, "elapsed", time.Since(started))
		return res
	}

	if res := runScript("?", comp.Predicate, g); res != 0 {
		// A non-zero predicate means "not applicable": the composition is
		// skipped outright, and neither main nor the finalizer runs.
		logger.Debug("predicate failed, skipping composition", "stack", stack.String(), "code", res)
		return 0
	}

	res := runScript("$", comp.Main, g)
	// The composition's exit code is that of the first failed statement in
	// main; the finalizer's failure only surfaces if main succeeded.
	resFin := runScript(".", comp.Fin, gate.AlwaysAlive)
	if res != 0 {
		return res
	}
	return resFin
}

func (c *Context) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}
