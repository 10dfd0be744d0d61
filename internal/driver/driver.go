// Package driver wires the top-level signal handling and exit-code
// convention around a single orchestrate invocation (spec.md §4.G,
// component G).
//
// Grounded on original_source/yakut/cmd/orchestrate/__init__.py's
// orchestrate command: SIGINT/SIGTERM/SIGHUP flip a liveness gate
// rather than terminating the process directly, and the final exit
// code is the composition's own non-zero result if any, otherwise the
// negated number of the signal that stopped it (0 if none).
package driver

import (
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/cyphal-tools/orchestrate/internal/composition"
	"github.com/cyphal-tools/orchestrate/internal/envtable"
	"github.com/cyphal-tools/orchestrate/internal/gate"
)

// terminationSignals is SIGHUP in addition to SIGINT/SIGTERM on every
// platform this runs on; grounded on the original's
// "if not sys.platform.startswith('win')" SIGHUP registration, which Go
// makes unconditional since os/signal.Notify ignores signals the
// platform doesn't support.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

// Run locates and executes file, blocking until the composition
// completes or a termination signal arrives. It returns the process
// exit code to report: the composition's own non-zero result, or the
// negated signal number that caused a graceful stop (0 if the
// composition ran to completion without being signaled).
func Run(file string, searchDirs []string, logger *slog.Logger, stdout, stderr *os.File) int {
	if logger == nil {
		logger = slog.Default()
	}

	var caughtSignal atomic.Int32
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, terminationSignals...)
	defer signal.Stop(sigCh)

	g := gate.New()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case s := <-sigCh:
				num := signalNumber(s)
				caughtSignal.Store(int32(num))
				logger.Info("received signal, stopping", "signal", s)
				g.Stop()
			case <-done:
				return
			}
		}
	}()

	ctx := &composition.Context{SearchDirs: searchDirs, Stdout: stdout, Stderr: stderr, Logger: logger}
	res := composition.RunFile(ctx, file, envtable.New(), g.Of(), nil, searchDirs)
	close(done)

	if res != 0 {
		return res
	}
	return -int(caughtSignal.Load())
}

func signalNumber(s os.Signal) int {
	if sig, ok := s.(syscall.Signal); ok {
		return int(sig)
	}
	return 0
}
