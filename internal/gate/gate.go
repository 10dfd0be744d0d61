// Package gate implements the "liveness gate" primitive used throughout
// spec.md: a boolean predicate consulted frequently by runners and
// supervisors; once false, running work winds down cooperatively.
package gate

import "sync/atomic"

// Gate is a concurrency-safe boolean flag that only ever transitions
// from true (alive) to false (stopped), never back.
type Gate struct {
	alive atomic.Bool
}

// New returns a Gate starting alive.
func New() *Gate {
	g := &Gate{}
	g.alive.Store(true)
	return g
}

// Alive reports whether the gate is still open.
func (g *Gate) Alive() bool {
	return g.alive.Load()
}

// Stop flips the gate closed. Idempotent.
func (g *Gate) Stop() {
	g.alive.Store(false)
}

// Func adapts a Gate to a plain liveness predicate, the shape the
// script/composition/supervisor runners accept so that a hardwired
// "always true" finalizer gate (spec.md §4.F step 5) needs no Gate
// instance at all.
type Func func() bool

// AlwaysAlive is the finalizer's hardwired gate (spec.md §4.F step 5):
// finalizers are never cancelled by the outer liveness gate.
func AlwaysAlive() bool { return true }

// Of returns g's Alive method as a Func.
func (g *Gate) Of() Func { return g.Alive }
