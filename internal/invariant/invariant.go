// Package invariant provides precondition, postcondition, and invariant
// assertions for programmer errors. A failing assertion panics: these
// guard contracts between internal components, never user input.
package invariant

import "fmt"

// NotNil panics if v is nil. Use for required pointer/interface arguments.
func NotNil(v any, name string) {
	if v == nil {
		panic(fmt.Sprintf("invariant: %s must not be nil", name))
	}
}

// Precondition panics with a formatted message if cond is false.
func Precondition(cond bool, format string, args ...any) {
	if !cond {
		panic("precondition violated: " + fmt.Sprintf(format, args...))
	}
}

// Postcondition panics with a formatted message if cond is false.
func Postcondition(cond bool, format string, args ...any) {
	if !cond {
		panic("postcondition violated: " + fmt.Sprintf(format, args...))
	}
}

// Invariant panics with a formatted message if cond is false.
func Invariant(cond bool, format string, args ...any) {
	if !cond {
		panic("invariant violated: " + fmt.Sprintf(format, args...))
	}
}
