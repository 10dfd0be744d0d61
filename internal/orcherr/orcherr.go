// Package orcherr defines the orchestrator's error taxonomy (spec §7).
// Kinds are not Go error types to switch on individually; they carry an
// exit code so the CLI driver can report the code a caller expects
// (spec §6 Exit codes) without re-deriving it from error text.
package orcherr

import "fmt"

// Kind classifies where an error originated.
type Kind int

const (
	// KindInternal is an unexpected failure inside the orchestrator itself.
	KindInternal Kind = iota
	// KindSchema is a syntax/schema error in an orchestration file (exit 125).
	KindSchema
	// KindFile is a file-not-found/unreadable error for an external reference (exit 124).
	KindFile
)

// ExitCode returns the reserved exit code for a Kind, per spec §6.
func (k Kind) ExitCode() int {
	switch k {
	case KindSchema:
		return 125
	case KindFile:
		return 124
	default:
		return 1
	}
}

// Error wraps an underlying cause with a Kind and an optional path/context.
type Error struct {
	Kind    Kind
	Context string // e.g. the file path or directive name involved
	Err     error
}

func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %v", e.Context, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Schema wraps err as a SchemaError (§4.B, §7).
func Schema(context string, err error) *Error {
	return &Error{Kind: KindSchema, Context: context, Err: err}
}

// Schemaf builds a SchemaError from a format string.
func Schemaf(context string, format string, args ...any) *Error {
	return &Error{Kind: KindSchema, Context: context, Err: fmt.Errorf(format, args...)}
}

// File wraps err as a FileError (§4.C, §7).
func File(context string, err error) *Error {
	return &Error{Kind: KindFile, Context: context, Err: err}
}

// Internal wraps err as an InternalError (§7).
func Internal(context string, err error) *Error {
	return &Error{Kind: KindInternal, Context: context, Err: err}
}

// ExitCodeFor inspects err and returns the reserved exit code if it (or
// something it wraps) is an *Error; otherwise returns fallback.
func ExitCodeFor(err error, fallback int) int {
	var oe *Error
	if asError(err, &oe) {
		return oe.Kind.ExitCode()
	}
	return fallback
}

func asError(err error, target **Error) bool {
	for err != nil {
		if oe, ok := err.(*Error); ok {
			*target = oe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
