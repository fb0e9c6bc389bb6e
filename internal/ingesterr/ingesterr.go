// Package ingesterr defines the error taxonomy shared by every component of
// the ingest engine. Each kind wraps an underlying cause with fmt.Errorf's
// %w so callers can still errors.Is/As through to the original failure.
package ingesterr

import "fmt"

// Kind identifies which of the six error categories a failure belongs to.
type Kind string

const (
	// IoError covers "cannot open source", short reads, and remote transport
	// failures. The engine never retries I/O; it surfaces the Adapter's
	// failure unchanged.
	IoError Kind = "IoError"
	// SchemaError covers a branch absent from the tree, or an inclusion
	// pattern matching zero branches.
	SchemaError Kind = "SchemaError"
	// SpecsError covers a sidecar parse failure or a missing required field.
	SpecsError Kind = "SpecsError"
	// RangeError covers vectorizing a key with unknown min/max (schema drift).
	RangeError Kind = "RangeError"
	// ExhaustedError covers Next() called after end-of-stream.
	ExhaustedError Kind = "ExhaustedError"
	// ConfigError covers an invalid option, e.g. batch_size <= 0.
	ConfigError Kind = "ConfigError"
)

// Error is a typed, wrapped failure naming its Kind and the offending
// key/path, per spec.md §7 ("emit a single diagnostic line naming the kind
// and offending key/path").
type Error struct {
	Kind   Kind
	Target string // offending key or path
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Target)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind against target, wrapping err
// (which may be nil).
func New(kind Kind, target string, err error) *Error {
	return &Error{Kind: kind, Target: target, Err: err}
}

// Is reports whether target is an *Error of the same Kind, so
// `errors.Is(err, ingesterr.New(ingesterr.IoError, "", nil))` matches any
// IoError regardless of target or cause (simpler: compare err.(*Error).Kind).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
