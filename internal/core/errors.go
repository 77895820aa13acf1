package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a scenario (or included sub-scenario) cannot
// be resolved to a file.
var ErrNotFound = errors.New("scenario not found")

// InputError marks a caller defect: bad function name, bad auth method,
// missing mandatory scenario name. These abort immediately with no partial
// result.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// NewInputError builds an InputError with fmt.Sprintf semantics.
func NewInputError(format string, args ...any) *InputError {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// ParseError marks a malformed scenario or filter definition file. A single
// bad line fails the whole load; bad lines are never skipped silently.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// EvalError marks a failed condition evaluation: unknown predicate, arity
// mismatch, malformed regex or netmask, external lookup failure. By default
// it aborts the whole decision; in debug mode it degrades to a
// reject/error-performing-condition decision.
type EvalError struct {
	Condition string
	Msg       string
	Err       error
}

func (e *EvalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("condition %q: %s: %v", e.Condition, e.Msg, e.Err)
	}
	return fmt.Sprintf("condition %q: %s", e.Condition, e.Msg)
}

func (e *EvalError) Unwrap() error { return e.Err }
