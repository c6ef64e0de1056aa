// Package defect carries internal pipeline failures that indicate a bug in
// the pipeline or its host-supplied inputs rather than in the submitted
// source. Defects are surfaced through the plain error return of every
// public operation and are never downgraded to user-facing diagnostics.
package defect

import (
	"errors"
	"fmt"
)

// Error marks a pipeline defect. The Stage names the pipeline phase that
// detected the inconsistency.
type Error struct {
	Stage string
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("pipeline defect [%s]: %s: %v", e.Stage, e.Msg, e.Cause)
	}
	return fmt.Sprintf("pipeline defect [%s]: %s", e.Stage, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds a defect for the given stage.
func New(stage, format string, args ...any) *Error {
	return &Error{Stage: stage, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a defect.
func Wrap(stage string, cause error, format string, args ...any) *Error {
	return &Error{Stage: stage, Msg: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is (or wraps) a pipeline defect.
func Is(err error) bool {
	var d *Error
	return errors.As(err, &d)
}
