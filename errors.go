package enclave

import (
	"fmt"
)

// Location is a 1-based position in the submitted source.
type Location struct {
	Line   int
	Column int
}

// Structured is the uniform, serializable form every surfaced error
// exposes.
type Structured struct {
	Message  string   `json:"message"`
	Stack    string   `json:"stack"`
	Location Location `json:"location"`
}

// Error is implemented by every error the pipeline surfaces to callers:
// a message, a newline-joined stack restricted to the submitted source,
// and a primary location.
type Error interface {
	error
	Message() string
	Stack() string
	Location() Location
	Structured() Structured
}

// Diagnostic is a compile-time complaint anchored in the submitted
// source, either directly or after relocation from the synthesized
// harness.
type Diagnostic struct {
	// Code is the compiler front end's numeric diagnostic code.
	Code int
	Msg  string
	Loc  Location
	// Length is the number of source characters the diagnostic covers,
	// for renderers that underline the range.
	Length int
}

func (d *Diagnostic) Error() string {
	return fmt.Sprintf("TS%d: %s", d.Code, d.Msg)
}

func (d *Diagnostic) Message() string {
	return d.Msg
}

// Stack renders the diagnostic's single location as a pseudo-frame, in
// the same shape runtime stacks use.
func (d *Diagnostic) Stack() string {
	return fmt.Sprintf("at %s(%d:%d)", userUnitID, d.Loc.Line, d.Loc.Column)
}

func (d *Diagnostic) Location() Location {
	return d.Loc
}

func (d *Diagnostic) Structured() Structured {
	return Structured{Message: d.Msg, Stack: d.Stack(), Location: d.Loc}
}

// RuntimeError is a failure thrown during sandboxed evaluation, with its
// stack trimmed to resolvable user frames and its position mapped back to
// the original source.
type RuntimeError struct {
	Msg        string
	StackTrace string
	Loc        Location
}

func (e *RuntimeError) Error() string {
	return e.Msg
}

func (e *RuntimeError) Message() string {
	return e.Msg
}

func (e *RuntimeError) Stack() string {
	return e.StackTrace
}

func (e *RuntimeError) Location() Location {
	return e.Loc
}

func (e *RuntimeError) Structured() Structured {
	return Structured{Message: e.Msg, Stack: e.StackTrace, Location: e.Loc}
}

// IsDefect reports whether an error returned by a public operation is a
// pipeline defect: an internal inconsistency, never a property of the
// submitted source. Exposed so hosts can alert on regressions instead of
// blaming submissions.
func IsDefect(err error) bool {
	return isDefect(err)
}
