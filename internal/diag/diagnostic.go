// Package diag defines the internal diagnostic model shared by the
// compilation orchestrator and the relocator.
//
// A Diagnostic is a severity-free compiler complaint: a numeric code, a
// message (possibly with a chain of nested related messages), and a byte
// range inside one source unit. Diagnostics stay in this raw form until the
// relocator rewrites harness-anchored entries into user-unit positions;
// rendering and the public error surface live in the root package.
package diag

import (
	"enclave/internal/source"
)

// Diagnostic is one compiler complaint anchored in a unit of the current
// invocation's table.
type Diagnostic struct {
	Code    int
	Message string
	// Related holds the flattened chain of nested messages, outermost
	// first, when the front end reports one.
	Related []string
	Primary source.Span
}

func New(code int, primary source.Span, msg string) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: msg,
		Primary: primary,
	}
}

// WithRelated appends a nested message to the chain.
func (d Diagnostic) WithRelated(msg string) Diagnostic {
	d.Related = append(d.Related, msg)
	return d
}
