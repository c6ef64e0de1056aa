// Package frontend defines the boundary to the compiler front end.
//
// The pipeline consumes the front end as a black box: it hands over a set of
// named source units plus options and receives emitted code, a source map
// for the user unit, the shape of the user unit's default export, and raw
// diagnostics. Hosts bind a real type-checking compiler here; jsfront ships
// a plain-JavaScript implementation for untyped execution.
package frontend

import (
	"context"
)

// TextRange is a start/length byte range inside a unit's text, matching the
// way compiler front ends report diagnostic positions.
type TextRange struct {
	Start  int
	Length int
}

func (r TextRange) End() int {
	return r.Start + r.Length
}

// Unit is one named source file. Identity is by identifier with the
// relative prefix and extension stripped. Declaration-only units contribute
// type information but no runtime module.
type Unit struct {
	ID              string
	Text            string
	DeclarationOnly bool
}

// Diagnostic is a raw compiler complaint. UnitID is empty for diagnostics
// without an originating file (configuration-level complaints).
type Diagnostic struct {
	UnitID  string
	Code    int
	Message string
	// Related carries the flattened chain of nested messages when the
	// front end reports one, outermost first.
	Related []string
	Range   TextRange
}

// ExportShape describes the user unit's default export as seen by the
// type checker. Positions are ranges in the user unit's text; the pipeline
// relies on them to anchor relocated diagnostics.
type ExportShape struct {
	Found    bool
	Callable bool

	// Inferred signature, rendered as type expressions. Empty strings are
	// treated as "any".
	ReturnType string
	ParamTypes []string

	// Decl is the default export's declaration node; Func the function
	// it resolves to. ReturnAnnotation and Params are nil when the user
	// wrote no annotation / no parameters.
	Decl             TextRange
	Func             TextRange
	ReturnAnnotation *TextRange
	Params           *TextRange
}

// Options are compiler options passed through to the front end.
type Options struct {
	// Target names the emit target when the front end supports several
	// ("es2020", ...). Empty means the front end's default.
	Target string
	Strict bool
	// Raw carries front-end-specific options the pipeline does not
	// interpret.
	Raw map[string]string
}

// Request presents one in-memory virtual file set to the front end.
// Resolution by stripped identifier takes precedence over any real
// filesystem the front end may consult.
type Request struct {
	UserID    string
	HarnessID string
	Units     []Unit
	Options   Options
}

// Result is the front end's output for one Request.
type Result struct {
	// Emitted maps stripped identifier to executable text for every emit
	// target (the harness and each non-declaration unit). Empty when
	// diagnostics prevented emission.
	Emitted map[string]string
	// SourceMap is the user unit's source map (v3 JSON), empty when
	// nothing was emitted.
	SourceMap string
	Export    ExportShape
	// Diagnostics collects both pre-emission and emit-time complaints.
	Diagnostics []Diagnostic
}

// MessageRenderer produces the user-facing message for a diagnostic.
// Hosts register renderers per diagnostic code; they take precedence over
// the pipeline's built-in template table.
type MessageRenderer func(Diagnostic) string

// Frontend compiles a virtual file set. Implementations must be safe for
// concurrent use; the pipeline may run many invocations at once.
type Frontend interface {
	Compile(ctx context.Context, req Request) (Result, error)
}

// ImplicitLibCode is the file-less diagnostic emitted when the front end
// cannot locate its implicit standard library. The orchestrator drops it
// silently; every other file-less code is a pipeline defect.
const ImplicitLibCode = 2318
