// Package harness synthesizes the invocation wrapper around submitted
// source. The wrapper imports the user unit's default export, declares
// ambient slots typed with the caller's argument/return type expressions,
// invokes the export and awaits an asynchronous result.
//
// The wrapper's shape is a fixed contract: the relocator classifies
// compiler diagnostics by matching their ranges against the anchor table
// recorded here. Changing the emitted text without updating the anchors
// (or vice versa) breaks that correlation and surfaces as a pipeline
// defect, never as a user error.
package harness

import (
	"fmt"
	"strings"

	"enclave/frontend"
)

// Names shared between the synthesized text and the sandboxed executor.
// ArgsBinding and ResultBinding are installed as ambient globals for the
// duration of one execution.
const (
	ArgsBinding   = "__args"
	ResultBinding = "__result"
	ImportName    = "__main"

	// DefaultID is the harness unit's identifier. The leading
	// underscores keep it out of the identifier space hosts use for
	// auxiliary units.
	DefaultID = "__harness"
)

// AnchorKind tags the syntactic positions of the wrapper that compiler
// diagnostics can land on. The set is closed: a harness diagnostic whose
// range matches none of these anchors is a pipeline defect.
type AnchorKind uint8

const (
	// AnchorImportStmt is the default-import statement of the user unit.
	AnchorImportStmt AnchorKind = iota
	// AnchorImportName is the local binding inside that statement.
	AnchorImportName
	// AnchorCallAssignTarget is the result slot on the invocation line.
	AnchorCallAssignTarget
	// AnchorCallExpr is the whole invocation expression.
	AnchorCallExpr
	// AnchorCallee is the callee identifier of the invocation.
	AnchorCallee
	// AnchorCallArgs is the spread argument of the invocation.
	AnchorCallArgs
	// AnchorAwaitAssignTarget is the result slot in the await branch.
	AnchorAwaitAssignTarget
	// AnchorAwaitExpr is the awaited expression in that branch.
	AnchorAwaitExpr
)

func (k AnchorKind) String() string {
	switch k {
	case AnchorImportStmt:
		return "import-stmt"
	case AnchorImportName:
		return "import-name"
	case AnchorCallAssignTarget:
		return "call-assign-target"
	case AnchorCallExpr:
		return "call-expr"
	case AnchorCallee:
		return "callee"
	case AnchorCallArgs:
		return "call-args"
	case AnchorAwaitAssignTarget:
		return "await-assign-target"
	case AnchorAwaitExpr:
		return "await-expr"
	}
	return "unknown"
}

// Anchor binds a kind to its byte range in the harness text.
type Anchor struct {
	Kind  AnchorKind
	Range frontend.TextRange
}

// Harness is the synthesized unit plus its anchor table.
type Harness struct {
	ID      string
	Text    string
	Anchors []Anchor

	// Declared type expressions, kept for message construction.
	ReturnType string
	ArgTypes   []string
}

// Signature renders the required default-export signature from the
// declared types: (...args: [string, number]) => string.
func (h *Harness) Signature() string {
	return fmt.Sprintf("(...args: [%s]) => %s", strings.Join(h.ArgTypes, ", "), h.ReturnType)
}

// Synthesize builds the wrapper for the given user unit. auxIDs lists the
// auxiliary units that need a side-effect import; declaration-only units
// must already be excluded by the caller. Pure text construction, no error
// conditions.
func Synthesize(userID, returnType string, argTypes []string, auxIDs []string) *Harness {
	h := &Harness{
		ID:         DefaultID,
		ReturnType: returnType,
		ArgTypes:   argTypes,
	}

	var b strings.Builder
	anchor := func(kind AnchorKind, start int) {
		h.Anchors = append(h.Anchors, Anchor{
			Kind:  kind,
			Range: frontend.TextRange{Start: start, Length: b.Len() - start},
		})
	}

	for _, id := range auxIDs {
		fmt.Fprintf(&b, "import %q;\n", "./"+id)
	}

	importStart := b.Len()
	b.WriteString("import ")
	nameStart := b.Len()
	b.WriteString(ImportName)
	anchor(AnchorImportName, nameStart)
	fmt.Fprintf(&b, " from %q;", "./"+userID)
	anchor(AnchorImportStmt, importStart)
	b.WriteString("\n")

	tuple := strings.Join(argTypes, ", ")
	fmt.Fprintf(&b, "declare const %s: [%s];\n", ArgsBinding, tuple)
	fmt.Fprintf(&b, "declare let %s: %s | Promise<%s>;\n", ResultBinding, returnType, returnType)

	targetStart := b.Len()
	b.WriteString(ResultBinding)
	anchor(AnchorCallAssignTarget, targetStart)
	b.WriteString(" = ")
	callStart := b.Len()
	b.WriteString(ImportName)
	anchor(AnchorCallee, callStart)
	b.WriteString("(")
	argsStart := b.Len()
	b.WriteString("..." + ArgsBinding)
	anchor(AnchorCallArgs, argsStart)
	b.WriteString(")")
	anchor(AnchorCallExpr, callStart)
	b.WriteString(";\n")

	fmt.Fprintf(&b, "if (%s instanceof Promise) {\n", ResultBinding)
	b.WriteString("    ")
	awaitTargetStart := b.Len()
	b.WriteString(ResultBinding)
	anchor(AnchorAwaitAssignTarget, awaitTargetStart)
	b.WriteString(" = ")
	awaitExprStart := b.Len()
	b.WriteString("await " + ResultBinding)
	anchor(AnchorAwaitExpr, awaitExprStart)
	b.WriteString(";\n}\n")

	h.Text = b.String()
	return h
}

// Classify finds the smallest anchor whose range fully contains r. The
// second result is false when no anchor matches.
func (h *Harness) Classify(r frontend.TextRange) (AnchorKind, bool) {
	best := -1
	for i, a := range h.Anchors {
		if a.Range.Start <= r.Start && r.End() <= a.Range.End() {
			if best < 0 || a.Range.Length < h.Anchors[best].Range.Length {
				best = i
			}
		}
	}
	if best < 0 {
		return 0, false
	}
	return h.Anchors[best].Kind, true
}

// Unit presents the harness as a front-end source unit.
func (h *Harness) Unit() frontend.Unit {
	return frontend.Unit{ID: h.ID, Text: h.Text}
}
