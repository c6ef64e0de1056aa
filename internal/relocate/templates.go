package relocate

import (
	"strings"

	"enclave/frontend"
)

// builtinTemplates rewrites the most common user-unit diagnostic codes
// into shorter, actionable wording. Codes outside this table keep the raw
// compiler text (with the related chain flattened).
var builtinTemplates = map[int]func(frontend.Diagnostic) string{
	// Cannot find name 'x'.
	2304: func(d frontend.Diagnostic) string {
		return d.Message + " Only names defined in the submitted source or its auxiliary units are visible."
	},
	// Cannot find module 'x'.
	2307: func(d frontend.Diagnostic) string {
		return d.Message + " Imports must name an auxiliary unit supplied with the call."
	},
	// Type 'x' is not assignable to type 'y'.
	2322: func(d frontend.Diagnostic) string {
		return flatten(d)
	},
}

// flatten joins the diagnostic's message with its nested chain, outermost
// first.
func flatten(d frontend.Diagnostic) string {
	if len(d.Related) == 0 {
		return d.Message
	}
	parts := make([]string, 0, 1+len(d.Related))
	parts = append(parts, d.Message)
	parts = append(parts, d.Related...)
	return strings.Join(parts, " ")
}
