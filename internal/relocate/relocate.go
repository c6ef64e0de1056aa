// Package relocate rewrites compiler diagnostics that are physically
// located in the synthesized harness into diagnostics anchored in the
// user's own source.
//
// The compiler reports every harness failure in terms of the harness's own
// code. Because the harness has a fixed shape, the ways its invocation can
// fail form a closed set of four categories, each recognizable by the
// syntactic anchor the diagnostic lands on. The classification is an
// exhaustive tagged dispatch: an unmatched anchor means the harness shape
// changed without updating the classifier, which is a pipeline defect and
// must abort loudly.
package relocate

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"enclave/frontend"
	"enclave/internal/defect"
	"enclave/internal/diag"
	"enclave/internal/harness"
	"enclave/internal/source"
)

// Renderers maps a compiler diagnostic code to a custom message-rendering
// function. Custom renderers are consulted before the built-in template
// table; raw compiler text is the final fallback.
type Renderers map[int]frontend.MessageRenderer

// Context carries everything one relocation pass needs.
type Context struct {
	Units      *source.Table
	UserIdx    source.UnitIdx
	Harness    *harness.Harness
	HarnessIdx source.UnitIdx
	Export     frontend.ExportShape
	Renderers  Renderers
}

// Relocate rewrites every diagnostic in the bag so its range lies inside
// the user unit. User-unit diagnostics pass through with message
// formatting only; harness-unit diagnostics are classified and rewritten.
// A relocated span outside the user unit is a defect.
func Relocate(bag *diag.Bag, rc *Context) ([]diag.Diagnostic, error) {
	user := rc.Units.Get(rc.UserIdx).Span()
	out := make([]diag.Diagnostic, 0, bag.Len())
	for _, d := range bag.Items() {
		var rd diag.Diagnostic
		switch d.Primary.Unit {
		case rc.UserIdx:
			rd = rc.formatUser(d)
		case rc.HarnessIdx:
			var err error
			rd, err = rc.relocateHarness(d)
			if err != nil {
				return nil, err
			}
		default:
			return nil, defect.New("relocate",
				"diagnostic TS%d outside user and harness units", d.Code)
		}
		if !user.Contains(rd.Primary) {
			return nil, defect.New("relocate",
				"relocated diagnostic TS%d escapes the user unit at %s", rd.Code, rd.Primary)
		}
		out = append(out, rd)
	}
	return out, nil
}

func (rc *Context) formatUser(d diag.Diagnostic) diag.Diagnostic {
	d.Message = rc.renderMessage(d)
	return d
}

func (rc *Context) renderMessage(d diag.Diagnostic) string {
	u := rc.Units.Get(d.Primary.Unit)
	fd := frontend.Diagnostic{
		UnitID:  u.ID,
		Code:    d.Code,
		Message: d.Message,
		Related: d.Related,
		Range: frontend.TextRange{
			Start:  int(d.Primary.Start),
			Length: int(d.Primary.Len()),
		},
	}
	if r, ok := rc.Renderers[d.Code]; ok {
		return r(fd)
	}
	if t, ok := builtinTemplates[d.Code]; ok {
		return t(fd)
	}
	return flatten(fd)
}

func (rc *Context) relocateHarness(d diag.Diagnostic) (diag.Diagnostic, error) {
	r := frontend.TextRange{
		Start:  int(d.Primary.Start),
		Length: int(d.Primary.Len()),
	}
	kind, ok := rc.Harness.Classify(r)
	if !ok {
		return diag.Diagnostic{}, defect.New("relocate",
			"harness diagnostic TS%d at %d+%d matches no anchor: %s",
			d.Code, r.Start, r.Length, d.Message)
	}

	switch kind {
	case harness.AnchorImportStmt, harness.AnchorImportName:
		return rc.noDefaultExport(d), nil

	case harness.AnchorCallAssignTarget, harness.AnchorAwaitAssignTarget, harness.AnchorAwaitExpr:
		return rc.returnMismatch(d), nil

	case harness.AnchorCallExpr, harness.AnchorCallee, harness.AnchorCallArgs:
		if !rc.Export.Found {
			return rc.noDefaultExport(d), nil
		}
		if !rc.Export.Callable {
			return rc.notCallable(d), nil
		}
		return rc.argumentMismatch(d), nil
	}

	return diag.Diagnostic{}, defect.New("relocate",
		"harness anchor %s has no classification", kind)
}

func (rc *Context) noDefaultExport(d diag.Diagnostic) diag.Diagnostic {
	d.Primary = rc.Units.Get(rc.UserIdx).Span()
	d.Message = fmt.Sprintf(
		"Expected the submitted source to have a default export with signature '%s'.",
		rc.Harness.Signature())
	d.Related = nil
	return d
}

func (rc *Context) notCallable(d diag.Diagnostic) diag.Diagnostic {
	d.Primary = rc.userSpan(rc.Export.Decl)
	d.Message = fmt.Sprintf(
		"The default export is not callable. Expected a default export with signature '%s'.",
		rc.Harness.Signature())
	d.Related = nil
	return d
}

func (rc *Context) returnMismatch(d diag.Diagnostic) diag.Diagnostic {
	target := rc.Export.Func
	if rc.Export.ReturnAnnotation != nil {
		target = *rc.Export.ReturnAnnotation
	}
	d.Primary = rc.userSpan(target)
	d.Message = fmt.Sprintf("Incorrect return type. Expected: '%s', Actual: '%s'.",
		rc.Harness.ReturnType, orAny(rc.Export.ReturnType))
	d.Related = nil
	return d
}

func (rc *Context) argumentMismatch(d diag.Diagnostic) diag.Diagnostic {
	target := rc.Export.Func
	if rc.Export.Params != nil {
		target = *rc.Export.Params
	}
	d.Primary = rc.userSpan(target)
	declared := "[" + strings.Join(rc.Harness.ArgTypes, ", ") + "]"
	actual := "[" + strings.Join(rc.Export.ParamTypes, ", ") + "]"
	d.Message = fmt.Sprintf("Incorrect argument type. Expected: '%s', Actual: '%s'.",
		declared, actual)
	d.Related = nil
	return d
}

func (rc *Context) userSpan(r frontend.TextRange) source.Span {
	u := rc.Units.Get(rc.UserIdx)
	start := r.Start
	end := r.End()
	if start < 0 {
		start = 0
	}
	if end > len(u.Text) {
		end = len(u.Text)
	}
	if end < start {
		end = start
	}
	return source.Span{
		Unit:  rc.UserIdx,
		Start: mustUint32(start),
		End:   mustUint32(end),
	}
}

func orAny(t string) string {
	if t == "" {
		return "any"
	}
	return t
}

func mustUint32(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("span offset overflow: %w", err))
	}
	return v
}
