// Package jsfront is a plain-JavaScript front end: no type checking, just
// a syntax check, a line-preserving CommonJS down-level of module syntax,
// and an identity source map. It makes the pipeline runnable without
// binding a real type-checking compiler, at the cost of the type-driven
// failure categories.
package jsfront

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dop251/goja/parser"

	"enclave/frontend"
	"enclave/internal/srcmap"
)

// Diagnostic codes this front end produces. The syntax code covers every
// parse failure; the export code fires when the user unit lacks a default
// export and lands on the harness's import binding so relocation yields
// the missing-export category.
const (
	CodeSyntax          = 1005
	CodeNoDefaultExport = 1192
)

// Frontend implements frontend.Frontend for untyped JavaScript. The zero
// value is ready to use and safe for concurrent use; all state is
// per-request.
type Frontend struct{}

func New() *Frontend {
	return &Frontend{}
}

var (
	reExportDefault = regexp.MustCompile(`(?m)^export\s+default\s+`)
	reExportDecl    = regexp.MustCompile(`(?m)^export\s+(?:async\s+)?(?:function|class|const|let|var)\s+([A-Za-z_$][\w$]*)`)
	reExportKeyword = regexp.MustCompile(`(?m)^export\s+`)
	reImportSide    = regexp.MustCompile(`(?m)^import\s+["']([^"']+)["'];?[^\S\n]*$`)
	reImportDefault = regexp.MustCompile(`(?m)^import\s+([A-Za-z_$][\w$]*)\s+from\s+["']([^"']+)["'];?[^\S\n]*$`)
	reImportNamed   = regexp.MustCompile(`(?m)^import\s+\{([^}]*)\}\s+from\s+["']([^"']+)["'];?[^\S\n]*$`)
	reDeclareLine   = regexp.MustCompile(`(?m)^declare\s[^\n]*$`)
	reCallable      = regexp.MustCompile(`^export\s+default\s+(?:async\s+)?(?:function\b|\(|[A-Za-z_$][\w$]*\s*=>)`)
)

// Compile syntax-checks and down-levels every non-declaration unit.
// Declaration-only units are skipped entirely: they exist for type
// checkers, and this front end has none.
func (f *Frontend) Compile(_ context.Context, req frontend.Request) (frontend.Result, error) {
	res := frontend.Result{Emitted: make(map[string]string, len(req.Units))}

	var userText string
	for _, u := range req.Units {
		if u.DeclarationOnly {
			continue
		}
		id := stripSpec(u.ID)
		if id == req.UserID {
			userText = u.Text
		}
		lowered := downLevel(u.Text)
		if diags := syntaxCheck(id, u.Text, lowered); len(diags) > 0 {
			res.Diagnostics = append(res.Diagnostics, diags...)
			continue
		}
		res.Emitted[id] = lowered
	}

	res.Export = exportShape(userText)
	if !res.Export.Found {
		if d, ok := missingExportDiagnostic(req); ok {
			res.Diagnostics = append(res.Diagnostics, d)
		}
	}

	if len(res.Diagnostics) > 0 {
		return frontend.Result{Diagnostics: res.Diagnostics, Export: res.Export}, nil
	}

	res.SourceMap = srcmap.Identity(req.UserID+".js", req.UserID, lineCount(userText))
	return res, nil
}

// downLevel rewrites module syntax into CommonJS without moving any line:
// every replacement stays on the line it started on, so the identity
// source map holds. Named-export registrations are appended after the last
// original line.
func downLevel(text string) string {
	out := text

	out = reImportSide.ReplaceAllStringFunc(out, func(m string) string {
		spec := reImportSide.FindStringSubmatch(m)[1]
		return fmt.Sprintf("require(%q);", stripSpec(spec))
	})
	out = reImportDefault.ReplaceAllStringFunc(out, func(m string) string {
		sub := reImportDefault.FindStringSubmatch(m)
		return fmt.Sprintf("const %s = require(%q).default;", sub[1], stripSpec(sub[2]))
	})
	out = reImportNamed.ReplaceAllStringFunc(out, func(m string) string {
		sub := reImportNamed.FindStringSubmatch(m)
		return fmt.Sprintf("const {%s} = require(%q);", sub[1], stripSpec(sub[2]))
	})

	out = reDeclareLine.ReplaceAllString(out, "")

	var exported []string
	for _, sub := range reExportDecl.FindAllStringSubmatch(out, -1) {
		exported = append(exported, sub[1])
	}
	out = reExportDefault.ReplaceAllString(out, "module.exports.default = ")
	out = reExportKeyword.ReplaceAllString(out, "")

	// Harness text awaits at the top level; the executor unwraps promises
	// itself, so the await is dropped rather than emulated.
	out = strings.Replace(out, " = await ", " = ", 1)

	for _, name := range exported {
		out += fmt.Sprintf("\nmodule.exports.%s = %s;", name, name)
	}
	return out
}

func stripSpec(spec string) string {
	s := strings.TrimPrefix(spec, "./")
	for _, ext := range []string{".mjs", ".cjs", ".js", ".ts"} {
		if strings.HasSuffix(s, ext) {
			return strings.TrimSuffix(s, ext)
		}
	}
	return s
}

// syntaxCheck parses the down-leveled text. Parse errors are reported at
// the corresponding position of the original text; the down-level keeps
// lines aligned, so only the column may be off within a rewritten line.
func syntaxCheck(id, original, lowered string) []frontend.Diagnostic {
	_, err := parser.ParseFile(nil, id+".js", lowered, 0)
	if err == nil {
		return nil
	}

	var diags []frontend.Diagnostic
	if list, ok := err.(parser.ErrorList); ok {
		for _, e := range list {
			diags = append(diags, frontend.Diagnostic{
				UnitID:  id,
				Code:    CodeSyntax,
				Message: e.Message,
				Range:   frontend.TextRange{Start: offsetAt(original, e.Position.Line, e.Position.Column), Length: 1},
			})
		}
		return diags
	}
	return []frontend.Diagnostic{{
		UnitID:  id,
		Code:    CodeSyntax,
		Message: err.Error(),
		Range:   frontend.TextRange{Start: 0, Length: 1},
	}}
}

// exportShape inspects the original user text. Without a checker the
// shape is coarse: any default export is assumed callable with an untyped
// signature, so type-driven categories never fire here.
func exportShape(userText string) frontend.ExportShape {
	loc := reExportDefault.FindStringIndex(userText)
	if loc == nil {
		return frontend.ExportShape{}
	}
	decl := frontend.TextRange{Start: loc[0], Length: lineLenFrom(userText, loc[0])}
	return frontend.ExportShape{
		Found:      true,
		Callable:   reCallable.MatchString(userText[loc[0]:]),
		ReturnType: "any",
		Decl:       decl,
		Func:       decl,
	}
}

// missingExportDiagnostic anchors the failure on the harness's default
// import of the user unit.
func missingExportDiagnostic(req frontend.Request) (frontend.Diagnostic, bool) {
	var harnessText string
	for _, u := range req.Units {
		if u.ID == req.HarnessID {
			harnessText = u.Text
		}
	}
	re := regexp.MustCompile(`import\s+([A-Za-z_$][\w$]*)\s+from\s+"\./` + regexp.QuoteMeta(req.UserID) + `"`)
	m := re.FindStringSubmatchIndex(harnessText)
	if m == nil {
		return frontend.Diagnostic{}, false
	}
	return frontend.Diagnostic{
		UnitID:  req.HarnessID,
		Code:    CodeNoDefaultExport,
		Message: fmt.Sprintf("Module '\"./%s\"' has no default export.", req.UserID),
		Range:   frontend.TextRange{Start: m[2], Length: m[3] - m[2]},
	}, true
}

func offsetAt(text string, line, col int) int {
	off := 0
	for line > 1 {
		nl := strings.IndexByte(text[off:], '\n')
		if nl < 0 {
			return len(text)
		}
		off += nl + 1
		line--
	}
	off += col - 1
	if off > len(text) {
		off = len(text)
	}
	if off < 0 {
		off = 0
	}
	return off
}

func lineLenFrom(text string, off int) int {
	if nl := strings.IndexByte(text[off:], '\n'); nl >= 0 {
		return nl
	}
	return len(text) - off
}

func lineCount(text string) int {
	return strings.Count(text, "\n") + 1
}
