package jsfront

import (
	"context"
	"strings"
	"testing"

	"enclave/frontend"
)

func compile(t *testing.T, units ...frontend.Unit) frontend.Result {
	t.Helper()
	res, err := New().Compile(context.Background(), frontend.Request{
		UserID:    "user",
		HarnessID: "__harness",
		Units:     units,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return res
}

func TestDownLevelPreservesLineCount(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"default-export",
			"export default function f() {\n    return 1;\n}",
			"module.exports.default = function f() {\n    return 1;\n}",
		},
		{
			"side-effect-import",
			`import "./setup";`,
			`require("setup");`,
		},
		{
			"default-import",
			`import lib from "./lib";`,
			`const lib = require("lib").default;`,
		},
		{
			"named-import",
			`import { a, b } from "./lib";`,
			`const { a, b } = require("lib");`,
		},
		{
			"declare-line-blanked",
			"declare const x: number;\nlet y = 1;",
			"\nlet y = 1;",
		},
		{
			"await-assign-dropped",
			"__result = await __result;",
			"__result = __result;",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := downLevel(tc.in)
			if got != tc.want {
				t.Fatalf("downLevel(%q) = %q, want %q", tc.in, got, tc.want)
			}
			if strings.Count(got, "\n") < strings.Count(tc.in, "\n") {
				t.Fatalf("down-level dropped lines: %q", got)
			}
		})
	}
}

func TestDownLevelRegistersNamedExports(t *testing.T) {
	got := downLevel("export function shift(n) {\n    return n * 10;\n}\n")
	if !strings.Contains(got, "module.exports.shift = shift;") {
		t.Fatalf("named export not registered:\n%s", got)
	}
	// The registration is appended after the original lines so earlier
	// positions stay put.
	if !strings.HasPrefix(got, "function shift(n) {") {
		t.Fatalf("original first line moved:\n%s", got)
	}
}

func TestCompileEmitsUnderStrippedIdentifiers(t *testing.T) {
	res := compile(t,
		frontend.Unit{ID: "user", Text: "export default function f() { return 1; }"},
		frontend.Unit{ID: "./helpers.ts", Text: "export const k = 1;"},
		frontend.Unit{ID: "types.d.ts", Text: "declare const k: number;", DeclarationOnly: true},
	)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", res.Diagnostics)
	}
	if _, ok := res.Emitted["helpers"]; !ok {
		t.Fatalf("aux unit not emitted under stripped id: %v", res.Emitted)
	}
	if _, ok := res.Emitted["types"]; ok {
		t.Fatal("declaration-only unit must not be emitted")
	}
	if res.SourceMap == "" {
		t.Fatal("user source map missing")
	}
}

func TestCompileExportShape(t *testing.T) {
	res := compile(t, frontend.Unit{ID: "user", Text: "const x = 1;\nexport default function f(a) { return a; }\n"})
	if !res.Export.Found || !res.Export.Callable {
		t.Fatalf("export shape = %+v", res.Export)
	}
	if res.Export.Decl.Start != 13 {
		t.Fatalf("Decl.Start = %d, want 13", res.Export.Decl.Start)
	}
}

func TestCompileMissingDefaultExport(t *testing.T) {
	harness := "import __main from \"./user\";\n__result = __main(...__args);\n"
	res := compile(t,
		frontend.Unit{ID: "user", Text: "function f() {}"},
		frontend.Unit{ID: "__harness", Text: harness},
	)
	if res.Export.Found {
		t.Fatal("export reported found")
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %+v", len(res.Diagnostics), res.Diagnostics)
	}
	d := res.Diagnostics[0]
	if d.UnitID != "__harness" || d.Code != CodeNoDefaultExport {
		t.Fatalf("diagnostic = %+v", d)
	}
	// The range must cover the import's local binding.
	if got := harness[d.Range.Start:d.Range.End()]; got != "__main" {
		t.Fatalf("range covers %q, want __main", got)
	}
}

func TestCompileSyntaxErrorPointsIntoOriginal(t *testing.T) {
	res := compile(t, frontend.Unit{ID: "user", Text: "export default function f() {\n    return (;\n}\n"})
	if len(res.Diagnostics) == 0 {
		t.Fatal("expected syntax diagnostics")
	}
	d := res.Diagnostics[0]
	if d.UnitID != "user" || d.Code != CodeSyntax {
		t.Fatalf("diagnostic = %+v", d)
	}
	if d.Range.Start <= strings.Index("export default function f() {\n", "\n") {
		t.Fatalf("error range %+v does not point past line 1", d.Range)
	}
}
