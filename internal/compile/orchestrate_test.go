package compile

import (
	"context"
	"errors"
	"testing"

	"enclave/frontend"
	"enclave/internal/defect"
	"enclave/internal/harness"
)

// scripted returns a canned result and records the request it saw.
type scripted struct {
	res frontend.Result
	err error
	req frontend.Request
}

func (s *scripted) Compile(_ context.Context, req frontend.Request) (frontend.Result, error) {
	s.req = req
	return s.res, s.err
}

func testHarness() *harness.Harness {
	return harness.Synthesize("user", "number", []string{"number"}, nil)
}

func TestOrchestrateSuccess(t *testing.T) {
	h := testHarness()
	fe := &scripted{res: frontend.Result{
		Emitted: map[string]string{
			"user":    "module.exports.default = (n) => n;",
			h.ID:      "__result = require(\"user\").default(...__args);",
			"helpers": "exports.two = 2;",
		},
		SourceMap: `{"version":3,"mappings":"AAAA"}`,
		Export:    frontend.ExportShape{Found: true, Callable: true},
	}}

	aux := []frontend.Unit{
		{ID: "./helpers.ts", Text: "export const two = 2;"},
		{ID: "types.d.ts", Text: "declare type N = number;", DeclarationOnly: true},
	}
	out, err := Orchestrate(context.Background(), fe, "user", "export default (n) => n;", h, aux, frontend.Options{}, 16)
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if !out.Diags.Empty() {
		t.Fatalf("unexpected diagnostics: %+v", out.Diags.Items())
	}
	if out.SourceMap == "" || len(out.Emitted) != 3 {
		t.Fatalf("emit fields not carried over: %+v", out)
	}
	if !out.Export.Found {
		t.Fatal("export shape not carried over")
	}

	// The front end must see user first, harness second, then aux units.
	if len(fe.req.Units) != 4 {
		t.Fatalf("front end saw %d units, want 4", len(fe.req.Units))
	}
	if fe.req.Units[0].ID != "user" || fe.req.Units[1].ID != h.ID {
		t.Fatalf("unit order wrong: %q, %q", fe.req.Units[0].ID, fe.req.Units[1].ID)
	}
}

func TestOrchestrateFrontEndSeesNormalizedText(t *testing.T) {
	h := testHarness()
	fe := &scripted{res: frontend.Result{
		Emitted: map[string]string{
			"user":    "x",
			h.ID:      "y",
			"helpers": "z",
		},
		SourceMap: "{}",
		Export:    frontend.ExportShape{Found: true, Callable: true},
	}}

	aux := []frontend.Unit{{ID: "./helpers.ts", Text: "let a = 1;\r\nlet b = 2;\r\n"}}
	_, err := Orchestrate(context.Background(), fe,
		"user", "\xEF\xBB\xBFexport default (n) => n;\r\n", h, aux, frontend.Options{}, 16)
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}

	// Offsets from the front end are resolved against the unit table, so
	// the table's normalized text is what the front end must index.
	if got, want := fe.req.Units[0].Text, "export default (n) => n;\n"; got != want {
		t.Fatalf("user text seen by front end = %q, want %q", got, want)
	}
	if got, want := fe.req.Units[2].Text, "let a = 1;\nlet b = 2;\n"; got != want {
		t.Fatalf("aux text seen by front end = %q, want %q", got, want)
	}
}

func TestOrchestrateAuxCollisionIsDefect(t *testing.T) {
	h := testHarness()
	fe := &scripted{}
	aux := []frontend.Unit{{ID: "./user.ts", Text: ""}}
	_, err := Orchestrate(context.Background(), fe, "user", "x", h, aux, frontend.Options{}, 16)
	if !defect.Is(err) {
		t.Fatalf("expected defect, got %v", err)
	}
}

func TestOrchestrateFrontEndErrorIsDefect(t *testing.T) {
	h := testHarness()
	fe := &scripted{err: errors.New("checker crashed")}
	_, err := Orchestrate(context.Background(), fe, "user", "x", h, nil, frontend.Options{}, 16)
	if !defect.Is(err) {
		t.Fatalf("expected defect, got %v", err)
	}
}

func TestOrchestrateFileLessDiagnostics(t *testing.T) {
	cases := []struct {
		name   string
		code   int
		defect bool
	}{
		{"implicit-lib-dropped", frontend.ImplicitLibCode, false},
		{"other-file-less-is-defect", 5055, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := testHarness()
			fe := &scripted{res: frontend.Result{
				Emitted:   map[string]string{"user": "x", h.ID: "y"},
				SourceMap: "{}",
				Diagnostics: []frontend.Diagnostic{
					{Code: tc.code, Message: "no file"},
				},
			}}
			out, err := Orchestrate(context.Background(), fe, "user", "x", h, nil, frontend.Options{}, 16)
			if tc.defect {
				if !defect.Is(err) {
					t.Fatalf("expected defect, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Orchestrate: %v", err)
			}
			if !out.Diags.Empty() {
				t.Fatalf("dropped diagnostic leaked: %+v", out.Diags.Items())
			}
		})
	}
}

func TestOrchestrateAuxDiagnosticIsDefect(t *testing.T) {
	h := testHarness()
	fe := &scripted{res: frontend.Result{
		Diagnostics: []frontend.Diagnostic{
			{UnitID: "helpers", Code: 2322, Message: "bad aux"},
		},
	}}
	aux := []frontend.Unit{{ID: "helpers", Text: "export const x: number = \"s\";"}}
	_, err := Orchestrate(context.Background(), fe, "user", "x", h, aux, frontend.Options{}, 16)
	if !defect.Is(err) {
		t.Fatalf("expected defect, got %v", err)
	}
}

func TestOrchestrateUserDiagnosticsAreSortedAndDeduped(t *testing.T) {
	h := testHarness()
	fe := &scripted{res: frontend.Result{
		Diagnostics: []frontend.Diagnostic{
			{UnitID: "user", Code: 2322, Message: "later", Range: frontend.TextRange{Start: 8, Length: 2}},
			{UnitID: "user", Code: 2322, Message: "earlier", Range: frontend.TextRange{Start: 1, Length: 2}},
			{UnitID: "user", Code: 2322, Message: "earlier", Range: frontend.TextRange{Start: 1, Length: 2}},
		},
	}}
	out, err := Orchestrate(context.Background(), fe, "user", "0123456789ab", h, nil, frontend.Options{}, 16)
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	items := out.Diags.Items()
	if len(items) != 2 {
		t.Fatalf("got %d diagnostics, want 2 after dedup: %+v", len(items), items)
	}
	if items[0].Primary.Start != 1 || items[1].Primary.Start != 8 {
		t.Fatalf("diagnostics not sorted by position: %+v", items)
	}
}

func TestOrchestrateMissingEmitTargetIsDefect(t *testing.T) {
	h := testHarness()
	fe := &scripted{res: frontend.Result{
		Emitted:   map[string]string{"user": "x"}, // harness missing
		SourceMap: "{}",
	}}
	_, err := Orchestrate(context.Background(), fe, "user", "x", h, nil, frontend.Options{}, 16)
	if !defect.Is(err) {
		t.Fatalf("expected defect, got %v", err)
	}
}

func TestOrchestrateRangeClampedToUnit(t *testing.T) {
	h := testHarness()
	fe := &scripted{res: frontend.Result{
		Diagnostics: []frontend.Diagnostic{
			{UnitID: "user", Code: 2322, Message: "m", Range: frontend.TextRange{Start: 2, Length: 99}},
		},
	}}
	out, err := Orchestrate(context.Background(), fe, "user", "abcde", h, nil, frontend.Options{}, 16)
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	d := out.Diags.Items()[0]
	if d.Primary.Start != 2 || d.Primary.End != 5 {
		t.Fatalf("span not clamped: %v", d.Primary)
	}
}
