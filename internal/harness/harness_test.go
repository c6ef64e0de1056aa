package harness

import (
	"strings"
	"testing"

	"enclave/frontend"
)

func anchorText(h *Harness, kind AnchorKind) string {
	for _, a := range h.Anchors {
		if a.Kind == kind {
			return h.Text[a.Range.Start:a.Range.End()]
		}
	}
	return ""
}

func TestSynthesizeAnchorsCoverExpectedText(t *testing.T) {
	h := Synthesize("user", "string", []string{"string", "number"}, nil)

	cases := []struct {
		kind AnchorKind
		want string
	}{
		{AnchorImportStmt, `import __main from "./user";`},
		{AnchorImportName, "__main"},
		{AnchorCallAssignTarget, "__result"},
		{AnchorCallee, "__main"},
		{AnchorCallArgs, "...__args"},
		{AnchorCallExpr, "__main(...__args)"},
		{AnchorAwaitAssignTarget, "__result"},
		{AnchorAwaitExpr, "await __result"},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			if got := anchorText(h, tc.kind); got != tc.want {
				t.Fatalf("anchor %s covers %q, want %q", tc.kind, got, tc.want)
			}
		})
	}
}

func TestSynthesizeDeclaresTypes(t *testing.T) {
	h := Synthesize("user", "string", []string{"string", "number"}, nil)

	for _, want := range []string{
		"declare const __args: [string, number];",
		"declare let __result: string | Promise<string>;",
		"if (__result instanceof Promise) {",
	} {
		if !strings.Contains(h.Text, want) {
			t.Errorf("harness text missing %q:\n%s", want, h.Text)
		}
	}
}

func TestSynthesizeAuxImportsComeFirst(t *testing.T) {
	h := Synthesize("user", "void", []string{"any"}, []string{"setup", "fixtures"})

	wantPrefix := "import \"./setup\";\nimport \"./fixtures\";\nimport __main"
	if !strings.HasPrefix(h.Text, wantPrefix) {
		t.Fatalf("harness text does not start with aux imports:\n%s", h.Text)
	}
	// Anchor ranges must still cover the right text after the prefix shift.
	if got := anchorText(h, AnchorImportStmt); got != `import __main from "./user";` {
		t.Fatalf("import anchor drifted: %q", got)
	}
}

func TestClassifyPrefersSmallestAnchor(t *testing.T) {
	h := Synthesize("user", "number", []string{"number"}, nil)

	var callee Anchor
	for _, a := range h.Anchors {
		if a.Kind == AnchorCallee {
			callee = a
		}
	}

	// The callee range sits inside the call-expr range; the smaller one
	// must win.
	kind, ok := h.Classify(callee.Range)
	if !ok || kind != AnchorCallee {
		t.Fatalf("Classify(callee range) = %v, %v; want %v", kind, ok, AnchorCallee)
	}

	// A range outside every anchor is unclassifiable.
	if _, ok := h.Classify(frontend.TextRange{Start: len(h.Text), Length: 5}); ok {
		t.Fatal("Classify past the end of the text should fail")
	}
}

func TestSignature(t *testing.T) {
	h := Synthesize("user", "string", []string{"string", "number"}, nil)
	want := "(...args: [string, number]) => string"
	if got := h.Signature(); got != want {
		t.Fatalf("Signature() = %q, want %q", got, want)
	}
}
