package stackmap

import (
	"testing"

	"enclave/internal/defect"
	"enclave/internal/srcmap"
)

func TestParseStack(t *testing.T) {
	stack := "Error: boom\n" +
		"\tat inner (user.js:4:11(8))\n" +
		"\tat middle (user.js:9:3)\n" +
		"\tat native\n" +
		"\tat __harness.js:6:12\n"

	frames := ParseStack(stack)
	want := []Frame{
		{Func: "inner", File: "user", Line: 4, Column: 11},
		{Func: "middle", File: "user", Line: 9, Column: 3},
		{Func: "", File: "__harness", Line: 6, Column: 12},
	}
	if len(frames) != len(want) {
		t.Fatalf("parsed %d frames, want %d: %+v", len(frames), len(want), frames)
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("frame %d = %+v, want %+v", i, frames[i], want[i])
		}
	}
}

func TestParseStackSkipsNonFrameLines(t *testing.T) {
	frames := ParseStack("TypeError: x is not a function\n\tat <eval>\n")
	if len(frames) != 0 {
		t.Fatalf("expected no frames, got %+v", frames)
	}
}

func TestTranslateKeepsOnlyResolvableUserFrames(t *testing.T) {
	b := srcmap.NewBuilder("user.js", "user")
	b.Add(3, 5, 3, 5)
	b.Add(5, 1, 5, 1)
	smap := b.String()
	stack := "\tat fail (user.js:3:5)\n" +
		"\tat run (__harness.js:6:1)\n" +
		"\tat user.js:5:1\n"

	tr, err := Translate("boom", stack, "user", smap, 15)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if tr.Message != "Runtime Error: boom" {
		t.Fatalf("message = %q", tr.Message)
	}
	if tr.Line != 3 || tr.Column != 5 {
		t.Fatalf("primary location = %d:%d, want 3:5", tr.Line, tr.Column)
	}
	wantStack := "at fail(3:5)\nat <anonymous>(5:1)"
	if got := tr.Stack(); got != wantStack {
		t.Fatalf("stack = %q, want %q", got, wantStack)
	}
}

func TestTranslateUndoesLine1Prologue(t *testing.T) {
	smap := srcmap.Identity("user.js", "user", 2)
	// Column 20 on generated line 1 includes a 15-byte prologue.
	tr, err := Translate("boom", "\tat f (user.js:1:20)\n", "user", smap, 15)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if tr.Line != 1 || tr.Column != 1 {
		t.Fatalf("primary location = %d:%d, want 1:1", tr.Line, tr.Column)
	}
}

func TestTranslateNoUserFramesIsDefect(t *testing.T) {
	smap := srcmap.Identity("user.js", "user", 1)
	_, err := Translate("boom", "\tat run (__harness.js:6:1)\n", "user", smap, 0)
	if err == nil || !defect.Is(err) {
		t.Fatalf("expected a defect, got %v", err)
	}
}

func TestTranslateUnreadableMapIsDefect(t *testing.T) {
	_, err := Translate("boom", "\tat f (user.js:1:1)\n", "user", "{not json", 0)
	if err == nil || !defect.Is(err) {
		t.Fatalf("expected a defect, got %v", err)
	}
}
