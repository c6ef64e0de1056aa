package enclave

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

var (
	prettyCodeColor  = color.New(color.FgYellow, color.Bold)
	prettyCaretColor = color.New(color.FgRed, color.Bold)
	prettyGutter     = color.New(color.FgCyan)
)

// PrettyRenderer formats failures for human consumption: a header line in
// the "TS<code> <unit>:<line>:<col>: <message>" shape, followed by the
// offending source line with a caret run underneath.
type PrettyRenderer struct {
	// Colorize enables ANSI colors. Off, the output is plain text.
	Colorize bool
}

// Diagnostic writes one compile-time failure with its source excerpt.
// src must be the same text the diagnostic was produced against.
func (r *PrettyRenderer) Diagnostic(w io.Writer, src string, d *Diagnostic) {
	header := fmt.Sprintf("TS%d %s:%d:%d: %s",
		d.Code, userUnitID, d.Loc.Line, d.Loc.Column, d.Msg)
	if r.Colorize {
		header = prettyCodeColor.Sprintf("TS%d", d.Code) + fmt.Sprintf(" %s:%d:%d: %s",
			userUnitID, d.Loc.Line, d.Loc.Column, d.Msg)
	}
	fmt.Fprintln(w, header)
	r.excerpt(w, src, d.Loc, d.Length)
}

// Runtime writes one runtime failure and its translated stack.
func (r *PrettyRenderer) Runtime(w io.Writer, e *RuntimeError) {
	msg := e.Msg
	if r.Colorize {
		msg = prettyCaretColor.Sprint(e.Msg)
	}
	fmt.Fprintln(w, msg)
	if e.StackTrace != "" {
		for _, line := range strings.Split(e.StackTrace, "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

// excerpt prints the source line the failure points at, a gutter with the
// line number, and a caret run covering length characters (at least one).
// Caret alignment accounts for wide runes in the prefix.
func (r *PrettyRenderer) excerpt(w io.Writer, src string, loc Location, length int) {
	lines := strings.Split(src, "\n")
	if loc.Line < 1 || loc.Line > len(lines) {
		return
	}
	text := strings.TrimRight(lines[loc.Line-1], "\r")

	col := loc.Column
	if col < 1 {
		col = 1
	}
	runes := []rune(text)
	if col > len(runes)+1 {
		col = len(runes) + 1
	}
	pad := runewidth.StringWidth(string(runes[:col-1]))

	n := length
	if max := len(runes) - (col - 1); n > max {
		n = max
	}
	if n < 1 {
		n = 1
	}
	carets := strings.Repeat("^", runewidth.StringWidth(string(runes[col-1:min(col-1+n, len(runes))])))
	if carets == "" {
		carets = "^"
	}

	gutter := fmt.Sprintf("%4d | ", loc.Line)
	blank := strings.Repeat(" ", len(gutter)-2) + "| "
	if r.Colorize {
		gutter = prettyGutter.Sprint(gutter)
		blank = prettyGutter.Sprint(blank)
		carets = prettyCaretColor.Sprint(carets)
	}
	fmt.Fprintf(w, "%s%s\n", gutter, text)
	fmt.Fprintf(w, "%s%s%s\n", blank, strings.Repeat(" ", pad), carets)
}
