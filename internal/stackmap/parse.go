// Package stackmap translates a runtime failure's call stack back into
// original source positions. Stacks produced by the sandbox carry frames
// from the synthesized harness and positions in transpiled code; only
// frames from the user unit that resolve through the source map survive
// translation.
package stackmap

import (
	"regexp"
	"strconv"
	"strings"

	"enclave/internal/source"
)

// Frame is one parsed stack entry. Func may be empty for top-level or
// anonymous frames; Line and Column are positions in the generated code.
type Frame struct {
	Func   string
	File   string
	Line   int
	Column int
}

// frameRe matches the location part "file:line:col" with an optional
// trailing "(pc)" the VM appends.
var frameRe = regexp.MustCompile(`^(.+):(\d+):(\d+)(?:\(\d+\))?$`)

// ParseStack splits a VM stack string into frames, innermost first.
// Lines that are not frame entries (the message line, native frames) are
// skipped.
func ParseStack(stack string) []Frame {
	var frames []Frame
	for _, line := range strings.Split(stack, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "at ") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(line, "at "))

		name := ""
		loc := rest
		if i := strings.LastIndex(rest, " ("); i >= 0 && strings.HasSuffix(rest, ")") {
			name = strings.TrimSpace(rest[:i])
			loc = rest[i+2 : len(rest)-1]
		}
		if loc == "native" || loc == "<native>" {
			continue
		}

		m := frameRe.FindStringSubmatch(loc)
		if m == nil {
			continue
		}
		ln, err1 := strconv.Atoi(m[2])
		col, err2 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil {
			continue
		}
		frames = append(frames, Frame{
			Func:   name,
			File:   source.StripIdentifier(m[1]),
			Line:   ln,
			Column: col,
		})
	}
	return frames
}
