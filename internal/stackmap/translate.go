package stackmap

import (
	"fmt"
	"strings"

	"github.com/go-sourcemap/sourcemap"

	"enclave/internal/defect"
)

// MessagePrefix tags every translated runtime failure.
const MessagePrefix = "Runtime Error: "

// UserFrame is a stack frame relocated into the original user source.
type UserFrame struct {
	Func   string
	Line   int // 1-based, original source
	Column int // 1-based, original source
}

func (f UserFrame) String() string {
	name := f.Func
	if name == "" {
		name = "<anonymous>"
	}
	return fmt.Sprintf("at %s(%d:%d)", name, f.Line, f.Column)
}

// Trace is the translated failure: a message with the fixed prefix, the
// retained user frames innermost first, and the primary location taken
// from the innermost frame.
type Trace struct {
	Message string
	Frames  []UserFrame
	Line    int
	Column  int
}

// Stack renders the retained frames, newline-joined, most specific first.
func (t *Trace) Stack() string {
	lines := make([]string, len(t.Frames))
	for i, f := range t.Frames {
		lines[i] = f.String()
	}
	return strings.Join(lines, "\n")
}

// Translate relocates a thrown failure into original user-source
// positions.
//
// userID names the user unit; line1Shift is the column offset the
// executor's single-line module prologue adds to frames on generated
// line 1. A failure with no user-unit frame at all, or none that the
// source map can resolve, indicates a defect in auxiliary code or the
// pipeline itself and is returned as such, never absorbed.
func Translate(message, stack, userID, sourceMap string, line1Shift int) (*Trace, error) {
	frames := ParseStack(stack)

	var userFrames []Frame
	for _, f := range frames {
		if f.File == userID {
			userFrames = append(userFrames, f)
		}
	}
	if len(userFrames) == 0 {
		return nil, defect.New("translate",
			"runtime failure carries no user frames (message: %s)", message)
	}

	consumer, err := sourcemap.Parse("", []byte(sourceMap))
	if err != nil {
		return nil, defect.Wrap("translate", err, "user unit source map is unreadable")
	}

	trace := &Trace{Message: MessagePrefix + message}
	for _, f := range userFrames {
		col := f.Column
		if f.Line == 1 {
			col -= line1Shift
			if col < 1 {
				col = 1
			}
		}
		_, name, origLine, origCol, ok := consumer.Source(f.Line, col)
		if !ok || origLine == 0 {
			// generated position has no original counterpart; the
			// frame is dropped even when an outer frame resolves
			continue
		}
		fn := f.Func
		if fn == "" {
			fn = name
		}
		trace.Frames = append(trace.Frames, UserFrame{
			Func:   fn,
			Line:   origLine,
			Column: origCol,
		})
	}
	if len(trace.Frames) == 0 {
		return nil, defect.New("translate",
			"no user frame resolves through the source map (message: %s)", message)
	}

	trace.Line = trace.Frames[0].Line
	trace.Column = trace.Frames[0].Column
	return trace, nil
}
