// Package trace emits per-phase timing events for pipeline invocations.
// The default tracer is a no-op; hosts opt in through the pipeline's
// WithTracer option.
package trace

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Phase names one pipeline stage.
type Phase string

const (
	PhaseSynthesize Phase = "synthesize"
	PhaseCompile    Phase = "compile"
	PhaseRelocate   Phase = "relocate"
	PhaseExecute    Phase = "execute"
	PhaseTranslate  Phase = "translate"
)

// Event is one completed phase.
type Event struct {
	Phase  Phase
	Dur    time.Duration
	Detail string
}

// Tracer receives phase events. Implementations must be goroutine-safe;
// the host may run many invocations concurrently.
type Tracer interface {
	Emit(ev Event)
	Enabled() bool
}

// Span starts timing a phase and returns a func that emits the completed
// event. Detail is rendered lazily only when the tracer is enabled.
func Span(t Tracer, phase Phase, detail func() string) func() {
	if t == nil || !t.Enabled() {
		return func() {}
	}
	start := time.Now()
	return func() {
		ev := Event{Phase: phase, Dur: time.Since(start)}
		if detail != nil {
			ev.Detail = detail()
		}
		t.Emit(ev)
	}
}

// WriterTracer renders events as single text lines to an io.Writer.
type WriterTracer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterTracer(w io.Writer) *WriterTracer {
	return &WriterTracer{w: w}
}

func (t *WriterTracer) Emit(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ev.Detail != "" {
		fmt.Fprintf(t.w, "%-10s %12s %s\n", ev.Phase, ev.Dur, ev.Detail)
		return
	}
	fmt.Fprintf(t.w, "%-10s %12s\n", ev.Phase, ev.Dur)
}

func (t *WriterTracer) Enabled() bool {
	return true
}
