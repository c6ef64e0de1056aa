package trace

// nopTracer is the zero-overhead default when tracing is disabled.
type nopTracer struct{}

func (nopTracer) Emit(Event) {}

func (nopTracer) Enabled() bool { return false }

// Nop is the package-level singleton nop tracer.
var Nop Tracer = nopTracer{}
