package sandbox

import (
	"fmt"
	"time"

	"github.com/dop251/goja"

	"enclave/internal/defect"
	"enclave/internal/harness"
	"enclave/internal/source"
)

// Module bodies run inside a single-line function wrapper so that var
// declarations stay scoped to the module and the same source can execute
// repeatedly in one realm. The prologue adds no line, only a column shift
// on line 1; Line1Shift lets the stack translator undo it.
const (
	modulePrologue = ";(function() { "
	moduleEpilogue = "\n})();"
)

// Line1Shift is the column offset the module prologue adds to stack
// positions on generated line 1.
const Line1Shift = len(modulePrologue)

// Request is one execution of a compiled artifact inside a realm.
type Request struct {
	// Modules maps stripped unit identifier to emitted executable text.
	Modules map[string]string
	// Entry is the harness module's identifier.
	Entry string
	// Args is the argument tuple installed as the ambient args binding.
	Args []any
	// Timeout is the wall-clock budget for the evaluation.
	Timeout time.Duration
	Realm   *Realm
}

// Thrown captures a runtime failure: the thrown value's message and its
// raw call stack, still in generated-code positions. Unlocated marks
// failures that never produced a stack (an asynchronous result that could
// not settle).
type Thrown struct {
	Message   string
	Stack     string
	Unlocated bool
}

// Execute links the emitted modules inside the realm and evaluates the
// entry module under the timeout.
//
// The returned error is non-nil only for pipeline defects (unresolved
// imports, uncompilable emitted code). A thrown failure or timeout is the
// recoverable path and comes back as *Thrown. Ambient bindings are removed
// from the realm on every exit path.
func Execute(req Request) (value any, thrown *Thrown, err error) {
	r := req.Realm
	r.mu.Lock()
	defer r.mu.Unlock()
	vm := r.vm

	ld := &loader{
		vm:       vm,
		programs: make(map[string]*goja.Program, len(req.Modules)),
		exports:  make(map[string]*goja.Object, len(req.Modules)),
	}
	for id, text := range req.Modules {
		prog, cerr := goja.Compile(id+".js", modulePrologue+text+moduleEpilogue, false)
		if cerr != nil {
			return nil, nil, defect.Wrap("execute", cerr,
				"emitted code for unit %q does not compile", id)
		}
		ld.programs[source.StripIdentifier(id)] = prog
	}

	if serr := vm.Set(harness.ArgsBinding, vm.NewArray(req.Args...)); serr != nil {
		return nil, nil, defect.Wrap("execute", serr, "cannot install args binding")
	}
	if serr := vm.Set(harness.ResultBinding, goja.Undefined()); serr != nil {
		return nil, nil, defect.Wrap("execute", serr, "cannot install result binding")
	}
	if serr := vm.Set("require", ld.requireFunc()); serr != nil {
		return nil, nil, defect.Wrap("execute", serr, "cannot install require")
	}
	defer func() {
		global := vm.GlobalObject()
		_ = global.Delete(harness.ArgsBinding)
		_ = global.Delete(harness.ResultBinding)
		_ = global.Delete("require")
		_ = global.Delete("module")
		_ = global.Delete("exports")
	}()

	timer := time.AfterFunc(req.Timeout, func() {
		vm.Interrupt("execution timed out")
	})
	// Stop must precede ClearInterrupt: the reverse order can let the
	// timer fire in between and leave a stale interrupt on the realm.
	defer func() {
		timer.Stop()
		vm.ClearInterrupt()
	}()

	_, runErr := ld.load(source.StripIdentifier(req.Entry))
	if ld.linkDefect != nil {
		return nil, nil, ld.linkDefect
	}
	if runErr != nil {
		switch e := runErr.(type) {
		case *goja.InterruptedError:
			r.tainted = true
			return nil, &Thrown{
				Message: fmt.Sprintf("execution timed out after %s", req.Timeout),
				Stack:   e.String(),
			}, nil
		case *goja.Exception:
			return nil, thrownFromValue(e.Value(), e.String()), nil
		default:
			return nil, nil, defect.Wrap("execute", runErr, "evaluation failed")
		}
	}

	return readResult(vm)
}

// readResult extracts the ambient result slot, unwrapping a settled
// promise from the drained job queue.
func readResult(vm *goja.Runtime) (any, *Thrown, error) {
	v := vm.GlobalObject().Get(harness.ResultBinding)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil, nil
	}
	if p, ok := v.Export().(*goja.Promise); ok {
		switch p.State() {
		case goja.PromiseStateFulfilled:
			return p.Result().Export(), nil, nil
		case goja.PromiseStateRejected:
			res := p.Result()
			return nil, thrownFromValue(res, res.String()), nil
		default:
			return nil, &Thrown{
				Message:   "asynchronous result never settled",
				Unlocated: true,
			}, nil
		}
	}
	return v.Export(), nil, nil
}

// thrownFromValue pulls message and stack from a thrown JS value,
// falling back to the rendered exception text.
func thrownFromValue(v goja.Value, rendered string) *Thrown {
	t := &Thrown{Message: rendered, Stack: rendered}
	obj, ok := v.(*goja.Object)
	if !ok {
		if v != nil {
			t.Message = v.String()
		}
		return t
	}
	if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
		t.Message = msg.String()
	}
	if st := obj.Get("stack"); st != nil && !goja.IsUndefined(st) {
		t.Stack = st.String()
	}
	return t
}

// loader links modules CommonJS-style: require resolves by stripped
// identifier against the emitted module set. All referenced units were
// supposed to have been emitted, so an unresolved import is a resolver
// bug, reported as a defect rather than a user error.
type loader struct {
	vm       *goja.Runtime
	programs map[string]*goja.Program
	exports  map[string]*goja.Object
	loading  map[string]bool

	linkDefect error
}

func (l *loader) requireFunc() func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			l.fail(defect.New("execute", "require called without a module id"))
		}
		id := source.StripIdentifier(call.Arguments[0].String())
		exp, err := l.load(id)
		if err != nil {
			if ex, ok := err.(*goja.Exception); ok {
				// rethrow the original value so its stack survives
				panic(ex.Value())
			}
			l.fail(defect.Wrap("execute", err, "loading module %q failed", id))
		}
		return exp
	}
}

// fail records a defect and aborts the current evaluation by throwing.
func (l *loader) fail(d error) {
	if l.linkDefect == nil {
		l.linkDefect = d
	}
	panic(l.vm.ToValue(d.Error()))
}

func (l *loader) load(id string) (*goja.Object, error) {
	if exp, ok := l.exports[id]; ok {
		return exp, nil
	}
	prog, ok := l.programs[id]
	if !ok {
		err := defect.New("execute", "unresolved import %q", id)
		if l.linkDefect == nil {
			l.linkDefect = err
		}
		return nil, err
	}
	if l.loading == nil {
		l.loading = make(map[string]bool)
	}
	if l.loading[id] {
		// import cycle: hand back the partial exports, CommonJS-style
		return l.exports[id], nil
	}
	l.loading[id] = true
	defer delete(l.loading, id)

	vm := l.vm
	module := vm.NewObject()
	exports := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}
	l.exports[id] = exports

	global := vm.GlobalObject()
	prevModule := global.Get("module")
	prevExports := global.Get("exports")
	_ = vm.Set("module", module)
	_ = vm.Set("exports", exports)
	defer func() {
		_ = vm.Set("module", orUndefined(prevModule))
		_ = vm.Set("exports", orUndefined(prevExports))
	}()

	if _, err := vm.RunProgram(prog); err != nil {
		delete(l.exports, id)
		return nil, err
	}

	// the module may have reassigned module.exports wholesale
	if final, ok := module.Get("exports").(*goja.Object); ok {
		l.exports[id] = final
	}
	return l.exports[id], nil
}

func orUndefined(v goja.Value) goja.Value {
	if v == nil {
		return goja.Undefined()
	}
	return v
}
