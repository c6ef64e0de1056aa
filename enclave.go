// Package enclave executes untrusted, dynamically supplied source against
// a declared function signature: it synthesizes an invocation harness
// around the submission, compiles both through a pluggable compiler front
// end, relocates harness-anchored diagnostics back into the submitted
// source, runs the compiled modules in an isolated realm under a timeout,
// and maps runtime stack traces back to original positions.
//
// Public operations never raise for user-caused failures; those travel
// through the Result container. The plain error return is reserved for
// pipeline defects — internal inconsistencies hosts should alert on.
package enclave

import (
	"context"
	"fmt"
	"time"

	"enclave/frontend"
	"enclave/internal/compile"
	"enclave/internal/defect"
	"enclave/internal/diag"
	"enclave/internal/harness"
	"enclave/internal/relocate"
	"enclave/internal/source"
	"enclave/internal/stackmap"
	"enclave/sandbox"
	"enclave/trace"
)

// userUnitID is the logical identifier under which the submitted source
// is presented to the front end.
const userUnitID = "user"

// Pipeline is the compile-verify-execute pipeline. It is stateless across
// invocations (the artifact cache aside) and safe for concurrent use.
type Pipeline struct {
	fe             frontend.Frontend
	tracer         trace.Tracer
	cache          *ArtifactCache
	compilerOpts   frontend.Options
	renderers      relocate.Renderers
	maxDiags       int
	defaultTimeout time.Duration
}

// New builds a pipeline around the given compiler front end.
func New(fe frontend.Frontend, opts ...Option) *Pipeline {
	p := &Pipeline{
		fe:             fe,
		tracer:         trace.Nop,
		renderers:      make(relocate.Renderers),
		maxDiags:       defaultMaxDiagnostics,
		defaultTimeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Preprocess compiles the submission against the declared types and
// returns the executable artifact, or the diagnostics that prevented
// emission. The artifact may be cached and replayed across many
// executions with different arguments.
func (p *Pipeline) Preprocess(ctx context.Context, src string, opts ...CallOption) (Result[*Artifact], error) {
	cc := p.newCallConfig(opts)
	a, errs, err := p.preprocess(ctx, src, cc)
	if err != nil {
		return Result[*Artifact]{}, err
	}
	if a == nil {
		return Fail[*Artifact](errs...), nil
	}
	return Ok(a), nil
}

// ExecuteFromSource is the convenience composition of Preprocess and
// ExecuteFromArtifact.
func (p *Pipeline) ExecuteFromSource(ctx context.Context, src string, args []any, opts ...CallOption) (Result[any], error) {
	cc := p.newCallConfig(opts)
	a, errs, err := p.preprocess(ctx, src, cc)
	if err != nil {
		return Result[any]{}, err
	}
	if a == nil {
		return Fail[any](errs...), nil
	}
	return p.execute(a, args, cc)
}

// ExecuteFromArtifact runs a previously preprocessed artifact.
func (p *Pipeline) ExecuteFromArtifact(ctx context.Context, a *Artifact, args []any, opts ...CallOption) (Result[any], error) {
	if err := ctx.Err(); err != nil {
		return Result[any]{}, err
	}
	cc := p.newCallConfig(opts)
	return p.execute(a, args, cc)
}

func (p *Pipeline) preprocess(ctx context.Context, src string, cc *callConfig) (*Artifact, []Error, error) {
	if p.cache != nil {
		key := cacheKey(src, cc, p.compilerOpts)
		return p.cache.do(key, func() (*Artifact, []Error, error) {
			return p.compileOnce(ctx, src, cc)
		})
	}
	return p.compileOnce(ctx, src, cc)
}

func (p *Pipeline) compileOnce(ctx context.Context, src string, cc *callConfig) (*Artifact, []Error, error) {
	done := trace.Span(p.tracer, trace.PhaseSynthesize, nil)
	auxIDs := make([]string, 0, len(cc.aux))
	for _, u := range cc.aux {
		if !u.DeclarationOnly {
			auxIDs = append(auxIDs, source.StripIdentifier(u.ID))
		}
	}
	h := harness.Synthesize(userUnitID, cc.returnType, cc.argTypes, auxIDs)
	done()

	done = trace.Span(p.tracer, trace.PhaseCompile, func() string {
		return fmt.Sprintf("units=%d", 2+len(cc.aux))
	})
	out, err := compile.Orchestrate(ctx, p.fe, userUnitID, src, h, cc.aux, p.compilerOpts, p.maxDiags)
	done()
	if err != nil {
		return nil, nil, err
	}

	if !out.Diags.Empty() {
		done = trace.Span(p.tracer, trace.PhaseRelocate, func() string {
			return fmt.Sprintf("diagnostics=%d", out.Diags.Len())
		})
		relocated, rerr := relocate.Relocate(out.Diags, &relocate.Context{
			Units:      out.Units,
			UserIdx:    out.UserIdx,
			Harness:    h,
			HarnessIdx: out.HarnessIdx,
			Export:     out.Export,
			Renderers:  p.renderers,
		})
		done()
		if rerr != nil {
			return nil, nil, rerr
		}
		return nil, p.publicDiagnostics(relocated, out.Units), nil
	}

	return &Artifact{
		Modules:   out.Emitted,
		SourceMap: out.SourceMap,
		Entry:     h.ID,
		User:      userUnitID,
	}, nil, nil
}

func (p *Pipeline) execute(a *Artifact, args []any, cc *callConfig) (Result[any], error) {
	if a == nil || len(a.Modules) == 0 {
		return Result[any]{}, defect.New("execute", "empty artifact")
	}
	realm := cc.realm
	if realm == nil {
		realm = sandbox.NewRealm()
	}

	done := trace.Span(p.tracer, trace.PhaseExecute, func() string {
		return fmt.Sprintf("modules=%d timeout=%s", len(a.Modules), cc.timeout)
	})
	value, thrown, err := sandbox.Execute(sandbox.Request{
		Modules: a.Modules,
		Entry:   a.Entry,
		Args:    args,
		Timeout: cc.timeout,
		Realm:   realm,
	})
	done()
	if err != nil {
		return Result[any]{}, err
	}
	if thrown == nil {
		return Ok[any](value), nil
	}

	if thrown.Unlocated {
		return Fail[any](&RuntimeError{
			Msg: stackmap.MessagePrefix + thrown.Message,
			Loc: Location{Line: 1, Column: 1},
		}), nil
	}

	done = trace.Span(p.tracer, trace.PhaseTranslate, nil)
	tr, terr := stackmap.Translate(thrown.Message, thrown.Stack, a.User, a.SourceMap, sandbox.Line1Shift)
	done()
	if terr != nil {
		return Result[any]{}, terr
	}
	return Fail[any](&RuntimeError{
		Msg:        tr.Message,
		StackTrace: tr.Stack(),
		Loc:        Location{Line: tr.Line, Column: tr.Column},
	}), nil
}

func (p *Pipeline) publicDiagnostics(ds []diag.Diagnostic, units *source.Table) []Error {
	errs := make([]Error, 0, len(ds))
	for _, d := range ds {
		start, _ := units.Resolve(d.Primary)
		errs = append(errs, &Diagnostic{
			Code:   d.Code,
			Msg:    d.Message,
			Loc:    Location{Line: int(start.Line), Column: int(start.Col)},
			Length: int(d.Primary.Len()),
		})
	}
	return errs
}

func isDefect(err error) bool {
	return defect.Is(err)
}
