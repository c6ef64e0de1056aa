// Package compile presents the user unit, the synthesized harness and any
// auxiliary units to the compiler front end as one in-memory virtual file
// set, and sorts the front end's output into an artifact payload or a set
// of raw diagnostics.
package compile

import (
	"context"
	"fmt"

	"fortio.org/safecast"

	"enclave/frontend"
	"enclave/internal/defect"
	"enclave/internal/diag"
	"enclave/internal/harness"
	"enclave/internal/source"
)

// Output is the orchestrator's result. When Diags is non-empty the emit
// fields are zero: diagnostics and artifacts never coexist.
type Output struct {
	Units      *source.Table
	UserIdx    source.UnitIdx
	HarnessIdx source.UnitIdx

	Emitted   map[string]string
	SourceMap string
	Export    frontend.ExportShape

	Diags *diag.Bag
}

// Orchestrate compiles the virtual file set through fe.
//
// Diagnostics without an originating unit are inspected by code: the
// implicit-lib code is dropped, anything else is a configuration-level
// pipeline defect and aborts the whole operation. Diagnostics anchored in
// auxiliary units are defects too; auxiliary sources are host-supplied and
// trusted.
func Orchestrate(ctx context.Context, fe frontend.Frontend, userID, userText string, h *harness.Harness, aux []frontend.Unit, opts frontend.Options, maxDiags int) (*Output, error) {
	units := source.NewTable()
	userIdx := units.Add(userID, []byte(userText), false)
	harnessIdx := units.Add(h.ID, []byte(h.Text), false)
	for _, a := range aux {
		stripped := source.StripIdentifier(a.ID)
		if _, ok := units.Lookup(stripped); ok {
			return nil, defect.New("compile",
				"auxiliary unit %q collides with an existing unit", a.ID)
		}
		units.Add(a.ID, []byte(a.Text), a.DeclarationOnly)
	}

	// The front end sees the table's normalized text, never the raw
	// submission: diagnostic offsets and export ranges must index the
	// same bytes the table resolves.
	req := frontend.Request{
		UserID:    source.StripIdentifier(userID),
		HarnessID: h.ID,
		Units:     make([]frontend.Unit, 0, 2+len(aux)),
		Options:   opts,
	}
	req.Units = append(req.Units,
		frontend.Unit{ID: source.StripIdentifier(userID), Text: string(units.Get(userIdx).Text)},
		h.Unit(),
	)
	for _, a := range aux {
		u, _ := units.Lookup(a.ID)
		req.Units = append(req.Units, frontend.Unit{
			ID:              a.ID,
			Text:            string(u.Text),
			DeclarationOnly: a.DeclarationOnly,
		})
	}

	res, err := fe.Compile(ctx, req)
	if err != nil {
		return nil, defect.Wrap("compile", err, "front end failed")
	}

	out := &Output{
		Units:      units,
		UserIdx:    userIdx,
		HarnessIdx: harnessIdx,
		Diags:      diag.NewBag(maxDiags),
	}

	for _, d := range res.Diagnostics {
		if d.UnitID == "" {
			if d.Code == frontend.ImplicitLibCode {
				continue
			}
			return nil, defect.New("compile",
				"file-less diagnostic TS%d: %s", d.Code, d.Message)
		}
		u, ok := units.Lookup(d.UnitID)
		if !ok {
			return nil, defect.New("compile",
				"diagnostic references unknown unit %q", d.UnitID)
		}
		if u.DeclarationOnly || (u.Idx != userIdx && u.Idx != harnessIdx) {
			return nil, defect.New("compile",
				"diagnostic TS%d in auxiliary unit %q: %s", d.Code, u.ID, d.Message)
		}
		out.Diags.Add(toInternal(d, u))
	}

	if !out.Diags.Empty() {
		out.Diags.Sort()
		out.Diags.Dedup()
		return out, nil
	}

	// Successful compile: every emit target must be present.
	if res.Emitted == nil {
		return nil, defect.New("compile", "front end emitted nothing without diagnostics")
	}
	for _, u := range units.Units() {
		if u.DeclarationOnly {
			continue
		}
		if _, ok := res.Emitted[u.ID]; !ok {
			return nil, defect.New("compile", "emit target %q missing from output", u.ID)
		}
	}
	if res.SourceMap == "" {
		return nil, defect.New("compile", "user unit source map missing from output")
	}

	out.Emitted = res.Emitted
	out.SourceMap = res.SourceMap
	out.Export = res.Export
	return out, nil
}

func toInternal(d frontend.Diagnostic, u *source.Unit) diag.Diagnostic {
	start := clampOffset(d.Range.Start, len(u.Text))
	end := clampOffset(d.Range.End(), len(u.Text))
	if end < start {
		end = start
	}
	out := diag.New(d.Code, source.Span{
		Unit:  u.Idx,
		Start: mustUint32(start),
		End:   mustUint32(end),
	}, d.Message)
	for _, rel := range d.Related {
		out = out.WithRelated(rel)
	}
	return out
}

func clampOffset(off, max int) int {
	if off < 0 {
		return 0
	}
	if off > max {
		return max
	}
	return off
}

func mustUint32(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("offset overflow: %w", err))
	}
	return v
}
