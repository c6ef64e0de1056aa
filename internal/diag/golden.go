package diag

import (
	"fmt"
	"sort"
	"strings"

	"enclave/internal/source"
)

type goldenDiagnostic struct {
	Code    int
	Unit    string
	Line    uint32
	Column  uint32
	Message string
}

// FormatGolden renders diagnostics into a stable, single-line-per-entry
// representation suitable for golden comparisons in tests:
//
//	TS2322 user:3:5 Type 'string' is not assignable to type 'number'.
func FormatGolden(diags []Diagnostic, units *source.Table) string {
	if units == nil || len(diags) == 0 {
		return ""
	}

	rendered := make([]goldenDiagnostic, 0, len(diags))
	for _, d := range diags {
		start, _ := units.Resolve(d.Primary)
		rendered = append(rendered, goldenDiagnostic{
			Code:    d.Code,
			Unit:    units.Get(d.Primary.Unit).ID,
			Line:    start.Line,
			Column:  start.Col,
			Message: sanitizeMessage(d.Message),
		})
	}

	sort.SliceStable(rendered, func(i, j int) bool {
		di, dj := rendered[i], rendered[j]
		if di.Unit != dj.Unit {
			return di.Unit < dj.Unit
		}
		if di.Line != dj.Line {
			return di.Line < dj.Line
		}
		if di.Column != dj.Column {
			return di.Column < dj.Column
		}
		if di.Code != dj.Code {
			return di.Code < dj.Code
		}
		return di.Message < dj.Message
	})

	var b strings.Builder
	for i, d := range rendered {
		fmt.Fprintf(&b, "TS%d %s:%d:%d %s", d.Code, d.Unit, d.Line, d.Column, d.Message)
		if i < len(rendered)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
