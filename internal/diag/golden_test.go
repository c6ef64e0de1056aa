package diag

import (
	"testing"

	"enclave/internal/source"
)

func TestFormatGolden(t *testing.T) {
	units := source.NewTable()
	userIdx := units.Add("user", []byte("a\nbb\n"), false)
	helperIdx := units.Add("helpers", []byte("x\n"), false)

	diags := []Diagnostic{
		{
			Code:    2322,
			Message: "first line\nsecond",
			Primary: source.Span{Unit: userIdx, Start: 2, End: 3},
		},
		{
			Code:    2304,
			Message: "another",
			Primary: source.Span{Unit: userIdx, Start: 0, End: 1},
		},
		{
			Code:    1005,
			Message: "aux",
			Primary: source.Span{Unit: helperIdx, Start: 0, End: 1},
		},
	}

	expected := "TS1005 helpers:1:1 aux\n" +
		"TS2304 user:1:1 another\n" +
		"TS2322 user:2:1 first line second"

	if got := FormatGolden(diags, units); got != expected {
		t.Fatalf("unexpected golden rendering:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}
}

func TestFormatGoldenEmpty(t *testing.T) {
	if got := FormatGolden(nil, source.NewTable()); got != "" {
		t.Fatalf("FormatGolden(nil) = %q, want empty", got)
	}
}
