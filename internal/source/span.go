package source

import (
	"fmt"
)

// UnitIdx identifies a source unit within a Table.
type UnitIdx uint32

// Span is a half-open byte range [Start, End) inside a single unit.
type Span struct {
	Unit  UnitIdx
	Start uint32
	End   uint32
}

func (s Span) Empty() bool {
	return s.Start == s.End
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.Unit, s.Start, s.End)
}

// Contains reports whether other lies fully inside s. Both spans must
// belong to the same unit.
func (s Span) Contains(other Span) bool {
	return s.Unit == other.Unit && s.Start <= other.Start && other.End <= s.End
}

// LineCol is a human-readable position, 1-based in both fields.
type LineCol struct {
	Line uint32
	Col  uint32
}
