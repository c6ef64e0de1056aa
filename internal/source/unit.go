package source

import (
	"fmt"

	"fortio.org/safecast"
)

// Unit is one logical source file presented to the compiler front end.
// Identity is the stripped identifier: "./user.ts", "user.ts" and "user"
// all name the same unit.
type Unit struct {
	Idx             UnitIdx
	ID              string // stripped identifier
	Text            []byte
	LineIdx         []uint32
	DeclarationOnly bool
}

// Span covers the unit's entire text.
func (u *Unit) Span() Span {
	n, err := safecast.Conv[uint32](len(u.Text))
	if err != nil {
		panic(fmt.Errorf("unit %q too large: %w", u.ID, err))
	}
	return Span{Unit: u.Idx, Start: 0, End: n}
}

// Table holds the units of one pipeline invocation. It is private to the
// invocation and never shared.
type Table struct {
	units []Unit
	index map[string]UnitIdx
}

func NewTable() *Table {
	return &Table{
		units: make([]Unit, 0, 4),
		index: make(map[string]UnitIdx),
	}
}

// Add normalizes the text (BOM, CRLF), computes the line index and stores
// the unit under its stripped identifier. Adding an identifier twice
// replaces the earlier text: two units sharing an identifier are the same
// logical file.
func (t *Table) Add(id string, text []byte, declarationOnly bool) UnitIdx {
	text, _ = removeBOM(text)
	text, _ = normalizeCRLF(text)
	stripped := StripIdentifier(id)

	if prev, ok := t.index[stripped]; ok {
		u := &t.units[prev]
		u.Text = text
		u.LineIdx = buildLineIndex(text)
		u.DeclarationOnly = declarationOnly
		return prev
	}

	n, err := safecast.Conv[uint32](len(t.units))
	if err != nil {
		panic(fmt.Errorf("unit count overflow: %w", err))
	}
	idx := UnitIdx(n)
	t.units = append(t.units, Unit{
		Idx:             idx,
		ID:              stripped,
		Text:            text,
		LineIdx:         buildLineIndex(text),
		DeclarationOnly: declarationOnly,
	})
	t.index[stripped] = idx
	return idx
}

func (t *Table) Len() int {
	return len(t.units)
}

// Get returns the unit for the given index.
func (t *Table) Get(idx UnitIdx) *Unit {
	return &t.units[idx]
}

// Lookup resolves a (possibly unstripped) identifier to a unit.
func (t *Table) Lookup(id string) (*Unit, bool) {
	idx, ok := t.index[StripIdentifier(id)]
	if !ok {
		return nil, false
	}
	return &t.units[idx], true
}

// Units returns the backing slice. Callers must not modify it.
func (t *Table) Units() []Unit {
	return t.units
}

// Resolve converts a span into start/end line-column positions.
func (t *Table) Resolve(span Span) (start, end LineCol) {
	u := &t.units[span.Unit]
	return toLineCol(u.LineIdx, span.Start), toLineCol(u.LineIdx, span.End)
}

// Line returns the text of the given 1-based line, without the trailing
// newline. Out-of-range lines yield "".
func (u *Unit) Line(lineNum uint32) string {
	if lineNum == 0 {
		return ""
	}
	lenIdx, err := safecast.Conv[uint32](len(u.LineIdx))
	if err != nil {
		panic(fmt.Errorf("line index overflow: %w", err))
	}
	lenText, err := safecast.Conv[uint32](len(u.Text))
	if err != nil {
		panic(fmt.Errorf("unit length overflow: %w", err))
	}

	var start uint32
	switch {
	case lineNum == 1:
		start = 0
	case (lineNum - 2) < lenIdx:
		start = u.LineIdx[lineNum-2] + 1
	default:
		return ""
	}

	end := lenText
	if (lineNum - 1) < lenIdx {
		end = u.LineIdx[lineNum-1]
	}
	if start >= lenText {
		return ""
	}
	if end > lenText {
		end = lenText
	}
	return string(u.Text[start:end])
}
