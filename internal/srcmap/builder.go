// Package srcmap builds source map v3 documents for emitting front ends
// and tests. Consumption (position lookup) goes through
// github.com/go-sourcemap/sourcemap; this package only covers the
// generation side, which that library does not provide.
package srcmap

import (
	"encoding/json"
	"sort"
	"strings"
)

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

type mapping struct {
	genLine int // 1-based
	genCol  int // 0-based
	srcLine int // 0-based
	srcCol  int // 0-based
}

// Builder accumulates mappings from one generated file back to one
// original source.
type Builder struct {
	file     string
	source   string
	mappings []mapping
	maxLine  int
}

func NewBuilder(generatedFile, sourceFile string) *Builder {
	return &Builder{file: generatedFile, source: sourceFile}
}

// Add records that generated (genLine, genCol) originates from source
// (srcLine, srcCol). Lines and columns are 1-based, matching compiler
// diagnostics; the v3 zero-based encoding is internal.
func (b *Builder) Add(genLine, genCol, srcLine, srcCol int) {
	if genLine < 1 || genCol < 1 || srcLine < 1 || srcCol < 1 {
		return
	}
	b.mappings = append(b.mappings, mapping{
		genLine: genLine,
		genCol:  genCol - 1,
		srcLine: srcLine - 1,
		srcCol:  srcCol - 1,
	})
	if genLine > b.maxLine {
		b.maxLine = genLine
	}
}

// AddLineIdentity maps n generated lines one-to-one onto the source,
// column 1 to column 1.
func (b *Builder) AddLineIdentity(n int) {
	for i := 1; i <= n; i++ {
		b.Add(i, 1, i, 1)
	}
}

type mapDoc struct {
	Version  int      `json:"version"`
	File     string   `json:"file"`
	Sources  []string `json:"sources"`
	Names    []string `json:"names"`
	Mappings string   `json:"mappings"`
}

// String renders the accumulated mappings as a source map v3 JSON
// document.
func (b *Builder) String() string {
	sort.SliceStable(b.mappings, func(i, j int) bool {
		if b.mappings[i].genLine != b.mappings[j].genLine {
			return b.mappings[i].genLine < b.mappings[j].genLine
		}
		return b.mappings[i].genCol < b.mappings[j].genCol
	})

	var enc strings.Builder
	prevSrcLine, prevSrcCol := 0, 0
	idx := 0
	for line := 1; line <= b.maxLine; line++ {
		if line > 1 {
			enc.WriteByte(';')
		}
		prevGenCol := 0
		first := true
		for idx < len(b.mappings) && b.mappings[idx].genLine == line {
			m := b.mappings[idx]
			idx++
			if !first {
				enc.WriteByte(',')
			}
			first = false
			writeVLQ(&enc, m.genCol-prevGenCol)
			writeVLQ(&enc, 0) // single source
			writeVLQ(&enc, m.srcLine-prevSrcLine)
			writeVLQ(&enc, m.srcCol-prevSrcCol)
			prevGenCol = m.genCol
			prevSrcLine = m.srcLine
			prevSrcCol = m.srcCol
		}
	}

	doc := mapDoc{
		Version:  3,
		File:     b.file,
		Sources:  []string{b.source},
		Names:    []string{},
		Mappings: enc.String(),
	}
	out, err := json.Marshal(doc)
	if err != nil {
		// mapDoc contains only marshalable fields
		panic(err)
	}
	return string(out)
}

func writeVLQ(w *strings.Builder, n int) {
	v := n << 1
	if n < 0 {
		v = (-n << 1) | 1
	}
	for {
		digit := v & 0x1f
		v >>= 5
		if v > 0 {
			digit |= 0x20
		}
		w.WriteByte(base64Alphabet[digit])
		if v == 0 {
			break
		}
	}
}

// Identity returns a line-identity map for a generated file whose lines
// correspond one-to-one with the original source.
func Identity(generatedFile, sourceFile string, lineCount int) string {
	b := NewBuilder(generatedFile, sourceFile)
	b.AddLineIdentity(lineCount)
	return b.String()
}
