package source

import (
	"slices"
	"strings"
)

// StripIdentifier reduces a unit identifier to its canonical form: the
// relative prefix and any source extension are removed, so "./user.ts",
// "user.js" and "user" all resolve to "user".
func StripIdentifier(id string) string {
	id = strings.TrimPrefix(id, "./")
	for _, ext := range [...]string{".d.ts", ".tsx", ".ts", ".mjs", ".cjs", ".js"} {
		if strings.HasSuffix(id, ext) {
			return strings.TrimSuffix(id, ext)
		}
	}
	return id
}

// normalizeCRLF replaces every \r\n with \n, leaving lone \r untouched.
// The second result reports whether anything changed.
func normalizeCRLF(text []byte) ([]byte, bool) {
	if !slices.Contains(text, '\r') {
		return text, false
	}

	out := make([]byte, 0, len(text))
	changed := false
	i := 0
	for i < len(text) {
		if text[i] == '\r' && i+1 < len(text) && text[i+1] == '\n' {
			out = append(out, '\n')
			i += 2
			changed = true
		} else {
			out = append(out, text[i])
			i++
		}
	}
	return out, changed
}

func removeBOM(text []byte) ([]byte, bool) {
	if len(text) < 3 {
		return text, false
	}
	if text[0] == 0xEF && text[1] == 0xBB && text[2] == 0xBF {
		return text[3:], true
	}
	return text, false
}

func buildLineIndex(text []byte) []uint32 {
	out := make([]uint32, 0, 16)
	for i, b := range text {
		if b == '\n' {
			out = append(out, uint32(i))
		}
	}
	return out
}

func toLineCol(lineIdx []uint32, off uint32) LineCol {
	if len(lineIdx) == 0 {
		return LineCol{Line: 1, Col: off + 1}
	}

	// binary search: number of newline offsets strictly below off.
	// That count is the 0-based line; the newline itself belongs to the
	// line it terminates.
	lo, hi := 0, len(lineIdx)
	for lo < hi {
		mid := (lo + hi) >> 1
		if lineIdx[mid] < off {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	line := lo
	if line == 0 {
		return LineCol{Line: 1, Col: off + 1}
	}

	startOff := lineIdx[line-1] + 1
	return LineCol{Line: uint32(line) + 1, Col: off - startOff + 1}
}
