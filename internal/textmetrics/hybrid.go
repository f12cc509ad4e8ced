package textmetrics

import "unicode"

// separatorTables are categories that end a word and count zero.
var separatorTables = []*unicode.RangeTable{
	unicode.Zs, unicode.Cc, unicode.Po, unicode.Ps, unicode.Pe, unicode.Pi, unicode.Pf,
}

// letterTables are categories that form words together.
var letterTables = []*unicode.RangeTable{
	unicode.Ll, unicode.Lu, unicode.Nd, unicode.Nl, unicode.No, unicode.Pc, unicode.Pd,
}

// IsSeparator reports whether r separates words without contributing length.
func IsSeparator(r rune) bool {
	return unicode.In(r, separatorTables...)
}

// IsWordRune reports whether r belongs to a word-forming run.
func IsWordRune(r rune) bool {
	return unicode.In(r, letterTables...)
}

// HybridLength returns the hybrid width of text.
func HybridLength(text string) int {
	length := 0
	inWord := false
	for _, r := range text {
		switch {
		case IsSeparator(r):
			inWord = false
		case IsWordRune(r):
			if !inWord {
				length++
				inWord = true
			}
		default:
			length++
			inWord = false
		}
	}
	return length
}

// HybridSlice returns text[start:stop] in rune indices without cutting a
// word. Negative indices count from the end. The start is pushed forward
// past separators and past the remainder of a word it lands inside; the
// stop is pushed to the end of the word it lands inside. Consecutive slices
// sharing a boundary never overlap and never drop a unit.
func HybridSlice(text string, start, stop int) string {
	return hybridSlice([]rune(text), start, stop, true)
}

// HybridSliceFrom is HybridSlice with an open stop (to the end of text).
func HybridSliceFrom(text string, start int) string {
	return hybridSlice([]rune(text), start, 0, false)
}

func hybridSlice(runes []rune, start, stop int, bounded bool) string {
	n := len(runes)
	start = normalizeIndex(start, n)
	if start >= n {
		return ""
	}

	inWord := start > 0 && IsWordRune(runes[start-1])
	for start < n {
		r := runes[start]
		if IsSeparator(r) {
			start++
			inWord = false
			continue
		}
		if inWord && IsWordRune(r) {
			start++
			continue
		}
		break
	}
	if !bounded {
		return string(runes[start:])
	}

	stop = normalizeIndex(stop, n)
	if stop <= start {
		return ""
	}
	// Extend to the end of a word that the last included rune belongs to.
	for stop < n && IsWordRune(runes[stop-1]) && IsWordRune(runes[stop]) {
		stop++
	}
	return string(runes[start:stop])
}

func normalizeIndex(idx, n int) int {
	if idx < 0 {
		idx += n
		if idx < 0 {
			idx = 0
		}
	}
	if idx > n {
		idx = n
	}
	return idx
}

// UnitPrefixIndex returns the rune index at which the (units+1)-th hybrid
// unit of text begins, so HybridSlice(text, 0, idx) holds exactly units
// units together with any separators that follow them. It returns the rune
// length of text when text holds no more than units units.
func UnitPrefixIndex(text string, units int) int {
	runes := []rune(text)
	if units <= 0 {
		return 0
	}
	count := 0
	inWord := false
	for i, r := range runes {
		switch {
		case IsSeparator(r):
			inWord = false
		case IsWordRune(r):
			if !inWord {
				if count == units {
					return i
				}
				count++
				inWord = true
			}
		default:
			if count == units {
				return i
			}
			count++
			inWord = false
		}
	}
	return len(runes)
}
