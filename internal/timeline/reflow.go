package timeline

import (
	"math"
	"strings"
	"unicode/utf8"

	"dubbing/internal/textmetrics"
)

// Reflow defaults.
const (
	DefaultMergeInterval  = 0.5
	DefaultMaxMergeLength = 80
	DefaultMergeSeparator = " "
	DefaultMinSentenceLen = 10
	// RefTolerance is the slack allowed when matching reference windows
	// against a source entry in SplitWithRef.
	RefTolerance = 0.5
)

// MergeByLength joins consecutive entries whose gap is below interval while
// the joined raw rune length stays below maxLen.
func (t *Timeline) MergeByLength(interval float64, maxLen int, sep string) *Timeline {
	out := &Timeline{}
	if t.Len() == 0 {
		return out
	}
	out.Entries = append(out.Entries, t.Entries[0])
	for _, e := range t.Entries[1:] {
		last := &out.Entries[len(out.Entries)-1]
		joined := utf8.RuneCountInString(last.Text) + utf8.RuneCountInString(e.Text)
		if e.Start-last.End < interval && joined < maxLen {
			last.End = e.End
			last.Text += sep + e.Text
			continue
		}
		out.Entries = append(out.Entries, e)
	}
	return out.Renumber()
}

// MergeSentences joins an entry into the previous output entry when the
// previous one does not end a sentence and the gap is below interval, or
// when the entry itself is shorter than minLen hybrid units. Only union
// spans are taken, so timestamps stay exact.
func (t *Timeline) MergeSentences(puncs string, interval float64, minLen int) *Timeline {
	out := &Timeline{}
	if t.Len() == 0 {
		return out
	}
	out.Entries = append(out.Entries, t.Entries[0])
	for _, e := range t.Entries[1:] {
		last := &out.Entries[len(out.Entries)-1]
		open := !endsWithAny(last.Text, puncs) && e.Start-last.End < interval
		if open || textmetrics.HybridLength(e.Text) < minLen {
			last.End = e.End
			last.Text += " " + e.Text
			continue
		}
		out.Entries = append(out.Entries, e)
	}
	return out.Renumber()
}

// SentencesPercent returns the fraction of entries ending in one of puncs.
func (t *Timeline) SentencesPercent(puncs string) float64 {
	if t.Len() == 0 {
		return 0
	}
	count := 0
	for _, e := range t.Entries {
		if endsWithAny(e.Text, puncs) {
			count++
		}
	}
	return float64(count) / float64(t.Len())
}

func endsWithAny(text, puncs string) bool {
	last, size := utf8.DecodeLastRuneInString(text)
	if size == 0 {
		return false
	}
	return strings.ContainsRune(puncs, last)
}

// SplitByLength cuts entries longer than maxLen hybrid units into pieces of
// maxLen units. Each piece gets maxLen/length of the entry's span; the last
// piece ends at the entry's end. A final tail shorter than minTailLen units
// is appended to the previous piece instead of standing alone.
func (t *Timeline) SplitByLength(maxLen, minTailLen int) *Timeline {
	out := &Timeline{}
	if maxLen <= 0 {
		return t.Copy()
	}
	for _, e := range t.Entries {
		total := textmetrics.HybridLength(e.Text)
		if total <= maxLen {
			out.Entries = append(out.Entries, e)
			continue
		}
		share := float64(maxLen) / float64(total) * e.Duration()
		first := len(out.Entries)
		rest := e.Text
		cur := e.Start
		for {
			units := textmetrics.HybridLength(rest)
			if units <= maxLen {
				if units < minTailLen && len(out.Entries) > first {
					last := &out.Entries[len(out.Entries)-1]
					last.Text += rest
					last.End = e.End
				} else {
					out.Entries = append(out.Entries, Entry{Start: cur, End: e.End, Text: rest})
				}
				break
			}
			idx := textmetrics.UnitPrefixIndex(rest, maxLen)
			head := textmetrics.HybridSlice(rest, 0, idx)
			rest = textmetrics.HybridSliceFrom(rest, idx)
			end := cur + share
			out.Entries = append(out.Entries, Entry{Start: cur, End: end, Text: head})
			cur = end
		}
		for i := first; i < len(out.Entries); i++ {
			out.Entries[i].Text = strings.TrimSpace(out.Entries[i].Text)
		}
	}
	return out.Renumber()
}

// SplitWithRef re-cuts each entry on the windows of ref that fall inside
// [start-RefTolerance, end+RefTolerance]. Text is apportioned to each window
// by its share of the entry's duration, cut on word boundaries, and any
// remainder goes to the last window. Produced timestamps are the reference
// windows themselves. Entries with no matching window pass through.
func (t *Timeline) SplitWithRef(ref *Timeline) *Timeline {
	out := &Timeline{}
	j := 0
	for _, e := range t.Entries {
		for j < ref.Len() && ref.Entries[j].Start < e.Start-RefTolerance {
			j++
		}
		var windows []Entry
		for j < ref.Len() && ref.Entries[j].Start >= e.Start-RefTolerance && ref.Entries[j].End <= e.End+RefTolerance {
			windows = append(windows, ref.Entries[j])
			j++
		}
		if len(windows) == 0 {
			out.Entries = append(out.Entries, e)
			continue
		}
		out.Entries = append(out.Entries, apportion(e, windows)...)
	}
	return out.Renumber()
}

func apportion(e Entry, windows []Entry) []Entry {
	total := textmetrics.HybridLength(e.Text)
	duration := e.Duration()
	pieces := make([]Entry, 0, len(windows))
	rest := e.Text
	consumed := 0
	elapsed := 0.0
	for i, w := range windows {
		piece := Entry{Start: w.Start, End: w.End}
		if i == len(windows)-1 {
			piece.Text = strings.TrimSpace(rest)
			pieces = append(pieces, piece)
			break
		}
		elapsed += w.Duration()
		var target int
		if duration > 0 {
			target = int(math.Round(float64(total) * elapsed / duration))
		} else {
			target = total * (i + 1) / len(windows)
		}
		target = min(max(target, consumed), total)
		idx := textmetrics.UnitPrefixIndex(rest, target-consumed)
		piece.Text = strings.TrimSpace(textmetrics.HybridSlice(rest, 0, idx))
		rest = textmetrics.HybridSliceFrom(rest, idx)
		consumed = target
		pieces = append(pieces, piece)
	}
	return pieces
}
