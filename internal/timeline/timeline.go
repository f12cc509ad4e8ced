package timeline

import (
	"sort"
	"strings"
)

// DefaultPunctuation lists the terminal punctuation marks that close a sentence.
const DefaultPunctuation = "。！？.!?"

// Entry is one timestamped subtitle line. Index is a 1-based display
// ordinal and is renumbered freely by reflow operations.
type Entry struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Duration returns the entry span in seconds.
func (e Entry) Duration() float64 {
	return e.End - e.Start
}

// Timeline is an ordered subtitle track.
type Timeline struct {
	Entries []Entry
}

// New builds a timeline from the supplied entries, copying them.
func New(entries []Entry) *Timeline {
	cp := make([]Entry, len(entries))
	copy(cp, entries)
	return &Timeline{Entries: cp}
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Entries)
}

// Copy returns a deep copy of the timeline.
func (t *Timeline) Copy() *Timeline {
	if t == nil {
		return &Timeline{}
	}
	return New(t.Entries)
}

// Texts returns the text of every entry in order.
func (t *Timeline) Texts() []string {
	texts := make([]string, 0, t.Len())
	for _, e := range t.Entries {
		texts = append(texts, e.Text)
	}
	return texts
}

// WithTexts returns a copy whose texts are replaced by texts. When the
// counts differ only the common prefix is kept.
func (t *Timeline) WithTexts(texts []string) *Timeline {
	n := min(t.Len(), len(texts))
	out := &Timeline{Entries: make([]Entry, n)}
	for i := 0; i < n; i++ {
		out.Entries[i] = t.Entries[i]
		out.Entries[i].Text = texts[i]
	}
	return out
}

// Renumber assigns indices 1..N in slice order.
func (t *Timeline) Renumber() *Timeline {
	for i := range t.Entries {
		t.Entries[i].Index = i + 1
	}
	return t
}

// SortByStart returns a copy sorted by start time and renumbered.
func (t *Timeline) SortByStart() *Timeline {
	out := t.Copy()
	sort.SliceStable(out.Entries, func(i, j int) bool {
		return out.Entries[i].Start < out.Entries[j].Start
	})
	return out.Renumber()
}

// Merge combines two tracks, sorted by start and renumbered.
func (t *Timeline) Merge(other *Timeline) *Timeline {
	combined := t.Copy()
	combined.Entries = append(combined.Entries, other.Copy().Entries...)
	return combined.SortByStart()
}

// Concat appends other after the receiver, shifting other so that it starts
// interval seconds after the receiver's last end.
func (t *Timeline) Concat(other *Timeline, interval float64) *Timeline {
	out := t.Copy()
	shifted := other.Copy()
	if n := t.Len(); n > 0 {
		shifted.Offset(t.Entries[n-1].End + interval)
	}
	for i := range shifted.Entries {
		shifted.Entries[i].Index += t.Len()
	}
	out.Entries = append(out.Entries, shifted.Entries...)
	return out
}

// Offset shifts every timestamp by seconds in place. Negative results are
// not clamped.
func (t *Timeline) Offset(seconds float64) *Timeline {
	for i := range t.Entries {
		t.Entries[i].Start += seconds
		t.Entries[i].End += seconds
	}
	return t
}

// ConcatText pairs entries by index and joins their texts with sep. The
// longer of the two tracks supplies the timestamps; entries without a
// partner keep their own text. It is used to build bilingual tracks.
func (t *Timeline) ConcatText(other *Timeline, sep string) *Timeline {
	base, extra := t, other
	if base.Len() < extra.Len() {
		base, extra = extra, base
	}
	out := base.Copy()
	for i := range out.Entries {
		if partner, ok := extra.entryByIndex(out.Entries[i].Index, i); ok {
			out.Entries[i].Text = out.Entries[i].Text + sep + partner.Text
		}
	}
	return out
}

func (t *Timeline) entryByIndex(index, hint int) (Entry, bool) {
	if hint >= 0 && hint < t.Len() && t.Entries[hint].Index == index {
		return t.Entries[hint], true
	}
	for _, e := range t.Entries {
		if e.Index == index {
			return e, true
		}
	}
	return Entry{}, false
}

var ellipses = []string{"...", "……"}

// RemoveEllipsis strips leading and trailing ellipses in place. Segmented
// recognizers emit them when a voice-activity window cuts a sentence, and
// they defeat sentence-aware merging.
func (t *Timeline) RemoveEllipsis() *Timeline {
	for i := range t.Entries {
		text := t.Entries[i].Text
		for _, e := range ellipses {
			text = strings.TrimPrefix(text, e)
		}
		for _, e := range ellipses {
			text = strings.TrimSuffix(text, e)
		}
		t.Entries[i].Text = text
	}
	return t
}

// Sections splits the timeline wherever the gap between consecutive
// entries exceeds maxGap seconds.
func (t *Timeline) Sections(maxGap float64) []*Timeline {
	if t.Len() == 0 {
		return nil
	}
	var sections []*Timeline
	start := 0
	for i := 1; i < len(t.Entries); i++ {
		if t.Entries[i].Start-t.Entries[i-1].End > maxGap {
			sections = append(sections, New(t.Entries[start:i]))
			start = i
		}
	}
	return append(sections, New(t.Entries[start:]))
}

// CorrectTime removes overlaps in place. By default the earlier entry's end
// is pulled back to the next start; with modifyStart the later entry's start
// is pushed forward instead.
func (t *Timeline) CorrectTime(modifyStart bool) *Timeline {
	for i := 1; i < len(t.Entries); i++ {
		prev, cur := &t.Entries[i-1], &t.Entries[i]
		if prev.End <= cur.Start {
			continue
		}
		if modifyStart {
			cur.Start = prev.End
		} else {
			prev.End = cur.Start
		}
	}
	return t
}

// FillTime makes adjacent entries exactly contiguous in place, closing gaps
// (and overlaps) the same way CorrectTime closes overlaps.
func (t *Timeline) FillTime(modifyStart bool) *Timeline {
	for i := 1; i < len(t.Entries); i++ {
		if modifyStart {
			t.Entries[i].Start = t.Entries[i-1].End
		} else {
			t.Entries[i-1].End = t.Entries[i].Start
		}
	}
	return t
}
