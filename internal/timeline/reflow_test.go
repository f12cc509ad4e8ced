package timeline

import (
	"math"
	"testing"

	"dubbing/internal/textmetrics"
)

const epsilon = 1e-9

func totalUnits(tl *Timeline) int {
	sum := 0
	for _, e := range tl.Entries {
		sum += textmetrics.HybridLength(e.Text)
	}
	return sum
}

func requireContiguous(t *testing.T, tl *Timeline) {
	t.Helper()
	for i := 1; i < tl.Len(); i++ {
		if math.Abs(tl.Entries[i].Start-tl.Entries[i-1].End) > epsilon {
			t.Fatalf("entries %d and %d not contiguous: %v -> %v", i, i+1, tl.Entries[i-1].End, tl.Entries[i].Start)
		}
	}
}

func requireNumbered(t *testing.T, tl *Timeline) {
	t.Helper()
	for i, e := range tl.Entries {
		if e.Index != i+1 {
			t.Fatalf("entry %d has index %d", i, e.Index)
		}
	}
}

func TestSplitByLengthSentenceScenario(t *testing.T) {
	src := New([]Entry{{Index: 1, Start: 0, End: 4, Text: "Hello world, this is a test sentence."}})
	got := src.SplitByLength(5, 2)

	if got.Len() < 2 {
		t.Fatalf("expected multiple pieces, got %d: %+v", got.Len(), got.Entries)
	}
	if got.Entries[0].Start != 0 {
		t.Fatalf("first start = %v", got.Entries[0].Start)
	}
	if got.Entries[got.Len()-1].End != 4 {
		t.Fatalf("last end = %v", got.Entries[got.Len()-1].End)
	}
	requireContiguous(t, got)
	requireNumbered(t, got)
	if totalUnits(got) != textmetrics.HybridLength(src.Entries[0].Text) {
		t.Fatalf("content not conserved: %d vs %d", totalUnits(got), textmetrics.HybridLength(src.Entries[0].Text))
	}
}

func TestSplitByLengthMergesShortTail(t *testing.T) {
	src := New([]Entry{{Start: 10, End: 16, Text: "one two three four five six seven"}})
	got := src.SplitByLength(3, 2)

	// 7 units: [one two three] [four five six] + tail [seven] (1 unit) merged.
	if got.Len() != 2 {
		t.Fatalf("expected 2 pieces, got %d: %+v", got.Len(), got.Entries)
	}
	if got.Entries[1].Text != "four five six seven" {
		t.Fatalf("tail not merged: %q", got.Entries[1].Text)
	}
	if got.Entries[1].End != 16 {
		t.Fatalf("merged piece must end at entry end, got %v", got.Entries[1].End)
	}
	for _, e := range got.Entries {
		if textmetrics.HybridLength(e.Text) < 2 {
			t.Fatalf("piece %q below minimum tail length", e.Text)
		}
	}
	requireContiguous(t, got)
}

func TestSplitByLengthPassesShortEntries(t *testing.T) {
	src := New([]Entry{
		{Start: 0, End: 1, Text: "短句"},
		{Start: 1, End: 5, Text: "这是一个比较长的中文句子需要被切分"},
	})
	got := src.SplitByLength(6, 3)
	if got.Entries[0].Text != "短句" || got.Entries[0].End != 1 {
		t.Fatalf("short entry altered: %+v", got.Entries[0])
	}
	if totalUnits(got) != totalUnits(src) {
		t.Fatalf("content not conserved")
	}
	long := New(got.Entries[1:])
	if long.Entries[0].Start != 1 || long.Entries[long.Len()-1].End != 5 {
		t.Fatalf("long entry span not preserved: %+v", long.Entries)
	}
	requireContiguous(t, long)
	requireNumbered(t, got)
}

func TestMergeByLength(t *testing.T) {
	src := New([]Entry{
		{Start: 0, End: 1, Text: "hello"},
		{Start: 1.2, End: 2, Text: "world"},
		{Start: 5, End: 6, Text: "far away"},
		{Start: 6.1, End: 7, Text: "this line is far too long to be merged"},
	})
	got := src.MergeByLength(0.5, 20, " ")
	want := []string{"hello world", "far away", "this line is far too long to be merged"}
	if got.Len() != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), got.Len(), got.Entries)
	}
	for i, text := range want {
		if got.Entries[i].Text != text {
			t.Fatalf("entry %d = %q, want %q", i, got.Entries[i].Text, text)
		}
	}
	if got.Entries[0].End != 2 {
		t.Fatalf("merged end = %v", got.Entries[0].End)
	}
	requireNumbered(t, got)
	if src.Entries[0].Text != "hello" {
		t.Fatal("source mutated")
	}
}

func TestMergeSentences(t *testing.T) {
	src := New([]Entry{
		{Start: 0, End: 1, Text: "This sentence is"},
		{Start: 1.1, End: 2, Text: "not finished yet."},
		{Start: 2.1, End: 3, Text: "A complete sentence here."},
		{Start: 8, End: 9, Text: "Ok."},
		{Start: 20, End: 21, Text: "Dangling words with gap"},
		{Start: 30, End: 31, Text: "after a long pause."},
	})
	got := src.MergeSentences(DefaultPunctuation, 0.5, 2)
	want := []string{
		"This sentence is not finished yet.",
		"A complete sentence here. Ok.",
		"Dangling words with gap",
		"after a long pause.",
	}
	if got.Len() != len(want) {
		t.Fatalf("expected %d entries, got %d: %+v", len(want), got.Len(), got.Entries)
	}
	for i, text := range want {
		if got.Entries[i].Text != text {
			t.Fatalf("entry %d = %q, want %q", i, got.Entries[i].Text, text)
		}
	}
	if got.Entries[1].Start != 2.1 || got.Entries[1].End != 9 {
		t.Fatalf("union span wrong: %+v", got.Entries[1])
	}
	if totalUnits(got) != totalUnits(src) {
		t.Fatal("content not conserved")
	}
}

func TestSentencesPercent(t *testing.T) {
	src := New([]Entry{
		{Text: "完整的句子。"},
		{Text: "incomplete"},
		{Text: "done!"},
		{Text: "what?"},
	})
	if got := src.SentencesPercent(DefaultPunctuation); got != 0.75 {
		t.Fatalf("SentencesPercent = %v", got)
	}
	if got := (&Timeline{}).SentencesPercent(DefaultPunctuation); got != 0 {
		t.Fatalf("empty SentencesPercent = %v", got)
	}
}

func TestSplitWithRefRoundTrip(t *testing.T) {
	src := New([]Entry{
		{Start: 0, End: 6, Text: "The quick brown fox jumps over the lazy dog today"},
		{Start: 7, End: 8, Text: "Unmatched line"},
	})
	ref := New([]Entry{
		{Start: 0, End: 2, Text: "敏捷的棕色狐狸"},
		{Start: 2, End: 4, Text: "跳过了"},
		{Start: 4, End: 6, Text: "今天的懒狗"},
	})
	got := src.SplitWithRef(ref)
	if got.Len() != 4 {
		t.Fatalf("expected 4 entries, got %d: %+v", got.Len(), got.Entries)
	}
	first := New(got.Entries[:3])
	if totalUnits(first) != textmetrics.HybridLength(src.Entries[0].Text) {
		t.Fatalf("content not conserved: %+v", first.Entries)
	}
	for i, e := range first.Entries {
		if e.Start != ref.Entries[i].Start || e.End != ref.Entries[i].End {
			t.Fatalf("piece %d window %v-%v, want %v-%v", i, e.Start, e.End, ref.Entries[i].Start, ref.Entries[i].End)
		}
	}
	if got.Entries[3].Text != "Unmatched line" {
		t.Fatalf("unmatched entry altered: %+v", got.Entries[3])
	}
	requireNumbered(t, got)
}

func TestCorrectTime(t *testing.T) {
	src := New([]Entry{{Start: 0, End: 2}, {Start: 1.5, End: 3}, {Start: 4, End: 5}})
	src.CorrectTime(false)
	if src.Entries[0].End != 1.5 || src.Entries[1].Start != 1.5 {
		t.Fatalf("overlap not pulled back: %+v", src.Entries)
	}
	if src.Entries[1].End != 3 || src.Entries[2].Start != 4 {
		t.Fatalf("gap must be left alone: %+v", src.Entries)
	}

	pushed := New([]Entry{{Start: 0, End: 2}, {Start: 1.5, End: 3}})
	pushed.CorrectTime(true)
	if pushed.Entries[1].Start != 2 || pushed.Entries[0].End != 2 {
		t.Fatalf("overlap not pushed forward: %+v", pushed.Entries)
	}
}

func TestFillTime(t *testing.T) {
	src := New([]Entry{{Start: 0, End: 1}, {Start: 2, End: 3}, {Start: 3.5, End: 4}})
	src.FillTime(false)
	requireContiguous(t, src)
	if src.Entries[0].End != 2 || src.Entries[1].End != 3.5 {
		t.Fatalf("ends not extended: %+v", src.Entries)
	}

	forward := New([]Entry{{Start: 0, End: 1}, {Start: 2, End: 3}})
	forward.FillTime(true)
	if forward.Entries[1].Start != 1 {
		t.Fatalf("start not pulled back: %+v", forward.Entries)
	}
}
