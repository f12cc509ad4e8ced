package reconcile

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"

	"dubbing/internal/media/wavio"
	"dubbing/internal/services/tts"
	"dubbing/internal/timeline"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAlignLinesMonotonic(t *testing.T) {
	words := []tts.WordTiming{
		{Start: 0.0, End: 0.4, Text: "Hello"},
		{Start: 0.5, End: 0.9, Text: "world."},
		{Start: 1.2, End: 1.4, Text: "How"},
		{Start: 1.5, End: 1.6, Text: "are"},
		{Start: 1.7, End: 2.0, Text: "you?"},
		{Start: 2.5, End: 2.8, Text: "Fine"},
		{Start: 2.9, End: 3.3, Text: "thanks."},
	}
	spans := AlignLines(words, []string{"Hello, world.", "How are you?", "Fine thanks."})

	want := []struct {
		first, last int
		start, end  float64
	}{
		{0, 1, 0.0, 0.9},
		{2, 4, 1.2, 2.0},
		{5, 6, 2.5, math.Inf(1)},
	}
	for i, w := range want {
		got := spans[i]
		if !got.Matched || got.First != w.first || got.Last != w.last || got.Start != w.start || got.End != w.end {
			t.Fatalf("span %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestAlignLinesSkipsUnmatchedLine(t *testing.T) {
	words := []tts.WordTiming{
		{Start: 0, End: 0.5, Text: "alpha"},
		{Start: 0.6, End: 1.0, Text: "omega"},
	}
	spans := AlignLines(words, []string{"alpha", "zzz", "omega"})
	if spans[1].Matched {
		t.Fatalf("unrelated line matched: %+v", spans[1])
	}
	if !spans[2].Matched || spans[2].First != 1 {
		t.Fatalf("line after a miss should resume at the next word: %+v", spans[2])
	}
	if spans[0].Last != 0 || spans[0].End != 0.5 {
		t.Fatalf("first span should stop before the next match: %+v", spans[0])
	}
}

func spokenWords(texts ...string) []tts.WordTiming {
	words := make([]tts.WordTiming, len(texts))
	for i, text := range texts {
		words[i] = tts.WordTiming{Start: float64(i), End: float64(i) + 0.8, Text: text}
	}
	return words
}

func TestAlignLinesMissedLineKeepsItsWords(t *testing.T) {
	words := spokenWords("two", "thousand", "twenty", "four", "point", "five", "percent", "hello", "there")
	spans := AlignLines(words, []string{"2024.5%", "hello there"})
	if spans[0].Matched {
		t.Fatalf("digits should not match spelled-out words: %+v", spans[0])
	}
	if !spans[1].Matched || spans[1].First != 7 || spans[1].Last != 8 {
		t.Fatalf("next line absorbed the missed line's words: %+v", spans[1])
	}
	if spans[1].Start != 7 {
		t.Fatalf("span start = %v, want 7", spans[1].Start)
	}
}

func TestAlignLinesDoesNotExtendAcrossMissedLine(t *testing.T) {
	words := spokenWords("good", "morning", "two", "thousand", "twenty", "four", "point", "five", "percent", "hello", "there")
	spans := AlignLines(words, []string{"Good morning.", "2024.5%", "hello there"})
	if !spans[0].Matched || spans[0].Last != 1 || !near(spans[0].End, 1.8) {
		t.Fatalf("first line should keep only its own words: %+v", spans[0])
	}
	if spans[1].Matched {
		t.Fatalf("missed line matched: %+v", spans[1])
	}
	if !spans[2].Matched || spans[2].First != 9 || !math.IsInf(spans[2].End, 1) {
		t.Fatalf("last line = %+v", spans[2])
	}
}

func TestAlignLinesMoreLinesThanWords(t *testing.T) {
	words := []tts.WordTiming{{Start: 0.1, End: 0.5, Text: "你好"}, {Start: 0.5, End: 0.9, Text: "世界"}}
	spans := AlignLines(words, []string{"你好，世界", "再见"})
	if !spans[0].Matched || !math.IsInf(spans[0].End, 1) {
		t.Fatalf("only matched line should run to the end: %+v", spans[0])
	}
	if spans[1].Matched {
		t.Fatalf("line without words matched: %+v", spans[1])
	}
}

func writeTone(t *testing.T, path string, seconds float64) {
	t.Helper()
	frames := int(seconds * wavio.DefaultSampleRate)
	data := make([]int, frames)
	for i := range data {
		data[i] = 1000
	}
	clip := &wavio.Clip{
		Buffer: &audio.IntBuffer{
			Format:         &audio.Format{SampleRate: wavio.DefaultSampleRate, NumChannels: 1},
			Data:           data,
			SourceBitDepth: wavio.DefaultBitDepth,
		},
		BitDepth: wavio.DefaultBitDepth,
	}
	if err := wavio.Write(path, clip); err != nil {
		t.Fatalf("write tone: %v", err)
	}
}

func TestExtractWritesOneClipPerLine(t *testing.T) {
	dir := t.TempDir()
	batch := filepath.Join(dir, "batch.wav")
	writeTone(t, batch, 1.0)

	words := []tts.WordTiming{{Start: 0, End: 0.4, Text: "a"}, {Start: 0.5, End: 0.9, Text: "b"}}
	clips, err := NewExtractor(nil).Extract(batch, words, []string{"a", "b", "c"}, dir, "batch0")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(clips) != 3 {
		t.Fatalf("expected 3 clips, got %d", len(clips))
	}
	wantDur := []float64{0.4, 0.5, wavio.MinClip}
	for i, clip := range clips {
		if clip.Path != ClipPath(dir, "batch0", i) {
			t.Fatalf("clip %d path = %s", i, clip.Path)
		}
		if _, err := os.Stat(clip.Path); err != nil {
			t.Fatalf("clip %d not written: %v", i, err)
		}
		if math.Abs(clip.Duration-wantDur[i]) > 1e-3 {
			t.Fatalf("clip %d duration = %.4f, want %.4f", i, clip.Duration, wantDur[i])
		}
	}
	if filepath.Base(clips[2].Path) != "batch0_line3.wav" {
		t.Fatalf("unexpected clip name %s", clips[2].Path)
	}
}

func TestBuildSegmentsBorrowKeepsMargin(t *testing.T) {
	tl := timeline.New([]timeline.Entry{
		{Index: 1, Start: 0, End: 2},
		{Index: 2, Start: 2, End: 3},
		{Index: 3, Start: 3, End: 6},
	})
	clips := []Clip{{Path: "a", Duration: 0.8}, {Path: "b", Duration: 3.0}, {Path: "c", Duration: 1.0}}
	segs := BuildSegments(clips, tl, BorrowOptions{MinBorrow: 1.0, BorrowInterval: 0.5})

	// a lends 1.1s and keeps exactly the margin; c covers the remaining 0.9s.
	if !near(segs[0].TargetDuration-segs[0].ActualDuration, Margin) {
		t.Fatalf("lender slack = %.3f", segs[0].TargetDuration-segs[0].ActualDuration)
	}
	if !near(segs[1].TargetStart, 0.9) || !near(segs[1].TargetDuration, 3.0) {
		t.Fatalf("borrower = %+v", segs[1])
	}
	if !near(segs[2].TargetStart, 3.9) || !near(segs[2].TargetDuration, 2.1) {
		t.Fatalf("next lender = %+v", segs[2])
	}
	for i, s := range segs {
		if s.TargetDuration-s.ActualDuration < -1e-9 {
			t.Fatalf("segment %d still overruns: %+v", i, s)
		}
	}
	if tl.Entries[0].End != 2 {
		t.Fatal("input timeline modified")
	}
}

func TestBuildSegmentsNoBorrowAcrossGapsOrThinSlack(t *testing.T) {
	tl := timeline.New([]timeline.Entry{
		{Index: 1, Start: 0, End: 3},
		{Index: 2, Start: 4, End: 5},
		{Index: 3, Start: 5, End: 6.9},
		{Index: 4, Start: 6.9, End: 7.5},
	})
	clips := []Clip{{Duration: 1}, {Duration: 2}, {Duration: 1}, {Duration: 1}}
	segs := BuildSegments(clips, tl, BorrowOptions{MinBorrow: 1.0, BorrowInterval: 0.5})

	// Line 2 cannot reach line 1 across a one second gap and line 3 only
	// has 0.9s of slack, so line 2 keeps its slot and gets sped up.
	if !near(segs[1].TargetStart, 4) || !near(segs[1].TargetDuration, 1) {
		t.Fatalf("line 2 = %+v", segs[1])
	}
	// The gap after line 1 is absorbed by line 1.
	if !near(segs[0].TargetDuration, 4) {
		t.Fatalf("line 1 = %+v", segs[0])
	}
	// Line 4 borrows nothing from line 3 whose slack is below the threshold.
	if !near(segs[3].TargetStart, 6.9) {
		t.Fatalf("line 4 = %+v", segs[3])
	}
}

func TestBuildSegmentsPairsByPosition(t *testing.T) {
	tl := timeline.New([]timeline.Entry{{Index: 1, Start: 0, End: 1}, {Index: 2, Start: 1, End: 2}})
	segs := BuildSegments([]Clip{{Path: "only", Duration: 0.5}}, tl, BorrowOptions{})
	if len(segs) != 1 || segs[0].Source != "only" {
		t.Fatalf("unexpected segments %+v", segs)
	}
}
