package transcript

import (
	"errors"
	"strings"
	"testing"

	"dubbing/internal/services"
	"dubbing/internal/services/whisperx"
)

func f(v float64) *float64 { return &v }

func timedWord(text string, start, end float64, speaker string) whisperx.Word {
	return whisperx.Word{Word: text, Start: f(start), End: f(end), Speaker: speaker}
}

func TestFromWhisperXValidates(t *testing.T) {
	payload := whisperx.Payload{Segments: []whisperx.Segment{
		{Text: " hello ", Start: 0, End: 1},
		{Text: "   ", Start: 1, End: 2},
		{Text: "broken word", Start: 2, End: 3, Words: []whisperx.Word{
			{Word: "broken", Start: f(2), End: f(1.5)},
			{Word: "word"},
		}},
	}}
	segs, err := FromWhisperX(payload)
	if err != nil {
		t.Fatalf("FromWhisperX: %v", err)
	}
	if len(segs) != 2 || segs[0].Text != "hello" {
		t.Fatalf("unexpected segments %+v", segs)
	}
	if segs[1].HasWordTiming() {
		t.Fatal("words with inverted or missing timing must be untimed")
	}

	_, err = FromWhisperX(whisperx.Payload{Segments: []whisperx.Segment{{Text: "x", Start: 3, End: 1}}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSplitBySpeakerThenPunctuation(t *testing.T) {
	payload := whisperx.Payload{Segments: []whisperx.Segment{{
		Text: "Hi there. How are you? Fine.", Start: 0, End: 4,
		Words: []whisperx.Word{
			timedWord("Hi", 0.0, 0.3, "A"),
			timedWord("there.", 0.4, 0.8, "A"),
			timedWord("How", 1.0, 1.2, "A"),
			{Word: "are"},
			timedWord("you?", 1.6, 2.0, "A"),
			timedWord("Fine.", 2.5, 3.0, "B"),
		},
	}}}
	segs, err := FromWhisperX(payload)
	if err != nil {
		t.Fatal(err)
	}
	got := Split(segs, " ")
	texts := make([]string, len(got))
	for i, s := range got {
		texts[i] = s.Text
	}
	if strings.Join(texts, "|") != "Hi there.|How are you?|Fine." {
		t.Fatalf("unexpected split %q", texts)
	}
	if got[2].Speaker != "B" || got[2].Start != 2.5 || got[2].End != 3.0 {
		t.Fatalf("speaker segment = %+v", got[2])
	}
	// The untimed "are" borrows its bounds from its neighbours.
	are := got[1].Words[1]
	if are.Start != 1.2 || are.End != 1.6 || are.Speaker != "A" {
		t.Fatalf("inferred word = %+v", are)
	}
}

func TestSplitKeepsShortSpeakerRuns(t *testing.T) {
	seg := Segment{Start: 0, End: 1, Text: "a b", Words: []Word{
		{Text: "a", Start: 0, End: 0.2, Timed: true, Speaker: "A"},
		{Text: "b", Start: 0.3, End: 0.5, Timed: true, Speaker: "B"},
	}}
	got := Split([]Segment{seg}, " ")
	if len(got) != 1 || got[0].Text != "a b" {
		t.Fatalf("speaker change under %.1fs should not split: %+v", MinSpeakerRun, got)
	}
}

func TestSplitWithoutWordsPassesThrough(t *testing.T) {
	seg := Segment{Start: 0, End: 5, Text: "One. Two."}
	got := Split([]Segment{seg}, " ")
	if len(got) != 1 || got[0].Text != seg.Text {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestSplitJoinsUnspacedLanguages(t *testing.T) {
	seg := Segment{Start: 0, End: 2, Text: "你好。再见", Words: []Word{
		{Text: "你", Start: 0, End: 0.2, Timed: true},
		{Text: "好。", Start: 0.2, End: 0.5, Timed: true},
		{Text: "再", Start: 1, End: 1.2, Timed: true},
		{Text: "见", Start: 1.2, End: 1.5, Timed: true},
	}}
	got := Split([]Segment{seg}, "")
	if len(got) != 2 || got[0].Text != "你好。" || got[1].Text != "再见" {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestToTimeline(t *testing.T) {
	tl := ToTimeline([]Segment{{Start: 0, End: 1, Text: "a"}, {Start: 1, End: 2, Text: "b"}})
	if tl.Len() != 2 || tl.Entries[1].Index != 2 || tl.Entries[1].Text != "b" {
		t.Fatalf("unexpected timeline %+v", tl.Entries)
	}
}
