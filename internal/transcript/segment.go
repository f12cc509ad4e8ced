package transcript

import (
	"fmt"
	"math"
	"strings"

	"dubbing/internal/services"
	"dubbing/internal/services/whisperx"
	"dubbing/internal/timeline"
)

// Word is one recognized word. Timed is false for words the aligner could
// not place; their Start and End are then inferred from neighbours.
type Word struct {
	Text    string
	Start   float64
	End     float64
	Timed   bool
	Speaker string
}

// Segment is one validated transcript segment.
type Segment struct {
	Start   float64
	End     float64
	Text    string
	Speaker string
	Words   []Word
}

// HasWordTiming reports whether any word in the segment carries timing.
func (s Segment) HasWordTiming() bool {
	for _, w := range s.Words {
		if w.Timed {
			return true
		}
	}
	return false
}

func badTime(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0) || v < 0
}

// FromWhisperX validates a WhisperX payload. Segments with broken timing
// are rejected; segments with blank text are dropped.
func FromWhisperX(payload whisperx.Payload) ([]Segment, error) {
	out := make([]Segment, 0, len(payload.Segments))
	for i, raw := range payload.Segments {
		if badTime(raw.Start) || badTime(raw.End) || raw.End < raw.Start {
			return nil, services.Wrap(services.ErrValidation, "asr", "validate transcript",
				fmt.Sprintf("segment %d has invalid timing %.3f-%.3f", i+1, raw.Start, raw.End), nil)
		}
		text := strings.TrimSpace(raw.Text)
		if text == "" {
			continue
		}
		seg := Segment{Start: raw.Start, End: raw.End, Text: text, Speaker: raw.Speaker}
		if len(raw.Words) > 0 {
			seg.Words = make([]Word, len(raw.Words))
			for j, w := range raw.Words {
				word := Word{Text: w.Word, Speaker: w.Speaker}
				if w.Start != nil && w.End != nil && !badTime(*w.Start) && *w.End >= *w.Start {
					word.Start, word.End, word.Timed = *w.Start, *w.End, true
				}
				seg.Words[j] = word
			}
		}
		out = append(out, seg)
	}
	return out, nil
}

// ToTimeline converts segments into a numbered timeline.
func ToTimeline(segments []Segment) *timeline.Timeline {
	entries := make([]timeline.Entry, 0, len(segments))
	for _, seg := range segments {
		entries = append(entries, timeline.Entry{
			Index: len(entries) + 1,
			Start: seg.Start,
			End:   seg.End,
			Text:  seg.Text,
		})
	}
	return timeline.New(entries)
}
