package reconcile

import (
	"math"
	"strings"
	"unicode"

	"dubbing/internal/services/tts"
	"dubbing/internal/textmetrics"
	"dubbing/internal/textutil"
)

// Alignment search bounds.
const (
	// startWindow is how many words a line may skip before its first match.
	startWindow = 3
	// spanSlack is added to a line's rune count to bound its word span.
	spanSlack = 2
	// minScore is the similarity below which a line counts as unmatched.
	minScore = 0.2
)

// Span is the part of a batch's audio that belongs to one line. First and
// Last index the batch's word timings. A line matched last in its batch
// runs to the end of the audio (End is +Inf). Unmatched lines have
// Matched false and no audio.
type Span struct {
	Start   float64
	End     float64
	First   int
	Last    int
	Score   float64
	Matched bool
}

// normalize drops separators and case so that scoring compares only the
// spoken content.
func normalize(text string) string {
	var b strings.Builder
	for _, r := range text {
		if textmetrics.IsSeparator(r) || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// AlignLines assigns each line a contiguous run of words. The search for
// line i starts where line i-1 ended and only looks forward, so words are
// never re-scanned. A line's span runs from its first matched word to the
// word before the next matched line. A line that scores below minScore gets
// no audio, and the words it should have covered go to neither neighbour:
// the next line may start past them, and the previous line is not extended
// across it.
func AlignLines(words []tts.WordTiming, lines []string) []Span {
	spans := make([]Span, len(lines))
	missed := make([]bool, len(lines))
	norm := make([]string, len(words))
	for i, w := range words {
		norm[i] = normalize(w.Text)
	}

	floor := 0
	reach := 0
	for i, line := range lines {
		target := normalize(line)
		if floor >= len(words) || target == "" {
			continue
		}
		maxWords := len([]rune(target)) + spanSlack
		best := Span{Score: -1}
		for s := floor; s < min(floor+startWindow+reach, len(words)); s++ {
			var joined strings.Builder
			for e := s; e < min(s+maxWords, len(words)); e++ {
				joined.WriteString(norm[e])
				score := textutil.Ratio(target, joined.String())
				if score > best.Score {
					best = Span{First: s, Last: e, Score: score}
				}
			}
		}
		if best.Score < minScore {
			spans[i] = Span{Score: math.Max(best.Score, 0)}
			missed[i] = true
			// The words of this line are still ahead of the floor.
			reach += maxWords
			continue
		}
		best.Matched = true
		spans[i] = best
		floor = best.Last + 1
		reach = 0
	}

	// Extend every matched line up to the word before the next match,
	// unless a missed line lies in between.
	prev := -1
	blocked := false
	for i := range spans {
		if missed[i] {
			blocked = true
			continue
		}
		if !spans[i].Matched {
			continue
		}
		if prev >= 0 && !blocked {
			spans[prev].Last = spans[i].First - 1
		}
		prev = i
		blocked = false
	}
	if prev >= 0 && !blocked {
		spans[prev].Last = len(words) - 1
	}
	for i := range spans {
		if !spans[i].Matched {
			continue
		}
		spans[i].Start = words[spans[i].First].Start
		spans[i].End = words[spans[i].Last].End
		if i == prev && !blocked {
			spans[i].End = math.Inf(1)
		}
	}
	return spans
}
