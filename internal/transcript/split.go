package transcript

import "strings"

// MinSpeakerRun is the shortest stretch, in seconds, kept as its own
// segment when the speaker changes.
const MinSpeakerRun = 1.0

// SentenceEnders close a sentence when a word ends with one of them.
const SentenceEnders = "。！？.!?"

// Split breaks each word-timed segment first at speaker changes and then at
// sentence-ending punctuation. Words are re-joined with sep ("" for
// languages written without spaces). Segments without word timing pass
// through unchanged.
func Split(segments []Segment, sep string) []Segment {
	out := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if !seg.HasWordTiming() {
			out = append(out, seg)
			continue
		}
		seg.Words = inferTiming(seg)
		for _, bySpeaker := range splitBy(seg, sep, speakerRanges) {
			out = append(out, splitBy(bySpeaker, sep, punctuationRanges)...)
		}
	}
	return out
}

// inferTiming fills untimed words from the nearest timed neighbours (or the
// segment bounds) and carries the running speaker over to them.
func inferTiming(seg Segment) []Word {
	words := make([]Word, len(seg.Words))
	copy(words, seg.Words)
	speaker := ""
	for i := range words {
		if words[i].Timed {
			speaker = words[i].Speaker
			continue
		}
		words[i].Start = seg.Start
		for j := i - 1; j >= 0; j-- {
			if seg.Words[j].Timed {
				words[i].Start = seg.Words[j].End
				break
			}
		}
		words[i].End = seg.End
		for j := i + 1; j < len(words); j++ {
			if seg.Words[j].Timed {
				words[i].End = seg.Words[j].Start
				break
			}
		}
		words[i].Speaker = speaker
	}
	return words
}

type wordRange struct{ first, last int }

func splitBy(seg Segment, sep string, ranges func([]Word) []wordRange) []Segment {
	var out []Segment
	for _, r := range ranges(seg.Words) {
		words := seg.Words[r.first : r.last+1]
		texts := make([]string, len(words))
		for i, w := range words {
			texts[i] = strings.TrimSpace(w.Text)
		}
		text := strings.TrimSpace(strings.Join(texts, sep))
		if text == "" {
			continue
		}
		out = append(out, Segment{
			Start:   words[0].Start,
			End:     words[len(words)-1].End,
			Text:    text,
			Speaker: words[0].Speaker,
			Words:   words,
		})
	}
	return out
}

// speakerRanges cuts before a word whose speaker differs from the current
// run, provided the run has lasted at least MinSpeakerRun.
func speakerRanges(words []Word) []wordRange {
	var ranges []wordRange
	first := 0
	runStart := -1.0
	speaker := ""
	for i, w := range words {
		if !w.Timed {
			continue
		}
		if runStart < 0 {
			runStart, speaker = w.Start, w.Speaker
			continue
		}
		if w.Speaker != speaker && w.Start-runStart >= MinSpeakerRun {
			ranges = append(ranges, wordRange{first, i - 1})
			first, runStart, speaker = i, w.Start, w.Speaker
		}
	}
	return append(ranges, wordRange{first, len(words) - 1})
}

// punctuationRanges cuts after every word ending a sentence.
func punctuationRanges(words []Word) []wordRange {
	var ranges []wordRange
	first := 0
	for i, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" || endsWithRune(text, SentenceEnders) {
			ranges = append(ranges, wordRange{first, i})
			first = i + 1
		}
	}
	if first < len(words) {
		ranges = append(ranges, wordRange{first, len(words) - 1})
	}
	return ranges
}

func endsWithRune(text, set string) bool {
	runes := []rune(text)
	return len(runes) > 0 && strings.ContainsRune(set, runes[len(runes)-1])
}
