package reconcile

import (
	"dubbing/internal/timeline"
)

// Margin is the slack a lending neighbour always keeps.
const Margin = 0.1

// BorrowOptions controls when an overrunning line may take time from a
// neighbour.
type BorrowOptions struct {
	// MinBorrow is the slack a neighbour needs before it lends anything.
	MinBorrow float64
	// BorrowInterval is the largest gap across which time is lent.
	BorrowInterval float64
}

// BuildSegments pairs clips with their target lines. A line whose clip is
// longer than its slot first borrows from the previous line and then from
// the next one, each time only when the neighbour has more than
// max(MinBorrow, Margin) seconds of slack and sits within BorrowInterval.
// A neighbour never lends more than would leave it with less than Margin.
// Borrowing shifts the shared boundary. The target timeline is then made
// contiguous so every gap is owned by the line before it.
//
// Clips and lines are paired by position; any excess on either side is
// ignored.
func BuildSegments(clips []Clip, tl *timeline.Timeline, opts BorrowOptions) []Segment {
	n := min(len(clips), tl.Len())
	entries := make([]timeline.Entry, n)
	copy(entries, tl.Entries[:n])

	threshold := max(opts.MinBorrow, Margin)
	slack := func(i int) float64 {
		return entries[i].Duration() - clips[i].Duration
	}

	for i := 0; i < n; i++ {
		if slack(i) >= 0 {
			continue
		}
		if i > 0 && slack(i-1) > threshold && entries[i].Start-entries[i-1].End < opts.BorrowInterval {
			lend := min(-slack(i), slack(i-1)-Margin)
			entries[i-1].End -= lend
			entries[i].Start -= lend
		}
		if slack(i) < 0 && i+1 < n && slack(i+1) > threshold && entries[i+1].Start-entries[i].End < opts.BorrowInterval {
			lend := min(-slack(i), slack(i+1)-Margin)
			entries[i].End += lend
			entries[i+1].Start += lend
		}
	}

	filled := timeline.New(entries).FillTime(false)
	segments := make([]Segment, n)
	for i, e := range filled.Entries {
		segments[i] = Segment{
			Source:         clips[i].Path,
			TargetStart:    e.Start,
			TargetDuration: e.Duration(),
			ActualDuration: clips[i].Duration,
		}
	}
	return segments
}
