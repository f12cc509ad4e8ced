// Package reconcile fits synthesized speech back onto the subtitle timeline.
//
// Speech is synthesized for whole batches of lines, so the word boundaries
// of a batch are first aligned to its lines with a monotonic windowed
// similarity search. The batch audio is then cut into one clip per line.
// Finally lines whose clip overruns its slot borrow time from an immediate
// neighbour with spare time, and every line becomes a Segment that the
// concatenation step places on the output track.
package reconcile
