// Package timeline holds subtitle tracks as ordered, timestamped entries and
// the reflow operations that reshape their line boundaries.
//
// Reflow operations come in two kinds. Merges (MergeByLength,
// MergeSentences) only take the union span of the entries they join, so
// they never approximate time. Splits (SplitByLength, SplitWithRef) divide
// an entry's span by hybrid-length share, which is approximate by nature.
// Every operation conserves content measured in hybrid units (see package
// textmetrics) and renumbers the entries it produces.
//
// Operations that return a *Timeline leave the receiver untouched; the
// time correction helpers (CorrectTime, FillTime, Offset, RemoveEllipsis)
// work in place and return the receiver for chaining.
package timeline
