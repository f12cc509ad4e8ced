// Package textmetrics measures and slices mixed ideographic/Latin text.
//
// Hybrid length counts a run of word-forming runes (letters, digits,
// connector and dash punctuation) as one unit, every ideograph as one unit
// and separators (spaces, control runes, other punctuation) as zero. It is
// the common length budget used by the timeline reflow operations and the
// translation fallback, so slicing must never lose or duplicate a unit.
package textmetrics
