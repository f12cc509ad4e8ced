// Package textutil provides small text helpers shared across packages:
// a sequence similarity ratio used when lining synthesized words up with
// subtitle lines, and a token sanitizer for work directory names.
package textutil
