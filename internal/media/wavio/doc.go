// Package wavio reads, slices and writes PCM WAV files with go-audio. The
// dubbing pipeline keeps every intermediate clip as 16-bit mono WAV so clip
// durations can be measured exactly without probing.
package wavio
