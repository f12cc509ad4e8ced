// Package mux embeds subtitle tracks into a Matroska copy of a video with
// mkvmerge. Each track carries its own title and language, the first track
// is marked default, and the output appears atomically.
package mux
