// Package pipeline runs the dubbing workflow over a set of input files.
//
// Each file moves through up to four stages: transcription of the video's
// speech into a source subtitle track, translation of that track, speech
// synthesis of the translation onto a new audio track, and muxing of the
// subtitle tracks into a Matroska copy of the video.
//
// Transcription holds the GPU, so files are transcribed one at a time. As
// soon as a file's transcript exists its remaining stages run in the
// background, bounded by workflow.max_parallel_files. A file that fails is
// recorded in the run report and never stops its siblings.
package pipeline
