// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The pipeline inspects every input video before transcription to make sure
// it carries an audio stream, and reads the duration of rendered dubbing
// tracks for the run report.
package ffprobe
