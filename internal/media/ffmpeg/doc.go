// Package ffmpeg wraps the ffmpeg invocations used to assemble a dubbed
// audio track: normalizing synthesized speech to WAV, time-stretching
// clips that overrun their slot, concatenating clips and silence into one
// track, and muxing that track into the source video as a new default
// audio stream.
package ffmpeg
