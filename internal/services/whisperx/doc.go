// Package whisperx runs WhisperX through uvx to transcribe the speech track
// of a video and loads the JSON transcript it writes.
//
// Alignment and speaker diarization are optional; when alignment is off the
// transcript carries segment timing only. Subprocesses go through an
// injectable runner so tests never start Python.
package whisperx
