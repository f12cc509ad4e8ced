// Package tts synthesizes speech with edge-tts, run through uvx, and
// returns the word boundaries the service reports alongside the audio.
//
// Requests share a token-bucket limiter. Failed requests are retried with
// exponential backoff until the context ends; a partially written audio
// file is removed before every retry so a later run never mistakes it for a
// finished clip.
package tts
