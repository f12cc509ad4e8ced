// Package transcript validates WhisperX output into typed segments and
// turns it into the source subtitle timeline. With word timing available,
// long segments are split at speaker changes and then at sentence-ending
// punctuation; without it segments pass through unchanged.
package transcript
