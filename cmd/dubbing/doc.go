// Package main hosts the dubbing CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once per invocation, wires
// the transcription, translation, speech and muxing collaborators into the
// pipeline, and renders run reports, preflight results and run history as
// tables. The heavy lifting lives in the internal packages; commands here
// only parse flags, build collaborators and present results.
package main
