// Package ledger persists run history and the translation response cache in
// SQLite.
//
// A run row is opened when `dubbing run` starts and closed with an aggregate
// status once every input file finished; each file contributes one result
// row carrying the stage it reached, its outputs, and the failure reason if
// any. The translations table memoizes LLM responses keyed by model, target
// language and prompt so that reruns over the same subtitles do not bill the
// provider again.
//
// Schema changes bump schemaVersion in schema.go; users delete the database
// to adopt the new schema.
package ledger
