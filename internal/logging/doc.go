// Package logging assembles structured slog loggers and formatting helpers used
// across dubbing packages.
//
// It owns the console and JSON handlers, fans records out to a per-run JSON
// log file, prunes old log files, and exposes context-aware helpers so stage
// code tags log lines with the run ID, input file and pipeline stage. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
