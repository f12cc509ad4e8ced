// Package preflight provides readiness checks for the external tools,
// services and filesystem paths a dubbing run depends on.
//
// The run command calls RunAll before processing any file so a missing
// tool or unwritable directory fails fast. The check command shows the
// same results, plus tool versions, as a table.
//
// Each check is gated by its config toggle; disabled stages are skipped.
package preflight
