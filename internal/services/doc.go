// Package services defines shared utilities consumed by the pipeline stages
// and the external integrations beneath them.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, input file names, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent ledger statuses (failed vs rejected).
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
