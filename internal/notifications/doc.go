// Package notifications publishes run events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the pipeline can notify unconditionally. Delivery failures are returned to
// the caller, which logs them; a dead ntfy server never fails a run.
package notifications
