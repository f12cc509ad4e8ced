package ledger

import "time"

// Status is the outcome recorded for a run or a file.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	// StatusRejected marks inputs that failed validation and need user action
	// rather than a retry.
	StatusRejected Status = "rejected"
	// StatusPartial marks a run where some files failed.
	StatusPartial Status = "partial"
)

// Run is one invocation of the pipeline.
type Run struct {
	ID          string
	Status      Status
	OptionsJSON string
	FileCount   int
	FailedCount int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration returns how long the run took, or zero while it is still open.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FileResult is the outcome of one input file within a run.
type FileResult struct {
	RunID    string
	Name     string
	Stage    string
	Status   Status
	Error    string
	Outputs  []string
	Duration time.Duration
}
