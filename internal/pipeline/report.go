package pipeline

import (
	"time"

	"dubbing/internal/ledger"
)

// FileOutcome is the result of one file. Stage names the stage that failed
// and is empty on success.
type FileOutcome struct {
	Name     string
	Input    string
	Stage    string
	Status   ledger.Status
	Err      error
	Outputs  []string
	Duration time.Duration
}

// Failed reports whether the file did not complete.
func (o FileOutcome) Failed() bool {
	return o.Status != ledger.StatusSucceeded
}

// Report summarizes a run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      []FileOutcome
}

// Failures returns the files that did not complete, in input order.
func (r Report) Failures() []FileOutcome {
	var failed []FileOutcome
	for _, f := range r.Files {
		if f.Failed() {
			failed = append(failed, f)
		}
	}
	return failed
}

// Status folds the file outcomes into a run status. A run with no files
// succeeded trivially.
func (r Report) Status() ledger.Status {
	failed := len(r.Failures())
	switch {
	case failed == 0:
		return ledger.StatusSucceeded
	case failed == len(r.Files):
		return ledger.StatusFailed
	default:
		return ledger.StatusPartial
	}
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
