package preflight

import (
	"context"
	"fmt"
	"strings"

	"dubbing/internal/config"
	"dubbing/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options selects the optional checks.
type Options struct {
	// CheckLLM makes a live request to the translation API.
	CheckLLM bool
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding stage is enabled.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}
	var results []Result

	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	if cfg.Paths.OutputDir != "" {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}

	for _, status := range CheckSystemDeps(ctx, cfg) {
		results = append(results, fromStatus(status))
	}

	if cfg.Translate.Enabled && opts.CheckLLM {
		results = append(results, CheckLLM(ctx, cfg.LLM))
	}
	return results
}

func fromStatus(s deps.Status) Result {
	if s.Available {
		detail := s.Path
		if s.Version != "" {
			detail = fmt.Sprintf("%s (%s)", s.Path, s.Version)
		}
		return Result{Name: s.Name, Passed: true, Detail: detail}
	}
	if s.Optional {
		return Result{Name: s.Name, Passed: true, Detail: s.Detail + " (optional)"}
	}
	return Result{Name: s.Name, Detail: s.Detail}
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err summarizes failed checks as one error, or nil when all passed.
func Err(results []Result) error {
	failed := Failed(results)
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(parts, "; "))
}
