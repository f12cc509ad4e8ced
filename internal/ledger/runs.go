package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, id, optionsJSON string, files int) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("begin run: id required")
	}
	err := s.exec(ctx,
		`INSERT INTO runs (id, status, options_json, file_count, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(StatusRunning), optionsJSON, files, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// RecordFile stores the outcome of one input file.
func (s *Store) RecordFile(ctx context.Context, result FileResult) error {
	outputs, err := json.Marshal(result.Outputs)
	if err != nil {
		return fmt.Errorf("encode outputs: %w", err)
	}
	err = s.exec(ctx,
		`INSERT INTO file_results (run_id, name, stage, status, error_message, outputs_json, duration_ms, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.Name, result.Stage, string(result.Status), result.Error,
		string(outputs), result.Duration.Milliseconds(), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record file %s: %w", result.Name, err)
	}
	return nil
}

// FinishRun closes a run with its aggregate status.
func (s *Store) FinishRun(ctx context.Context, id string, status Status, failed int) error {
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE runs SET status = ?, failed_count = ?, finished_at = ? WHERE id = ?`,
			string(status), failed, formatTime(time.Now()), id,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// RecentRuns lists the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, options_json, file_count, failed_count, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun loads a single run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, options_json, file_count, failed_count, started_at, finished_at
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// FileResults returns every file outcome recorded for a run in insertion order.
func (s *Store) FileResults(ctx context.Context, runID string) ([]FileResult, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, name, stage, status, error_message, outputs_json, duration_ms
		 FROM file_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list file results: %w", err)
	}
	defer rows.Close()

	var results []FileResult
	for rows.Next() {
		var (
			result     FileResult
			stage      sql.NullString
			status     string
			errMessage sql.NullString
			outputs    sql.NullString
			durationMS int64
		)
		if err := rows.Scan(&result.RunID, &result.Name, &stage, &status, &errMessage, &outputs, &durationMS); err != nil {
			return nil, fmt.Errorf("scan file result: %w", err)
		}
		result.Stage = stage.String
		result.Status = Status(status)
		result.Error = errMessage.String
		result.Duration = time.Duration(durationMS) * time.Millisecond
		if outputs.Valid && outputs.String != "" {
			if err := json.Unmarshal([]byte(outputs.String), &result.Outputs); err != nil {
				return nil, fmt.Errorf("decode outputs for %s: %w", result.Name, err)
			}
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run        Run
		status     string
		options    sql.NullString
		startedRaw sql.NullString
		finished   sql.NullString
	)
	if err := scanner.Scan(&run.ID, &status, &options, &run.FileCount, &run.FailedCount, &startedRaw, &finished); err != nil {
		return Run{}, err
	}
	run.Status = Status(status)
	run.OptionsJSON = options.String
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finished)
	return run, nil
}
