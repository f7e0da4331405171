package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RunRepo persists pipeline runs and per-job health rows.
type RunRepo struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) CreateRun(ctx context.Context, run PipelineRun) error {
	details, err := marshalDetails(run.Details)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs (id, job_name, started_at, status, items_in, items_out, error_count, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.JobName, formatTime(run.StartedAt), run.Status, run.ItemsIn, run.ItemsOut, run.ErrorCount, details)
	if err != nil {
		return fmt.Errorf("failed to create pipeline run: %w", err)
	}

	return nil
}

func (r *RunRepo) FinishRun(ctx context.Context, run PipelineRun) error {
	details, err := marshalDetails(run.Details)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET finished_at = ?, status = ?, items_in = ?, items_out = ?, error_count = ?, details = ?
		WHERE id = ?
	`, formatNullTime(run.FinishedAt), run.Status, run.ItemsIn, run.ItemsOut, run.ErrorCount, details, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish pipeline run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("pipeline run %s: %w", run.ID, ErrNotFound)
	}

	return nil
}

func (r *RunRepo) ListRuns(ctx context.Context, jobName string, limit int) ([]PipelineRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, job_name, started_at, finished_at, status, items_in, items_out, error_count, details
		FROM pipeline_runs
		WHERE ? = '' OR job_name = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, jobName, jobName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []PipelineRun
	for rows.Next() {
		var run PipelineRun
		var started, details string
		var finished sql.NullString
		err := rows.Scan(&run.ID, &run.JobName, &started, &finished, &run.Status,
			&run.ItemsIn, &run.ItemsOut, &run.ErrorCount, &details)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run row: %w", err)
		}
		if run.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if run.FinishedAt, err = parseNullTime(finished); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(details), &run.Details); err != nil {
			return nil, fmt.Errorf("failed to decode run details: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pipeline run rows: %w", err)
	}

	return runs, nil
}

// RecordSuccess resets the failure streak of a job.
func (r *RunRepo) RecordSuccess(ctx context.Context, jobName string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_health (job_name, last_success_at, consecutive_failures)
		VALUES (?, ?, 0)
		ON CONFLICT (job_name) DO UPDATE SET
			last_success_at = excluded.last_success_at,
			consecutive_failures = 0
	`, jobName, formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to record job success: %w", err)
	}
	return nil
}

// RecordFailure extends the failure streak of a job and stores the latest error.
func (r *RunRepo) RecordFailure(ctx context.Context, jobName string, message string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_health (job_name, consecutive_failures, last_error, last_error_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT (job_name) DO UPDATE SET
			consecutive_failures = job_health.consecutive_failures + 1,
			last_error = excluded.last_error,
			last_error_at = excluded.last_error_at
	`, jobName, message, formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	return nil
}

func (r *RunRepo) GetHealth(ctx context.Context, jobName string) (*JobHealth, error) {
	health, err := r.queryHealth(ctx, `WHERE job_name = ?`, jobName)
	if err != nil {
		return nil, err
	}
	if len(health) == 0 {
		return nil, ErrNotFound
	}
	return &health[0], nil
}

func (r *RunRepo) ListHealth(ctx context.Context) ([]JobHealth, error) {
	return r.queryHealth(ctx, `ORDER BY job_name`)
}

func (r *RunRepo) queryHealth(ctx context.Context, clause string, args ...any) ([]JobHealth, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT job_name, last_success_at, consecutive_failures, COALESCE(last_error, ''), last_error_at
		FROM job_health `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query job health: %w", err)
	}
	defer rows.Close()

	var result []JobHealth
	for rows.Next() {
		var h JobHealth
		var lastSuccess, lastErrorAt sql.NullString
		err := rows.Scan(&h.JobName, &lastSuccess, &h.ConsecutiveFailures, &h.LastError, &lastErrorAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job health row: %w", err)
		}
		if h.LastSuccessAt, err = parseNullTime(lastSuccess); err != nil {
			return nil, err
		}
		if h.LastErrorAt, err = parseNullTime(lastErrorAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job health rows: %w", err)
	}

	return result, nil
}

func marshalDetails(details map[string]any) (string, error) {
	if details == nil {
		return "{}", nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("failed to encode run details: %w", err)
	}
	return string(data), nil
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
