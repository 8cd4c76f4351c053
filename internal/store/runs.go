package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"optbrief/internal/pipeline"
)

// CreateRun inserts a running run record together with one pending row per
// step.
func (s *Store) CreateRun(ctx context.Context, run *pipeline.Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin create run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, pipeline, triggered_by, status, started_at, workspace)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Pipeline, string(run.Trigger), string(run.Status),
		formatTime(run.StartedAt), run.Workspace,
	)
	if err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	for i, step := range run.Steps {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_steps (run_id, idx, name, status)
			VALUES (?, ?, ?, ?)`,
			run.ID, i, step.Name, string(pipeline.StatusPending),
		)
		if err != nil {
			return fmt.Errorf("store: insert step %q: %w", step.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit create run: %w", err)
	}
	return nil
}

// StartStep marks a step as running.
func (s *Store) StartStep(ctx context.Context, runID string, idx int, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE run_steps SET status = ?, started_at = ?
		WHERE run_id = ? AND idx = ?`,
		string(pipeline.StatusRunning), formatTime(startedAt), runID, idx,
	)
	if err != nil {
		return fmt.Errorf("store: start step: %w", err)
	}
	return nil
}

// FinishStep records a step's terminal state.
func (s *Store) FinishStep(ctx context.Context, runID string, idx int, res pipeline.StepResult) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE run_steps SET status = ?, started_at = ?, finished_at = ?, error = ?
		WHERE run_id = ? AND idx = ?`,
		string(res.Status), formatTime(res.StartedAt), formatTime(res.FinishedAt), res.Error,
		runID, idx,
	)
	if err != nil {
		return fmt.Errorf("store: finish step: %w", err)
	}
	return nil
}

// FinishRun records a run's terminal state.
func (s *Store) FinishRun(ctx context.Context, run *pipeline.Run) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ?, error = ?, workspace = ?
		WHERE id = ?`,
		string(run.Status), formatTime(run.FinishedAt), run.Error, run.Workspace, run.ID,
	)
	if err != nil {
		return fmt.Errorf("store: finish run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", pipeline.ErrRunNotFound, run.ID)
	}
	return nil
}

// GetRun returns a run with its step results, or pipeline.ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (*pipeline.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, pipeline, triggered_by, status, started_at, finished_at, error, workspace
		FROM runs WHERE id = ?`, id,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, status, started_at, finished_at, error
		FROM run_steps WHERE run_id = ? ORDER BY idx`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			step               pipeline.StepResult
			status             string
			startedStr, finStr string
		)
		if err := rows.Scan(&step.Name, &status, &startedStr, &finStr, &step.Error); err != nil {
			return nil, fmt.Errorf("store: scan step: %w", err)
		}
		step.Status = pipeline.Status(status)
		if step.StartedAt, err = parseTime(startedStr); err != nil {
			return nil, err
		}
		if step.FinishedAt, err = parseTime(finStr); err != nil {
			return nil, err
		}
		run.Steps = append(run.Steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan steps rows: %w", err)
	}

	return run, nil
}

// ListRuns returns up to limit runs, newest first, without step detail.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]pipeline.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pipeline, triggered_by, status, started_at, finished_at, error, workspace
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []pipeline.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan runs rows: %w", err)
	}
	return runs, nil
}

// RecoverStale marks runs left in the running state by a previous process
// as failed. Called once at startup, before the scheduler starts.
func (s *Store) RecoverStale(ctx context.Context, reason string) (int, error) {
	now := formatTime(time.Now().UTC())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin recover: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ?, error = ?
		WHERE status = ?`,
		string(pipeline.StatusFailed), now, reason, string(pipeline.StatusRunning),
	)
	if err != nil {
		return 0, fmt.Errorf("store: recover runs: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: rows affected: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE run_steps SET status = ?, finished_at = ?, error = ?
		WHERE status IN (?, ?)`,
		string(pipeline.StatusFailed), now, reason,
		string(pipeline.StatusRunning), string(pipeline.StatusPending),
	)
	if err != nil {
		return 0, fmt.Errorf("store: recover steps: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit recover: %w", err)
	}
	return int(n), nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*pipeline.Run, error) {
	var (
		run                pipeline.Run
		trigger, status    string
		startedStr, finStr string
	)
	err := row.Scan(&run.ID, &run.Pipeline, &trigger, &status, &startedStr, &finStr, &run.Error, &run.Workspace)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan run: %w", err)
	}
	run.Trigger = pipeline.Trigger(trigger)
	run.Status = pipeline.Status(status)
	if run.StartedAt, err = parseTime(startedStr); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseTime(finStr); err != nil {
		return nil, err
	}
	return &run, nil
}

// formatTime stores times as RFC 3339 strings; the zero time becomes ''.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: parse time %q: %w", s, err)
	}
	return t, nil
}
