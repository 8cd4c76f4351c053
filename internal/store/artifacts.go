package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"optbrief/internal/artifact"
)

// InsertArtifact records an archived artifact set.
func (s *Store) InsertArtifact(ctx context.Context, set artifact.Set) error {
	filesJSON, err := json.Marshal(set.Files)
	if err != nil {
		return fmt.Errorf("store: marshal files: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, run_id, name, files, bytes, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		set.ID, set.RunID, set.Name, string(filesJSON), set.Bytes,
		formatTime(set.CreatedAt), formatTime(set.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("store: insert artifact: %w", err)
	}
	return nil
}

// GetArtifact returns one artifact set, or artifact.ErrSetNotFound.
func (s *Store) GetArtifact(ctx context.Context, id string) (*artifact.Set, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, name, files, bytes, created_at, expires_at
		FROM artifacts WHERE id = ?`, id,
	)
	set, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", artifact.ErrSetNotFound, id)
	}
	return set, err
}

// ListArtifacts returns up to limit artifact sets, newest first.
func (s *Store) ListArtifacts(ctx context.Context, limit int) ([]artifact.Set, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, name, files, bytes, created_at, expires_at
		FROM artifacts ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectArtifacts(rows)
}

// ArtifactsForRun returns the artifact sets produced by one run.
func (s *Store) ArtifactsForRun(ctx context.Context, runID string) ([]artifact.Set, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, name, files, bytes, created_at, expires_at
		FROM artifacts WHERE run_id = ? ORDER BY created_at`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: artifacts for run: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectArtifacts(rows)
}

// ExpiredArtifacts returns every set whose expiry is at or before now.
func (s *Store) ExpiredArtifacts(ctx context.Context, now time.Time) ([]artifact.Set, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, name, files, bytes, created_at, expires_at
		FROM artifacts WHERE expires_at <= ? ORDER BY expires_at`,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("store: expired artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectArtifacts(rows)
}

// DeleteArtifact removes an artifact row. Returns artifact.ErrSetNotFound
// if the ID does not exist.
func (s *Store) DeleteArtifact(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM artifacts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("store: delete artifact: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", artifact.ErrSetNotFound, id)
	}
	return nil
}

func collectArtifacts(rows *sql.Rows) ([]artifact.Set, error) {
	var sets []artifact.Set
	for rows.Next() {
		set, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: scan artifact rows: %w", err)
	}
	return sets, nil
}

func scanArtifact(row scanner) (*artifact.Set, error) {
	var (
		set                artifact.Set
		filesJSON          string
		createdStr, expStr string
	)
	err := row.Scan(&set.ID, &set.RunID, &set.Name, &filesJSON, &set.Bytes, &createdStr, &expStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("store: scan artifact: %w", err)
	}

	if filesJSON != "" && filesJSON != "[]" && filesJSON != "null" {
		if err := json.Unmarshal([]byte(filesJSON), &set.Files); err != nil {
			return nil, fmt.Errorf("store: unmarshal files: %w", err)
		}
	}
	if set.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	if set.ExpiresAt, err = parseTime(expStr); err != nil {
		return nil, err
	}
	return &set, nil
}
