package store

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		pipeline     TEXT NOT NULL,
		triggered_by TEXT NOT NULL,
		status       TEXT NOT NULL,
		started_at   TEXT NOT NULL,
		finished_at  TEXT NOT NULL DEFAULT '',
		error        TEXT NOT NULL DEFAULT '',
		workspace    TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC)`,

	`CREATE TABLE IF NOT EXISTS run_steps (
		run_id      TEXT    NOT NULL,
		idx         INTEGER NOT NULL,
		name        TEXT    NOT NULL,
		status      TEXT    NOT NULL,
		started_at  TEXT    NOT NULL DEFAULT '',
		finished_at TEXT    NOT NULL DEFAULT '',
		error       TEXT    NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, idx)
	)`,

	`CREATE TABLE IF NOT EXISTS artifacts (
		id         TEXT PRIMARY KEY,
		run_id     TEXT    NOT NULL,
		name       TEXT    NOT NULL,
		files      TEXT    NOT NULL DEFAULT '[]',
		bytes      INTEGER NOT NULL DEFAULT 0,
		created_at TEXT    NOT NULL,
		expires_at TEXT    NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id)`,

	`CREATE INDEX IF NOT EXISTS idx_artifacts_expires ON artifacts(expires_at)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("store: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("store: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("store: record schema version: %w", err)
	}

	return nil
}
