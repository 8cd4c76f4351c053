package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// memRunFinder is an in-memory RunFinder.
type memRunFinder struct {
	runs map[string]*Run
	err  error
}

func (m *memRunFinder) GetRun(_ context.Context, id string) (*Run, error) {
	if m.err != nil {
		return nil, m.err
	}
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

func writeLog(t *testing.T, dir, runID string) string {
	t.Helper()
	path := filepath.Join(dir, runID+".log")
	if err := os.WriteFile(path, []byte("step output\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLogPruner_SweepLogs(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 4, 15, 0, 15, 0, 0, time.UTC)
	old := now.Add(-31 * 24 * time.Hour)
	recent := now.Add(-2 * 24 * time.Hour)

	dataDir := t.TempDir()
	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}

	orphan := writeLog(t, logDir, "run-orphan")
	expired := writeLog(t, logDir, "run-expired")
	fresh := writeLog(t, logDir, "run-fresh")
	active := writeLog(t, logDir, "run-active")
	stray := filepath.Join(logDir, "notes.txt")
	if err := os.WriteFile(stray, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	finder := &memRunFinder{runs: map[string]*Run{
		"run-expired": {ID: "run-expired", Status: StatusSucceeded, FinishedAt: old},
		"run-fresh":   {ID: "run-fresh", Status: StatusFailed, FinishedAt: recent},
		"run-active":  {ID: "run-active", Status: StatusRunning, StartedAt: old},
	}}

	pruner := NewLogPruner(dataDir, finder, 0, slog.Default())
	removed, err := pruner.SweepLogs(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	for _, gone := range []string{orphan, expired} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", filepath.Base(gone))
		}
	}
	for _, kept := range []string{fresh, active, stray} {
		if _, err := os.Stat(kept); err != nil {
			t.Errorf("%s should have been kept: %v", filepath.Base(kept), err)
		}
	}
}

func TestLogPruner_MissingLogDir(t *testing.T) {
	t.Parallel()

	pruner := NewLogPruner(t.TempDir(), &memRunFinder{}, 0, slog.Default())
	removed, err := pruner.SweepLogs(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestLogPruner_LookupError(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	writeLog(t, logDir, "run-1")

	finder := &memRunFinder{err: errors.New("database is locked")}
	pruner := NewLogPruner(dataDir, finder, 0, slog.Default())

	if _, err := pruner.SweepLogs(context.Background(), time.Now()); err == nil {
		t.Fatal("expected lookup error to propagate")
	}
	if _, err := os.Stat(filepath.Join(logDir, "run-1.log")); err != nil {
		t.Errorf("log should survive a failed sweep: %v", err)
	}
}

func TestLogPruner_DefaultMaxAge(t *testing.T) {
	t.Parallel()

	pruner := NewLogPruner(t.TempDir(), &memRunFinder{}, 0, slog.Default())
	if pruner.maxAge != DefaultRetention {
		t.Errorf("maxAge = %v, want %v", pruner.maxAge, DefaultRetention)
	}
}
