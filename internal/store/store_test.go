package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"optbrief/internal/artifact"
	"optbrief/internal/pipeline"
	"optbrief/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRun(id string, started time.Time) *pipeline.Run {
	return &pipeline.Run{
		ID:        id,
		Pipeline:  "daily-brief",
		Trigger:   pipeline.TriggerSchedule,
		Status:    pipeline.StatusRunning,
		StartedAt: started,
		Steps: []pipeline.StepResult{
			{Name: "restore cache", Status: pipeline.StatusPending},
			{Name: "generate report", Status: pipeline.StatusPending},
			{Name: "archive reports", Status: pipeline.StatusPending},
		},
	}
}

func TestStore_RunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 14, 23, 50, 0, 0, time.UTC)

	run := testRun("run_abc", started)
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	if err := s.StartStep(ctx, run.ID, 0, started.Add(time.Second)); err != nil {
		t.Fatalf("StartStep: %v", err)
	}
	if err := s.FinishStep(ctx, run.ID, 0, pipeline.StepResult{
		Name:       "restore cache",
		Status:     pipeline.StatusSucceeded,
		StartedAt:  started.Add(time.Second),
		FinishedAt: started.Add(2 * time.Second),
	}); err != nil {
		t.Fatalf("FinishStep: %v", err)
	}

	run.Status = pipeline.StatusFailed
	run.FinishedAt = started.Add(time.Minute)
	run.Error = "step \"generate report\" failed"
	if err := s.FinishRun(ctx, run); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != pipeline.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Trigger != pipeline.TriggerSchedule {
		t.Errorf("trigger = %s, want schedule", got.Trigger)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, started)
	}
	if len(got.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(got.Steps))
	}
	if got.Steps[0].Status != pipeline.StatusSucceeded {
		t.Errorf("step[0] status = %s, want succeeded", got.Steps[0].Status)
	}
	if got.Steps[1].Status != pipeline.StatusPending {
		t.Errorf("step[1] status = %s, want pending", got.Steps[1].Status)
	}
}

func TestStore_GetRunNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetRun(context.Background(), "run_missing")
	if !errors.Is(err, pipeline.ErrRunNotFound) {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"run_1", "run_2", "run_3"} {
		if err := s.CreateRun(ctx, testRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("CreateRun %s: %v", id, err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len = %d, want 2", len(runs))
	}
	if runs[0].ID != "run_3" || runs[1].ID != "run_2" {
		t.Errorf("order = %s, %s; want run_3, run_2", runs[0].ID, runs[1].ID)
	}
}

func TestStore_RecoverStale(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, testRun("run_stale", time.Now().UTC())); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	n, err := s.RecoverStale(ctx, "interrupted by restart")
	if err != nil {
		t.Fatalf("RecoverStale: %v", err)
	}
	if n != 1 {
		t.Errorf("recovered = %d, want 1", n)
	}

	got, err := s.GetRun(ctx, "run_stale")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != pipeline.StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Error != "interrupted by restart" {
		t.Errorf("error = %q", got.Error)
	}
	for i, step := range got.Steps {
		if step.Status != pipeline.StatusFailed {
			t.Errorf("step[%d] status = %s, want failed", i, step.Status)
		}
	}
}

func TestStore_ArtifactLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 14, 23, 55, 0, 0, time.UTC)

	set := artifact.Set{
		ID:        "art_1",
		RunID:     "run_abc",
		Name:      "archive reports",
		Files:     []string{"report_20260315_0855_JST.md"},
		Bytes:     2048,
		CreatedAt: created,
		ExpiresAt: created.Add(30 * 24 * time.Hour),
	}
	if err := s.InsertArtifact(ctx, set); err != nil {
		t.Fatalf("InsertArtifact: %v", err)
	}

	got, err := s.GetArtifact(ctx, "art_1")
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if got.Bytes != 2048 || len(got.Files) != 1 || got.Files[0] != set.Files[0] {
		t.Errorf("got %+v", got)
	}

	forRun, err := s.ArtifactsForRun(ctx, "run_abc")
	if err != nil {
		t.Fatalf("ArtifactsForRun: %v", err)
	}
	if len(forRun) != 1 {
		t.Fatalf("len = %d, want 1", len(forRun))
	}

	// Not expired yet.
	expired, err := s.ExpiredArtifacts(ctx, created.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ExpiredArtifacts: %v", err)
	}
	if len(expired) != 0 {
		t.Errorf("expired early: %v", expired)
	}

	// Past the deadline.
	expired, err = s.ExpiredArtifacts(ctx, created.Add(31*24*time.Hour))
	if err != nil {
		t.Fatalf("ExpiredArtifacts: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expired = %d, want 1", len(expired))
	}

	if err := s.DeleteArtifact(ctx, "art_1"); err != nil {
		t.Fatalf("DeleteArtifact: %v", err)
	}
	if err := s.DeleteArtifact(ctx, "art_1"); !errors.Is(err, artifact.ErrSetNotFound) {
		t.Fatalf("second delete err = %v, want ErrSetNotFound", err)
	}
}

func TestStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "optbrief.db")
	ctx := context.Background()

	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.CreateRun(ctx, testRun("run_persist", time.Now().UTC())); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s2.Close() }()

	if _, err := s2.GetRun(ctx, "run_persist"); err != nil {
		t.Fatalf("GetRun after reopen: %v", err)
	}
}
