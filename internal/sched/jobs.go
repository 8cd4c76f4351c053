package sched

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Default schedules. The pipeline fires daily at 23:50 in its configured
// timezone; the retention sweep runs shortly after midnight.
const (
	DefaultPipelineSchedule  = "50 23 * * *"
	DefaultRetentionSchedule = "15 0 * * *"
)

// Pipeline is the subset of the pipeline runner needed by the scheduled
// job. Defined here to avoid a circular dependency on the pipeline
// package.
type Pipeline interface {
	RunScheduled(ctx context.Context) error
}

// PipelineJob triggers one pipeline run per tick. Overlapping ticks are
// skipped by the scheduler's per-job lock, so a run that outlasts its
// interval never piles up behind itself.
type PipelineJob struct {
	Pipeline     Pipeline
	Logger       *slog.Logger
	ScheduleExpr string // empty = registered but unscheduled
}

// Compile-time interface check.
var _ Job = (*PipelineJob)(nil)

// Name implements Job.
func (j *PipelineJob) Name() string { return "pipeline_run" }

// Schedule implements Job.
func (j *PipelineJob) Schedule() string { return j.ScheduleExpr }

// Run executes one scheduled pipeline run.
func (j *PipelineJob) Run(ctx context.Context) error {
	if err := j.Pipeline.RunScheduled(ctx); err != nil {
		return fmt.Errorf("sched: scheduled run: %w", err)
	}
	return nil
}

// Sweeper is the subset of the artifact store needed by the retention
// job.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (removed int, freed int64, err error)
}

// LogSweeper prunes run logs that have outlived their run.
type LogSweeper interface {
	SweepLogs(ctx context.Context, now time.Time) (removed int, err error)
}

// RetentionJob deletes artifact sets whose retention has lapsed, and
// optionally prunes orphaned run logs alongside them.
type RetentionJob struct {
	Sweeper      Sweeper
	Logs         LogSweeper // optional
	Logger       *slog.Logger
	ScheduleExpr string // empty = registered but unscheduled

	// Now is injectable for tests.
	Now func() time.Time
}

// Compile-time interface check.
var _ Job = (*RetentionJob)(nil)

// Name implements Job.
func (j *RetentionJob) Name() string { return "artifact_retention" }

// Schedule implements Job.
func (j *RetentionJob) Schedule() string { return j.ScheduleExpr }

// Run sweeps expired artifact sets, then stale run logs.
func (j *RetentionJob) Run(ctx context.Context) error {
	now := time.Now().UTC()
	if j.Now != nil {
		now = j.Now().UTC()
	}

	removed, freed, err := j.Sweeper.Sweep(ctx, now)
	if err != nil {
		return fmt.Errorf("sched: retention sweep: %w", err)
	}
	if removed > 0 {
		j.Logger.Info("sched: expired artifacts removed", "count", removed, "bytes", freed)
	}

	if j.Logs != nil {
		pruned, err := j.Logs.SweepLogs(ctx, now)
		if err != nil {
			return fmt.Errorf("sched: log sweep: %w", err)
		}
		if pruned > 0 {
			j.Logger.Info("sched: stale run logs removed", "count", pruned)
		}
	}
	return nil
}
