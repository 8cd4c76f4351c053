// Package sched runs the daemon's background jobs on cron schedules:
// the scheduled pipeline run and the artifact retention sweep.
package sched

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Job defines a scheduled background task.
type Job interface {
	// Name returns a unique identifier for this job (used for logging and dedup).
	Name() string

	// Schedule returns a 5-field cron expression (e.g., "50 23 * * *").
	Schedule() string

	// Run executes the job. Implementations should check ctx.Done() for
	// graceful cancellation.
	Run(ctx context.Context) error
}

// scheduleParser accepts standard 5-field cron expressions: minute, hour,
// day of month, month, day of week.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule validates a 5-field cron expression and returns its
// schedule. Configuration validation uses it to reject bad expressions
// before the scheduler starts.
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("sched: invalid schedule %q: %w", expr, err)
	}
	return schedule, nil
}
