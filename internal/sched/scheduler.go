package sched

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler manages periodic job execution using cron expressions.
// Each job is protected by a per-job mutex to prevent parallel execution
// of the same job via TryLock.
type Scheduler struct {
	mu         sync.Mutex
	loc        *time.Location
	cron       *cron.Cron
	jobs       []Job
	names      map[string]struct{}
	locks      map[string]*sync.Mutex
	entryNames map[cron.EntryID]string
	exprs      map[string]string
	logger     *slog.Logger
	runCtx     context.Context
	cancel     context.CancelFunc
}

// NewScheduler creates a scheduler that evaluates schedules in loc (nil
// means UTC). Jobs must be registered before Start().
func NewScheduler(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		loc:        loc,
		names:      make(map[string]struct{}),
		locks:      make(map[string]*sync.Mutex),
		entryNames: make(map[cron.EntryID]string),
		exprs:      make(map[string]string),
		logger:     logger,
	}
}

// RegisterJob adds a job to the scheduler. Must be called before Start().
// Returns an error if a job with the same name is already registered.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("sched: duplicate job name %q", name)
	}

	s.names[name] = struct{}{}
	s.locks[name] = &sync.Mutex{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start initializes the cron scheduler and begins executing registered jobs.
// Returns an error if any job has an invalid schedule expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.runCtx = ctx
	s.cancel = cancel

	s.cron = cron.New(cron.WithParser(scheduleParser), cron.WithLocation(s.loc))

	for _, j := range s.jobs {
		if err := s.schedule(ctx, j, j.Schedule()); err != nil {
			cancel()
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("sched: scheduler started", "jobs", len(s.jobs), "timezone", s.loc.String())
	return nil
}

// schedule adds one cron entry for job. An empty expression leaves the
// job registered but unscheduled, so a later Reschedule can enable it.
// The caller holds s.mu.
func (s *Scheduler) schedule(ctx context.Context, job Job, expr string) error {
	if expr == "" {
		s.exprs[job.Name()] = ""
		return nil
	}
	lock := s.locks[job.Name()]

	id, err := s.cron.AddFunc(expr, func() {
		// TryLock is atomic, no race between check and acquire.
		// If the previous tick is still running, skip this one.
		if !lock.TryLock() {
			s.logger.Warn("sched: job still running, skipping tick",
				"job", job.Name(),
			)
			return
		}
		defer lock.Unlock()

		s.logger.Debug("sched: job started", "job", job.Name())
		if err := job.Run(ctx); err != nil {
			s.logger.Error("sched: job failed",
				"job", job.Name(),
				"error", err,
			)
		} else {
			s.logger.Debug("sched: job completed", "job", job.Name())
		}
	})
	if err != nil {
		return fmt.Errorf("sched: invalid schedule for job %q: %w", job.Name(), err)
	}
	s.entryNames[id] = job.Name()
	s.exprs[job.Name()] = expr
	return nil
}

// Reschedule moves a registered job to a new cron expression without a
// restart. An empty expression leaves the job unscheduled until the next
// Reschedule. No-op before Start.
func (s *Scheduler) Reschedule(name, expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.names[name]; !ok {
		return fmt.Errorf("sched: unknown job %q", name)
	}
	if s.cron == nil {
		return nil
	}
	if s.exprs[name] == expr {
		return nil
	}

	for id, entryName := range s.entryNames {
		if entryName == name {
			s.cron.Remove(id)
			delete(s.entryNames, id)
		}
	}

	for _, j := range s.jobs {
		if j.Name() != name {
			continue
		}
		if err := s.schedule(s.runCtx, j, expr); err != nil {
			return err
		}
		if expr == "" {
			s.logger.Info("sched: job unscheduled", "job", name)
		} else {
			s.logger.Info("sched: job rescheduled", "job", name, "schedule", expr)
		}
		return nil
	}
	return fmt.Errorf("sched: unknown job %q", name)
}

// NextRuns reports the next scheduled time of each job. Empty until
// Start().
func (s *Scheduler) NextRuns() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}
	next := make(map[string]time.Time, len(s.entryNames))
	for _, e := range s.cron.Entries() {
		if name, ok := s.entryNames[e.ID]; ok {
			next[name] = e.Next
		}
	}
	return next
}

// Stop gracefully shuts down the scheduler, waiting for in-flight jobs.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		// Wait for running jobs to complete.
		<-s.cron.Stop().Done()
		s.logger.Info("sched: scheduler stopped")
	}
	return nil
}
