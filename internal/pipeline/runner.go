package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"optbrief/internal/artifact"
	"optbrief/internal/metrics"
	"optbrief/internal/secrets"
)

// RunRecorder persists run and step transitions. Implemented by the run
// store; defined here so the runner does not depend on the database.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *Run) error
	StartStep(ctx context.Context, runID string, idx int, startedAt time.Time) error
	FinishStep(ctx context.Context, runID string, idx int, res StepResult) error
	FinishRun(ctx context.Context, run *Run) error
}

// Archiver stores the files matched by archive steps. A nil set with a
// nil error means nothing matched.
type Archiver interface {
	Archive(ctx context.Context, runID, name, workspace, pattern string, retention time.Duration) (*artifact.Set, error)
}

// CacheStore restores and saves keyed cache entries.
type CacheStore interface {
	Restore(key, dst string) (bool, error)
	Save(key, src string) error
}

// RunnerDeps wires the runner's collaborators. Recorder is required; the
// rest default to no-ops or fresh instances.
type RunnerDeps struct {
	Recorder RunRecorder
	Archiver Archiver
	Cache    CacheStore
	Secrets  *secrets.Store
	Metrics  *metrics.Metrics
	Tracer   trace.Tracer
	Logger   *slog.Logger
}

// Runner executes pipeline runs: one isolated workspace per run, steps in
// order, fail-fast except for steps marked always, cache written back
// after fully successful runs.
type Runner struct {
	cfg     Config
	dataDir string

	recorder RunRecorder
	archiver Archiver
	cache    CacheStore
	secrets  *secrets.Store
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	logger   *slog.Logger

	wg sync.WaitGroup

	// Now is injectable for tests.
	Now func() time.Time
}

// NewRunner creates a Runner for cfg with per-run state under dataDir.
func NewRunner(cfg Config, dataDir string, deps RunnerDeps) *Runner {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Tracer == nil {
		deps.Tracer = noop.NewTracerProvider().Tracer("optbrief")
	}
	if deps.Secrets == nil {
		deps.Secrets = secrets.NewStore()
	}
	return &Runner{
		cfg:      cfg,
		dataDir:  dataDir,
		recorder: deps.Recorder,
		archiver: deps.Archiver,
		cache:    deps.Cache,
		secrets:  deps.Secrets,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		logger:   deps.Logger,
	}
}

// Config returns the pipeline definition the runner executes.
func (r *Runner) Config() Config {
	return r.cfg
}

// RunScheduled executes one run with the schedule trigger and reports a
// failed run as an error, which is what the scheduler logs.
func (r *Runner) RunScheduled(ctx context.Context) error {
	run, err := r.Run(ctx, TriggerSchedule)
	if err != nil {
		return err
	}
	if run.Status == StatusFailed {
		return errors.New(run.Error)
	}
	return nil
}

// Run executes the pipeline once. The returned Run carries the outcome;
// the error is non-nil only when infrastructure failed (workspace
// provisioning, persistence), not when a step failed.
func (r *Runner) Run(ctx context.Context, trigger Trigger) (*Run, error) {
	return r.execute(ctx, "run_"+uuid.NewString(), trigger)
}

// Launch starts a run in the background, detached from the caller's
// context, and returns its ID without waiting for completion. The run
// record becomes visible once the workspace is provisioned.
func (r *Runner) Launch(trigger Trigger) string {
	id := "run_" + uuid.NewString()
	go func() {
		if _, err := r.execute(context.Background(), id, trigger); err != nil {
			r.logger.Error("detached run failed", "run", id, "error", err)
		}
	}()
	return id
}

// Wait blocks until all in-flight runs have finished. Callers must stop
// launching runs first.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execute(ctx context.Context, id string, trigger Trigger) (*Run, error) {
	r.wg.Add(1)
	defer r.wg.Done()

	run := &Run{
		ID:        id,
		Pipeline:  r.cfg.Name,
		Trigger:   trigger,
		Status:    StatusRunning,
		StartedAt: r.now(),
	}
	for _, s := range r.cfg.Steps {
		run.Steps = append(run.Steps, StepResult{Name: s.Name, Status: StatusPending})
	}

	ws, err := provisionWorkspace(r.dataDir, run.ID)
	if err != nil {
		return r.abort(ctx, run, err), err
	}
	run.Workspace = ws.Dir

	if err := r.recorder.CreateRun(ctx, run); err != nil {
		_ = ws.Remove()
		return nil, err
	}

	logFile, err := os.OpenFile(ws.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		err = fmt.Errorf("pipeline: open run log: %w", err)
		return r.fail(ctx, run, err), err
	}
	defer func() { _ = logFile.Close() }()

	ctx, span := r.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("run.trigger", string(trigger)),
	))
	defer span.End()

	logger := r.logger.With("run", run.ID)
	logger.Info("run started", "pipeline", r.cfg.Name, "trigger", trigger, "steps", len(r.cfg.Steps))

	failed := false
	for i := range r.cfg.Steps {
		step := &r.cfg.Steps[i]
		res := &run.Steps[i]

		if failed && !step.Always {
			res.Status = StatusSkipped
			if err := r.recorder.FinishStep(ctx, run.ID, i, *res); err != nil {
				logger.Error("recording skipped step failed", "step", step.Name, "error", err)
			}
			continue
		}

		r.runStep(ctx, logger, ws, logFile, run, i)
		if res.Status == StatusFailed {
			failed = true
		}
	}

	if !failed && r.cfg.Cache != nil {
		r.saveCache(logger, ws)
	}

	run.FinishedAt = r.now()
	if failed {
		run.Status = StatusFailed
		run.Error = firstStepError(run)
		span.SetStatus(codes.Error, run.Error)
	} else {
		run.Status = StatusSucceeded
	}

	if !r.cfg.KeepWorkspace {
		if err := ws.Remove(); err != nil {
			logger.Warn("workspace teardown failed", "error", err)
		} else {
			run.Workspace = ""
		}
	}

	if err := r.recorder.FinishRun(ctx, run); err != nil {
		return run, err
	}

	r.metrics.RunsTotal.WithLabelValues(string(trigger), string(run.Status)).Inc()
	r.metrics.RunDuration.Observe(run.Duration().Seconds())
	logger.Info("run finished", "status", run.Status, "duration", run.Duration().String())
	return run, nil
}

// runStep executes one step and records its transitions.
func (r *Runner) runStep(ctx context.Context, logger *slog.Logger, ws *workspace, logFile *os.File, run *Run, idx int) {
	step := &r.cfg.Steps[idx]
	res := &run.Steps[idx]

	res.Status = StatusRunning
	res.StartedAt = r.now()
	if err := r.recorder.StartStep(ctx, run.ID, idx, res.StartedAt); err != nil {
		logger.Error("recording step start failed", "step", step.Name, "error", err)
	}

	stepCtx, span := r.tracer.Start(ctx, "pipeline.step", trace.WithAttributes(
		attribute.String("step.name", step.Name),
		attribute.String("step.kind", string(step.Kind())),
	))

	fmt.Fprintf(logFile, "--- %s ---\n", step.Name)

	var err error
	switch step.Kind() {
	case KindRun:
		err = r.execStep(stepCtx, ws, logFile, step)
	case KindCache:
		err = r.cacheStep(stepCtx, logger, ws, logFile, step)
	case KindArchive:
		err = r.archiveStep(stepCtx, logger, ws, logFile, run.ID, step)
	}

	res.FinishedAt = r.now()
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		span.SetStatus(codes.Error, err.Error())
		r.metrics.StepFailures.WithLabelValues(step.Name).Inc()
		logger.Error("step failed", "step", step.Name, "error", err)
		fmt.Fprintf(logFile, "step failed: %v\n", err)
	} else {
		res.Status = StatusSucceeded
		logger.Debug("step succeeded", "step", step.Name)
	}
	span.End()

	r.metrics.StepDuration.WithLabelValues(step.Name).Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	if err := r.recorder.FinishStep(ctx, run.ID, idx, *res); err != nil {
		logger.Error("recording step finish failed", "step", step.Name, "error", err)
	}
}

// cacheStep restores the keyed cache entry into the workspace. A miss is
// logged and tolerated.
func (r *Runner) cacheStep(_ context.Context, logger *slog.Logger, ws *workspace, logFile *os.File, step *Step) error {
	if r.cache == nil {
		return fmt.Errorf("pipeline: step %q: no cache store configured", step.Name)
	}
	dst := filepath.Join(ws.Dir, r.cfg.Cache.Path)
	hit, err := r.cache.Restore(r.cfg.Cache.Key, dst)
	if err != nil {
		return err
	}
	if !hit {
		r.metrics.CacheRestores.WithLabelValues("miss").Inc()
		logger.Warn("cache miss, continuing without restored state", "key", r.cfg.Cache.Key)
		fmt.Fprintf(logFile, "cache miss for key %q\n", r.cfg.Cache.Key)
		return nil
	}
	r.metrics.CacheRestores.WithLabelValues("hit").Inc()
	fmt.Fprintf(logFile, "cache restored for key %q\n", r.cfg.Cache.Key)
	return nil
}

// archiveStep stores workspace files matching the step's pattern. Zero
// matches is logged and tolerated; no artifact set is created.
func (r *Runner) archiveStep(ctx context.Context, logger *slog.Logger, ws *workspace, logFile *os.File, runID string, step *Step) error {
	if r.archiver == nil {
		return fmt.Errorf("pipeline: step %q: no artifact store configured", step.Name)
	}
	set, err := r.archiver.Archive(ctx, runID, step.Name, ws.Dir, step.Archive, step.Retention.Std())
	if err != nil {
		return err
	}
	if set == nil {
		logger.Warn("no files matched archive pattern", "pattern", step.Archive)
		fmt.Fprintf(logFile, "no files matched %q, nothing archived\n", step.Archive)
		return nil
	}
	r.metrics.ArtifactFiles.Add(float64(len(set.Files)))
	r.metrics.ArtifactBytes.Add(float64(set.Bytes))
	logger.Info("artifacts archived", "artifact", set.ID, "files", len(set.Files), "bytes", set.Bytes)
	fmt.Fprintf(logFile, "archived %d file(s) as %s\n", len(set.Files), set.ID)
	return nil
}

// saveCache snapshots the workspace cache path back into the store.
// Failures are warnings: the run already succeeded.
func (r *Runner) saveCache(logger *slog.Logger, ws *workspace) {
	if r.cache == nil {
		return
	}
	src := filepath.Join(ws.Dir, r.cfg.Cache.Path)
	if _, err := os.Stat(src); err != nil {
		return
	}
	if err := r.cache.Save(r.cfg.Cache.Key, src); err != nil {
		logger.Warn("cache save failed", "key", r.cfg.Cache.Key, "error", err)
	}
}

// abort records a run that failed before its first step could execute.
func (r *Runner) abort(ctx context.Context, run *Run, cause error) *Run {
	run.Status = StatusFailed
	run.Error = cause.Error()
	run.FinishedAt = r.now()
	if err := r.recorder.CreateRun(ctx, run); err != nil {
		r.logger.Error("recording aborted run failed", "run", run.ID, "error", err)
		return run
	}
	if err := r.recorder.FinishRun(ctx, run); err != nil {
		r.logger.Error("recording aborted run failed", "run", run.ID, "error", err)
	}
	r.metrics.RunsTotal.WithLabelValues(string(run.Trigger), string(run.Status)).Inc()
	return run
}

// fail finalizes an already-created run after an infrastructure error.
func (r *Runner) fail(ctx context.Context, run *Run, cause error) *Run {
	run.Status = StatusFailed
	run.Error = cause.Error()
	run.FinishedAt = r.now()
	if err := r.recorder.FinishRun(ctx, run); err != nil {
		r.logger.Error("recording failed run failed", "run", run.ID, "error", err)
	}
	r.metrics.RunsTotal.WithLabelValues(string(run.Trigger), string(run.Status)).Inc()
	return run
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// firstStepError returns the error of the earliest failed step.
func firstStepError(run *Run) string {
	for _, s := range run.Steps {
		if s.Status == StatusFailed {
			return fmt.Sprintf("step %q failed: %s", s.Name, s.Error)
		}
	}
	return "run failed"
}
