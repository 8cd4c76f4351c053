package app

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"os"
	"path/filepath"

	"optbrief/internal/artifact"
	"optbrief/internal/cache"
	"optbrief/internal/config"
	"optbrief/internal/metrics"
	"optbrief/internal/pipeline"
	"optbrief/internal/secrets"
	"optbrief/internal/store"
	"optbrief/internal/tracing"
)

// EnvConfigPath names the variable through which the daemon hands its
// config path to pipeline steps, so `optbrief collect` running inside a
// workspace finds the same file.
const EnvConfigPath = "OPTBRIEF_CONFIG"

// Components is the wired core of the daemon: the runner plus every
// store and helper behind it. The daemon loop, the one-shot run
// command, and the MCP server all build on it.
type Components struct {
	Config    *config.Config
	Logger    *slog.Logger
	LogLevel  *slog.LevelVar
	Secrets   *secrets.Store
	Redactor  *secrets.Redactor
	Store     *store.Store
	Cache     *cache.Store
	Artifacts *artifact.Store
	Metrics   *metrics.Metrics
	Tracing   *tracing.Provider
	Runner    *pipeline.Runner
	DataDir   string
}

// Wire builds the daemon core from a validated configuration. cfgPath
// is recorded so pipeline steps inherit it via OPTBRIEF_CONFIG.
func Wire(ctx context.Context, cfg *config.Config, cfgPath, version string) (*Components, error) {
	level := &slog.LevelVar{}
	parsed, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	level.Set(parsed)

	redactor := secrets.NewRedactor()
	logger := slog.New(secrets.NewRedactingHandler(logHandler(cfg.Log.Format, level), redactor))

	secretStore := secrets.NewStore()
	if missing := secretStore.LoadEnv(cfg.Pipeline.Secrets); len(missing) > 0 {
		// Missing secrets degrade delivery, they do not block startup.
		logger.Warn("declared secrets not present in environment", "names", missing)
	}
	redactor.SyncStore(secretStore)

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	st, err := store.Open(filepath.Join(dataDir, "optbrief.db"))
	if err != nil {
		return nil, err
	}

	caches, err := cache.NewStore(filepath.Join(dataDir, "cache"), logger.With("component", "cache"))
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	artifacts, err := artifact.NewStore(filepath.Join(dataDir, "artifacts"), st, logger.With("component", "artifact"))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	tp, err := tracing.NewProvider(ctx, cfg.Trace)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	m := metrics.New()

	pipeCfg := cfg.Pipeline
	pipeCfg.Env = withConfigPath(pipeCfg.Env, cfgPath)
	runner := pipeline.NewRunner(pipeCfg, dataDir, pipeline.RunnerDeps{
		Recorder: st,
		Archiver: artifacts,
		Cache:    caches,
		Secrets:  secretStore,
		Metrics:  m,
		Tracer:   tp.Tracer(),
		Logger:   logger.With("component", "pipeline"),
	})

	logger.Info("components wired",
		"version", version,
		"pipeline", pipeCfg.Name,
		"data_dir", dataDir,
		"secrets", secretStore.Len(),
	)

	return &Components{
		Config:    cfg,
		Logger:    logger,
		LogLevel:  level,
		Secrets:   secretStore,
		Redactor:  redactor,
		Store:     st,
		Cache:     caches,
		Artifacts: artifacts,
		Metrics:   m,
		Tracing:   tp,
		Runner:    runner,
		DataDir:   dataDir,
	}, nil
}

// Close flushes the trace exporter and closes the run store.
func (c *Components) Close(ctx context.Context) error {
	return errors.Join(c.Tracing.Shutdown(ctx), c.Store.Close())
}

// logHandler selects the configured slog output handler. Validate has
// already rejected unknown formats.
func logHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.NewTextHandler(os.Stderr, opts)
}

// withConfigPath copies env and records the absolute config path, so
// steps executing in workspace directories can still resolve it. An
// explicit OPTBRIEF_CONFIG in the pipeline env wins.
func withConfigPath(env map[string]string, cfgPath string) map[string]string {
	out := make(map[string]string, len(env)+1)
	maps.Copy(out, env)
	if cfgPath == "" {
		return out
	}
	if _, ok := out[EnvConfigPath]; ok {
		return out
	}
	abs, err := filepath.Abs(cfgPath)
	if err != nil {
		abs = cfgPath
	}
	out[EnvConfigPath] = abs
	return out
}
