// Package app provides the shared entry point for the optbrief daemon
// and its one-shot commands.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"optbrief/internal/config"
	"optbrief/internal/gateway"
	"optbrief/internal/pipeline"
	"optbrief/internal/reload"
	"optbrief/internal/sched"
)

// shutdownTimeout bounds graceful shutdown of the gateway, the trace
// exporter, and the run store.
const shutdownTimeout = 30 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// Shutdown, when non-nil, stops the daemon when closed. The service
	// manager integration uses it; interactive runs rely on signals.
	Shutdown <-chan struct{}
}

// Run loads configuration, starts the scheduler and the optional HTTP
// gateway, and blocks until a shutdown signal is received. SIGHUP and
// config file changes trigger a live reload of the sections that can be
// applied without a restart.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	ctx := context.Background()
	comps, err := Wire(ctx, cfg, cfgPath, params.Version)
	if err != nil {
		return err
	}
	logger := comps.Logger
	logger.Info("starting optbrief",
		"version", params.Version,
		"commit", params.Commit,
		"config", cfgPath,
	)

	// Runs left in running state by a previous process can never finish.
	recovered, err := comps.Store.RecoverStale(ctx, "interrupted by daemon restart")
	if err != nil {
		closeComponents(comps)
		return err
	}
	if recovered > 0 {
		logger.Warn("marked stale runs as failed", "count", recovered)
	}

	loc, err := cfg.Pipeline.Location()
	if err != nil {
		closeComponents(comps)
		return err
	}

	scheduler := sched.NewScheduler(loc, logger.With("component", "sched"))
	if err := scheduler.RegisterJob(&sched.PipelineJob{
		Pipeline:     comps.Runner,
		Logger:       logger.With("job", "pipeline_run"),
		ScheduleExpr: cfg.Pipeline.Schedule,
	}); err != nil {
		closeComponents(comps)
		return err
	}
	if err := scheduler.RegisterJob(&sched.RetentionJob{
		Sweeper:      comps.Artifacts,
		Logs:         pipeline.NewLogPruner(comps.DataDir, comps.Store, 0, logger),
		Logger:       logger.With("job", "artifact_retention"),
		ScheduleExpr: cfg.Retention.Schedule,
	}); err != nil {
		closeComponents(comps)
		return err
	}
	if err := scheduler.Start(); err != nil {
		closeComponents(comps)
		return err
	}

	var gw *gateway.Gateway
	if cfg.Gateway != nil {
		gw = gateway.New(*cfg.Gateway, gateway.Deps{
			Launcher:  comps.Runner,
			Runs:      comps.Store,
			Artifacts: comps.Store,
			Files:     comps.Artifacts,
			Schedule:  scheduler,
			Metrics:   comps.Metrics,
			Pipeline:  comps.Runner.Config(),
			DataDir:   comps.DataDir,
			Version:   params.Version,
			Logger:    logger.With("component", "gateway"),
		})
		if err := gw.Start(); err != nil {
			stopScheduler(scheduler, logger)
			closeComponents(comps)
			return err
		}
		logger.Info("gateway listening", "addr", gw.Addr())
	}

	handler := reload.NewHandler(cfgPath, cfg, logger.With("component", "reload"),
		logLevelTarget(comps),
		scheduleTarget(scheduler),
	)

	// --- signal handling ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	// --- file watcher ---
	watcher := reload.NewWatcher(cfgPath, 0)
	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	watcher.Start(watchCtx)
	defer watcher.Stop()

	// --- main event loop ---
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("SIGHUP received, reloading configuration")
				if err := handler.Reload(watchCtx); err != nil {
					logger.Error("reload failed", "error", err)
				}
			default:
				logger.Info("shutdown signal received", "signal", sig.String())
				return shutdown(comps, scheduler, gw)
			}
		case evt := <-watcher.Events():
			logger.Info("config file changed, reloading", "path", evt.Path)
			if err := handler.Reload(watchCtx); err != nil {
				logger.Error("reload failed", "error", err)
			}
		case <-params.Shutdown:
			logger.Info("shutdown requested")
			return shutdown(comps, scheduler, gw)
		}
	}
}

// shutdown stops in reverse start order: no new runs, drain in-flight
// runs, then the gateway, then the stores.
func shutdown(comps *Components, scheduler *sched.Scheduler, gw *gateway.Gateway) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger := comps.Logger
	stopScheduler(scheduler, logger)
	comps.Runner.Wait()
	if gw != nil {
		if err := gw.Stop(ctx); err != nil {
			logger.Error("gateway stop failed", "error", err)
		}
	}
	if err := comps.Close(ctx); err != nil {
		logger.Error("component close failed", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func stopScheduler(scheduler *sched.Scheduler, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := scheduler.Stop(ctx); err != nil {
		logger.Error("scheduler stop failed", "error", err)
	}
}

func closeComponents(comps *Components) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = comps.Close(ctx)
}

// logLevelTarget applies log.level changes to the live handler.
func logLevelTarget(comps *Components) reload.Target {
	return reload.TargetFunc(func(cfg *config.Config) error {
		level, err := config.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		comps.LogLevel.Set(level)
		return nil
	})
}

// scheduleTarget applies pipeline and retention schedule changes to the
// running scheduler.
func scheduleTarget(scheduler *sched.Scheduler) reload.Target {
	return reload.TargetFunc(func(cfg *config.Config) error {
		if err := scheduler.Reschedule("pipeline_run", cfg.Pipeline.Schedule); err != nil {
			return err
		}
		return scheduler.Reschedule("artifact_retention", cfg.Retention.Schedule)
	})
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/optbrief/optbrief.yaml → ~/.config/optbrief/optbrief.yaml → ./optbrief.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "optbrief", "optbrief.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "optbrief", "optbrief.yaml"))
	}

	candidates = append(candidates, "optbrief.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultConfigPath returns where `optbrief init` writes by default: the
// first location ResolveConfigPath searches.
func DefaultConfigPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		return filepath.Join(xdg, "optbrief", "optbrief.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "optbrief", "optbrief.yaml")
	}
	return "optbrief.yaml"
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/optbrief if set, otherwise ~/.local/share/optbrief
// per the XDG spec.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "optbrief")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "optbrief")
}
