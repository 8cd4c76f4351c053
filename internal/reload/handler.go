package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"optbrief/internal/config"
)

// Target absorbs a freshly validated configuration. Implementations
// apply only the settings they own.
type Target interface {
	ApplyConfig(cfg *config.Config) error
}

// TargetFunc adapts a function to the Target interface.
type TargetFunc func(cfg *config.Config) error

// ApplyConfig implements Target.
func (f TargetFunc) ApplyConfig(cfg *config.Config) error { return f(cfg) }

// Handler reloads the configuration file and applies it to the daemon.
// Settings no target can absorb (pipeline definition, gateway bind,
// trace exporter) take effect on the next restart; the handler logs
// which sections are waiting.
type Handler struct {
	path    string
	logger  *slog.Logger
	targets []Target

	mu      sync.Mutex
	current *config.Config
}

// NewHandler creates a Handler for the config file at path. current is
// the configuration the daemon booted with; it anchors the diff that
// decides which changed sections need a restart.
func NewHandler(path string, current *config.Config, logger *slog.Logger, targets ...Target) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		path:    path,
		logger:  logger,
		targets: targets,
		current: current,
	}
}

// Reload loads and validates the configuration file and hands it to
// every target. An invalid file leaves the running configuration
// untouched.
func (h *Handler) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	cfg, err := config.Load(h.path)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("reload: %w", err)
	}

	var errs []error
	for _, t := range h.targets {
		errs = append(errs, t.ApplyConfig(cfg))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("reload: applying configuration: %w", err)
	}

	h.mu.Lock()
	if h.current != nil {
		if sections := restartSections(h.current, cfg); len(sections) > 0 {
			h.logger.Warn("changed sections take effect on restart", "sections", sections)
		}
	}
	h.current = cfg
	h.mu.Unlock()

	h.logger.Info("configuration reloaded", "path", h.path)
	return nil
}

// restartSections lists the sections that differ from the running
// configuration and have no live-apply target. The pipeline schedule,
// the retention schedule, the log level, and the collector section all
// apply without a restart and are excluded.
func restartSections(old, cur *config.Config) []string {
	var sections []string
	if old.DataDir != cur.DataDir {
		sections = append(sections, "data_dir")
	}
	if old.Log.Format != cur.Log.Format {
		sections = append(sections, "log.format")
	}
	oldPipe, curPipe := old.Pipeline, cur.Pipeline
	oldPipe.Schedule, curPipe.Schedule = "", ""
	if !reflect.DeepEqual(oldPipe, curPipe) {
		sections = append(sections, "pipeline")
	}
	if !reflect.DeepEqual(old.Gateway, cur.Gateway) {
		sections = append(sections, "gateway")
	}
	if !reflect.DeepEqual(old.Trace, cur.Trace) {
		sections = append(sections, "trace")
	}
	return sections
}
