package config

import (
	"errors"
	"fmt"
	"log/slog"

	"optbrief/internal/sched"
)

// ParseLevel maps a configured log level name to its slog value.
func ParseLevel(name string) (slog.Level, error) {
	switch name {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unknown log level %q (supported: debug, info, warn, error)", name)
}

// Validate checks the structural validity of a Config with defaults
// applied: the version field, the log settings, the pipeline definition
// and its cron schedules, and each enabled section. All problems are
// reported at once via errors.Join.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log format %q (supported: text, json)", cfg.Log.Format))
	}

	if err := cfg.Pipeline.Validate(); err != nil {
		errs = append(errs, err)
	}
	// Cron parsing lives in sched; the pipeline package only knows the
	// expression is a string.
	if cfg.Pipeline.Schedule != "" {
		if _, err := sched.ParseSchedule(cfg.Pipeline.Schedule); err != nil {
			errs = append(errs, err)
		}
	}
	if cfg.Retention.Schedule != "" {
		if _, err := sched.ParseSchedule(cfg.Retention.Schedule); err != nil {
			errs = append(errs, err)
		}
	}

	if err := cfg.Collector.Validate(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Gateway != nil {
		if err := cfg.Gateway.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
