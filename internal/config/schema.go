// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for optbrief.
package config

import (
	"optbrief/internal/collect"
	"optbrief/internal/gateway"
	"optbrief/internal/pipeline"
	"optbrief/internal/sched"
	"optbrief/internal/tracing"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir overrides the default data directory that holds the run
	// database, run logs, cache entries, and archived artifacts.
	DataDir string `yaml:"data_dir,omitempty"`

	// Log controls the daemon logger.
	Log LogConfig `yaml:"log,omitempty"`

	// Pipeline defines what runs and when.
	Pipeline pipeline.Config `yaml:"pipeline"`

	// Collector configures the built-in report collector that the default
	// pipeline's generate step invokes.
	Collector collect.Config `yaml:"collector,omitempty"`

	// Gateway enables the HTTP API when present.
	Gateway *gateway.Config `yaml:"gateway,omitempty"`

	// Trace enables OTLP trace export when present.
	Trace *tracing.Config `yaml:"trace,omitempty"`

	// Retention overrides the artifact retention sweep schedule.
	Retention RetentionConfig `yaml:"retention,omitempty"`
}

// LogConfig controls daemon log output. Run logs are separate; they
// always capture the full step output.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn, or error.
	// Defaults to info.
	Level string `yaml:"level,omitempty"`

	// Format is text or json. Defaults to text.
	Format string `yaml:"format,omitempty"`
}

// RetentionConfig controls the daily sweep that removes artifact sets
// whose retention has lapsed.
type RetentionConfig struct {
	// Schedule is a 5-field cron expression, evaluated in the pipeline's
	// timezone. Defaults to "15 0 * * *".
	Schedule string `yaml:"schedule,omitempty"`
}

// ApplyDefaults fills zero values with their defaults, recursing into
// every section. Load calls it after parsing.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Retention.Schedule == "" {
		c.Retention.Schedule = sched.DefaultRetentionSchedule
	}
	c.Pipeline.ApplyDefaults()
	c.Collector.ApplyDefaults()
	if c.Gateway != nil {
		c.Gateway.ApplyDefaults()
	}
}

// Default returns the configuration `optbrief init` starts from: the
// daily brief pipeline over the built-in collector, scheduled at 23:50
// UTC, with the report archive retained for 30 days.
func Default() *Config {
	deliverySecrets := []string{
		collect.EnvRecipientEmail,
		collect.EnvSenderEmail,
		collect.EnvGmailAppPassword,
	}
	cfg := &Config{
		Version: "1",
		Pipeline: pipeline.Config{
			Name:     "daily-brief",
			Schedule: sched.DefaultPipelineSchedule,
			Timezone: "UTC",
			Env:      map[string]string{"OPTBRIEF_CACHE_DIR": ".cache"},
			Secrets:  deliverySecrets,
			Cache:    &pipeline.CacheConfig{Key: "hf-model-cache-v1"},
			Steps: []pipeline.Step{
				{Name: "restore cache", Cache: "restore"},
				{Name: "generate report", Run: "optbrief collect", Secrets: deliverySecrets},
				{Name: "archive reports", Archive: "report_*.md", Always: true},
			},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}
