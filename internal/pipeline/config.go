// Package pipeline defines the report pipeline model and executes runs:
// ordered steps with fail-fast semantics, always-run finalization steps,
// per-run isolated workspaces, keyed cache restore, and artifact archival.
package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML fields accept Go duration strings
// such as "720h" or "15m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("pipeline: duration must be a string: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("pipeline: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DefaultRetention is how long archived artifacts are kept when an archive
// step does not set its own retention.
const DefaultRetention = 30 * 24 * time.Hour

// Config describes a pipeline: what to run, when, and with which
// environment. It is the `pipeline:` section of the configuration file.
type Config struct {
	// Name identifies the pipeline in logs, run records, and the API.
	Name string `yaml:"name"`

	// Schedule is a 5-field cron expression. Empty disables the scheduled
	// trigger; the pipeline can still be triggered manually.
	Schedule string `yaml:"schedule,omitempty"`

	// Timezone is the IANA location the schedule is evaluated in.
	// Defaults to UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// Env is added to the environment of every run step.
	Env map[string]string `yaml:"env,omitempty"`

	// Secrets lists environment variable names read from the daemon's own
	// environment at startup. Steps reference them by name; their values
	// are redacted from all log output.
	Secrets []string `yaml:"secrets,omitempty"`

	// Cache configures the keyed cache used by `cache: restore` steps.
	Cache *CacheConfig `yaml:"cache,omitempty"`

	// Steps run in order. The first failure skips every remaining step
	// except those marked always.
	Steps []Step `yaml:"steps"`

	// KeepWorkspace preserves per-run workspaces instead of removing them
	// after the final step.
	KeepWorkspace bool `yaml:"keep_workspace,omitempty"`
}

// CacheConfig names the cache entry shared across runs. The stored key is
// qualified with the platform so entries never cross OS/arch boundaries.
type CacheConfig struct {
	Key  string `yaml:"key"`
	Path string `yaml:"path,omitempty"`
}

// Step is one pipeline step. Exactly one of Run, Cache, or Archive must be
// set.
type Step struct {
	Name string `yaml:"name"`

	// Run is a shell command executed in the run workspace.
	Run string `yaml:"run,omitempty"`

	// Cache is a builtin cache operation. Only "restore" is supported.
	// A missing cache entry is tolerated: the step logs the miss and
	// succeeds.
	Cache string `yaml:"cache,omitempty"`

	// Archive is a glob matched against the workspace root; matches are
	// copied into a retained artifact set. Zero matches is tolerated.
	Archive string `yaml:"archive,omitempty"`

	// Always runs this step even after an earlier step failed.
	Always bool `yaml:"always,omitempty"`

	// Env is added to this step's environment on top of the pipeline Env.
	Env map[string]string `yaml:"env,omitempty"`

	// Secrets names the declared secrets injected into this step's
	// subprocess environment.
	Secrets []string `yaml:"secrets,omitempty"`

	// Retention is how long this step's archived artifacts are kept.
	// Archive steps only.
	Retention Duration `yaml:"retention,omitempty"`

	// Timeout bounds a run step. Zero means no limit.
	Timeout Duration `yaml:"timeout,omitempty"`
}

// StepKind classifies a step by the action it performs.
type StepKind string

// Step kinds.
const (
	KindRun     StepKind = "run"
	KindCache   StepKind = "cache"
	KindArchive StepKind = "archive"
)

// Kind returns the step's action kind. Only meaningful after Validate.
func (s *Step) Kind() StepKind {
	switch {
	case s.Run != "":
		return KindRun
	case s.Cache != "":
		return KindCache
	default:
		return KindArchive
	}
}

var envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ApplyDefaults fills zero values with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "daily-brief"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Cache != nil && c.Cache.Path == "" {
		c.Cache.Path = ".cache"
	}
	for i := range c.Steps {
		s := &c.Steps[i]
		if s.Archive != "" && s.Retention == 0 {
			s.Retention = Duration(DefaultRetention)
		}
	}
}

// Validate checks the structural validity of the pipeline definition.
// All problems are reported at once via errors.Join.
func (c *Config) Validate() error {
	var errs []error

	if c.Name == "" {
		errs = append(errs, errors.New("pipeline: name is required"))
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: invalid timezone %q: %w", c.Timezone, err))
		}
	}

	declared := make(map[string]struct{}, len(c.Secrets))
	for _, name := range c.Secrets {
		if !envNamePattern.MatchString(name) {
			errs = append(errs, fmt.Errorf("pipeline: invalid secret name %q", name))
			continue
		}
		declared[name] = struct{}{}
	}
	for name := range c.Env {
		if !envNamePattern.MatchString(name) {
			errs = append(errs, fmt.Errorf("pipeline: invalid env name %q", name))
		}
	}

	if c.Cache != nil && c.Cache.Key == "" {
		errs = append(errs, errors.New("pipeline: cache.key is required"))
	}

	if len(c.Steps) == 0 {
		errs = append(errs, errors.New("pipeline: at least one step is required"))
	}

	seen := make(map[string]struct{}, len(c.Steps))
	for i := range c.Steps {
		errs = append(errs, c.validateStep(i, declared, seen)...)
	}

	return errors.Join(errs...)
}

func (c *Config) validateStep(i int, declared, seen map[string]struct{}) []error {
	var errs []error
	s := &c.Steps[i]

	if s.Name == "" {
		errs = append(errs, fmt.Errorf("pipeline: steps[%d]: name is required", i))
		return errs
	}
	if _, dup := seen[s.Name]; dup {
		errs = append(errs, fmt.Errorf("pipeline: duplicate step name %q", s.Name))
	}
	seen[s.Name] = struct{}{}

	actions := 0
	for _, set := range []bool{s.Run != "", s.Cache != "", s.Archive != ""} {
		if set {
			actions++
		}
	}
	switch {
	case actions == 0:
		errs = append(errs, fmt.Errorf("pipeline: step %q: one of run, cache, or archive is required", s.Name))
		return errs
	case actions > 1:
		errs = append(errs, fmt.Errorf("pipeline: step %q: run, cache, and archive are mutually exclusive", s.Name))
		return errs
	}

	if s.Cache != "" {
		if s.Cache != "restore" {
			errs = append(errs, fmt.Errorf("pipeline: step %q: unsupported cache operation %q (supported: \"restore\")", s.Name, s.Cache))
		}
		if c.Cache == nil {
			errs = append(errs, fmt.Errorf("pipeline: step %q: cache step requires the pipeline cache section", s.Name))
		}
	}
	if s.Archive != "" {
		if _, err := filepath.Match(s.Archive, "probe"); err != nil {
			errs = append(errs, fmt.Errorf("pipeline: step %q: invalid archive pattern %q: %w", s.Name, s.Archive, err))
		}
	}
	if s.Retention != 0 && s.Archive == "" {
		errs = append(errs, fmt.Errorf("pipeline: step %q: retention only applies to archive steps", s.Name))
	}
	if s.Timeout != 0 && s.Run == "" {
		errs = append(errs, fmt.Errorf("pipeline: step %q: timeout only applies to run steps", s.Name))
	}
	for _, name := range s.Secrets {
		if _, ok := declared[name]; !ok {
			errs = append(errs, fmt.Errorf("pipeline: step %q: secret %q is not declared in pipeline.secrets", s.Name, name))
		}
	}
	for name := range s.Env {
		if !envNamePattern.MatchString(name) {
			errs = append(errs, fmt.Errorf("pipeline: step %q: invalid env name %q", s.Name, name))
		}
	}

	return errs
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("pipeline: invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
