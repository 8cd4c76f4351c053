package pipeline

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func validConfig() Config {
	return Config{
		Name:     "daily-brief",
		Schedule: "50 23 * * *",
		Timezone: "UTC",
		Secrets:  []string{"GMAIL_APP_PASSWORD"},
		Cache:    &CacheConfig{Key: "hf-model-cache-v1", Path: ".cache"},
		Steps: []Step{
			{Name: "restore cache", Cache: "restore"},
			{
				Name:    "generate report",
				Run:     "optbrief collect",
				Secrets: []string{"GMAIL_APP_PASSWORD"},
				Timeout: Duration(15 * time.Minute),
			},
			{Name: "archive reports", Archive: "report_*.md", Always: true},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing name",
			mutate:  func(c *Config) { c.Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Timezone = "Mars/Olympus" },
			wantErr: "invalid timezone",
		},
		{
			name:    "no steps",
			mutate:  func(c *Config) { c.Steps = nil },
			wantErr: "at least one step",
		},
		{
			name: "step without action",
			mutate: func(c *Config) {
				c.Steps = append(c.Steps, Step{Name: "empty"})
			},
			wantErr: "one of run, cache, or archive",
		},
		{
			name: "step with two actions",
			mutate: func(c *Config) {
				c.Steps[1].Archive = "*.md"
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "unsupported cache operation",
			mutate: func(c *Config) {
				c.Steps[0].Cache = "save"
			},
			wantErr: "unsupported cache operation",
		},
		{
			name: "cache step without cache section",
			mutate: func(c *Config) {
				c.Cache = nil
			},
			wantErr: "requires the pipeline cache section",
		},
		{
			name: "cache section without key",
			mutate: func(c *Config) {
				c.Cache.Key = ""
			},
			wantErr: "cache.key is required",
		},
		{
			name: "invalid archive pattern",
			mutate: func(c *Config) {
				c.Steps[2].Archive = "report_["
			},
			wantErr: "invalid archive pattern",
		},
		{
			name: "retention on run step",
			mutate: func(c *Config) {
				c.Steps[1].Retention = Duration(time.Hour)
			},
			wantErr: "retention only applies to archive steps",
		},
		{
			name: "timeout on archive step",
			mutate: func(c *Config) {
				c.Steps[2].Timeout = Duration(time.Minute)
			},
			wantErr: "timeout only applies to run steps",
		},
		{
			name: "undeclared step secret",
			mutate: func(c *Config) {
				c.Steps[1].Secrets = append(c.Steps[1].Secrets, "SENDER_EMAIL")
			},
			wantErr: `secret "SENDER_EMAIL" is not declared`,
		},
		{
			name: "invalid secret name",
			mutate: func(c *Config) {
				c.Secrets = append(c.Secrets, "1BAD")
			},
			wantErr: "invalid secret name",
		},
		{
			name: "invalid env name",
			mutate: func(c *Config) {
				c.Env = map[string]string{"NOT-OK": "x"}
			},
			wantErr: "invalid env name",
		},
		{
			name: "duplicate step names",
			mutate: func(c *Config) {
				c.Steps = append(c.Steps, Step{Name: "restore cache", Run: "true"})
			},
			wantErr: "duplicate step name",
		},
		{
			name: "step without name",
			mutate: func(c *Config) {
				c.Steps = append(c.Steps, Step{Run: "true"})
			},
			wantErr: "name is required",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()

			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReportsAllProblems(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Name = ""
	cfg.Timezone = "Nowhere"
	cfg.Steps[1].Run = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want joined errors")
	}
	for _, want := range []string{"name is required", "invalid timezone", "one of run, cache, or archive"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %v, missing %q", err, want)
		}
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Cache: &CacheConfig{Key: "hf-model-cache-v1"},
		Steps: []Step{
			{Name: "archive reports", Archive: "report_*.md"},
			{Name: "archive html", Archive: "report_*.html", Retention: Duration(time.Hour)},
		},
	}
	cfg.ApplyDefaults()

	if cfg.Name != "daily-brief" {
		t.Errorf("Name = %q, want daily-brief", cfg.Name)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", cfg.Timezone)
	}
	if cfg.Cache.Path != ".cache" {
		t.Errorf("Cache.Path = %q, want .cache", cfg.Cache.Path)
	}
	if got := cfg.Steps[0].Retention.Std(); got != DefaultRetention {
		t.Errorf("default retention = %s, want %s", got, DefaultRetention)
	}
	if got := cfg.Steps[1].Retention.Std(); got != time.Hour {
		t.Errorf("explicit retention = %s, want 1h", got)
	}
}

func TestStep_Kind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		step Step
		want StepKind
	}{
		{name: "run", step: Step{Run: "true"}, want: KindRun},
		{name: "cache", step: Step{Cache: "restore"}, want: KindCache},
		{name: "archive", step: Step{Archive: "*.md"}, want: KindArchive},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.step.Kind(); got != tc.want {
				t.Errorf("Kind() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestDuration_YAML(t *testing.T) {
	t.Parallel()

	var step Step
	if err := yaml.Unmarshal([]byte("name: wait\nrun: sleep 1\ntimeout: 15m\n"), &step); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if step.Timeout.Std() != 15*time.Minute {
		t.Errorf("Timeout = %s, want 15m", step.Timeout.Std())
	}

	if err := yaml.Unmarshal([]byte("name: wait\ntimeout: soon\n"), &step); err == nil {
		t.Fatal("Unmarshal accepted a malformed duration")
	}

	out, err := yaml.Marshal(Step{Name: "wait", Run: "sleep 1", Timeout: Duration(90 * time.Second)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), "1m30s") {
		t.Errorf("Marshal output %q, want duration string", out)
	}
}
