package collect

import (
	"strings"
	"testing"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.ApplyDefaults()

	if cfg.LookbackDays != 1 {
		t.Errorf("LookbackDays = %d, want 1", cfg.LookbackDays)
	}
	if cfg.ArxivMaxResults != 20 {
		t.Errorf("ArxivMaxResults = %d, want 20", cfg.ArxivMaxResults)
	}
	if len(cfg.Feeds) != len(DefaultFeeds) {
		t.Errorf("Feeds = %v", cfg.Feeds)
	}
	if len(cfg.Keywords) == 0 || len(cfg.ExcludeKeywords) == 0 {
		t.Error("keyword lists should default to the built-ins")
	}
	if cfg.OutputDir != "." {
		t.Errorf("OutputDir = %q, want .", cfg.OutputDir)
	}
	if cfg.Email.Host != "smtp.gmail.com" || cfg.Email.Port != 587 {
		t.Errorf("Email = %+v, want Gmail submission defaults", cfg.Email)
	}
	if cfg.CacheDir != "" {
		t.Errorf("CacheDir = %q, want empty (opt-in)", cfg.CacheDir)
	}
}

func TestConfig_ApplyDefaults_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		LookbackDays:    7,
		ArxivMaxResults: 50,
		Feeds:           []string{"https://example.com/feed.rss"},
	}
	cfg.ApplyDefaults()

	if cfg.LookbackDays != 7 || cfg.ArxivMaxResults != 50 {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
	if len(cfg.Feeds) != 1 {
		t.Errorf("Feeds = %v", cfg.Feeds)
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
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "negative lookback",
			mutate:  func(c *Config) { c.LookbackDays = -1 },
			wantErr: "lookback_days",
		},
		{
			name:    "zero max results",
			mutate:  func(c *Config) { c.ArxivMaxResults = 0 },
			wantErr: "arxiv_max_results",
		},
		{
			name:    "bad feed scheme",
			mutate:  func(c *Config) { c.Feeds = append(c.Feeds, "ftp://example.com/feed") },
			wantErr: "invalid feed URL",
		},
		{
			name:    "relative feed url",
			mutate:  func(c *Config) { c.Feeds = append(c.Feeds, "/feed.rss") },
			wantErr: "invalid feed URL",
		},
		{
			name:    "missing email host",
			mutate:  func(c *Config) { c.Email.Host = "" },
			wantErr: "email.host",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Email.Port = 70000 },
			wantErr: "email.port",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var cfg Config
			cfg.ApplyDefaults()
			tc.mutate(&cfg)
			err := cfg.Validate()

			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tc.wantErr)
			}
		})
	}
}
