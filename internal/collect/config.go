// Package collect implements the built-in report collector: it gathers
// recent optimization papers from the arXiv API and related news from RSS
// feeds, renders a daily brief in Markdown and HTML, and delivers it by
// email and Discord webhook. The pipeline's default "generate report"
// step shells out to `optbrief collect`.
package collect

import (
	"errors"
	"fmt"
	"net/url"
)

// Environment variables read at delivery time. The pipeline injects them
// into the step environment from its secret store; absent values disable
// the corresponding delivery channel.
const (
	EnvRecipientEmail   = "RECIPIENT_EMAIL"
	EnvSenderEmail      = "SENDER_EMAIL"
	EnvGmailAppPassword = "GMAIL_APP_PASSWORD"
	EnvDiscordWebhook   = "DISCORD_WEBHOOK"
)

// DefaultFeeds are the RSS sources scanned for optimization-related news.
var DefaultFeeds = []string{
	"https://rss.cnn.com/rss/edition_technology.rss",
	"https://feeds.reuters.com/reuters/technologyNews",
	"https://rss.slashdot.org/Slashdot/slashdotMain",
	"https://feeds.feedburner.com/oreilly/radar",
}

// Config is the `collector:` section of the configuration file.
type Config struct {
	// LookbackDays bounds how far back an arXiv submission may be dated,
	// measured in JST days. Defaults to 1.
	LookbackDays int `yaml:"lookback_days,omitempty"`

	// ArxivMaxResults is the page size requested from the arXiv API.
	// Defaults to 20.
	ArxivMaxResults int `yaml:"arxiv_max_results,omitempty"`

	// Feeds are the RSS sources scanned for news. Defaults to
	// DefaultFeeds.
	Feeds []string `yaml:"feeds,omitempty"`

	// Keywords score news relevance; ExcludeKeywords drop entries
	// outright. Both default to the built-in lists.
	Keywords        []string `yaml:"keywords,omitempty"`
	ExcludeKeywords []string `yaml:"exclude_keywords,omitempty"`

	// OutputDir receives the rendered report files. Defaults to the
	// working directory, which under the pipeline is the run workspace.
	OutputDir string `yaml:"output_dir,omitempty"`

	// CacheDir holds feed bodies and validators for conditional GETs.
	// Empty disables the feed cache.
	CacheDir string `yaml:"cache_dir,omitempty"`

	// Email is the SMTP endpoint reports are sent through.
	Email EmailConfig `yaml:"email,omitempty"`
}

// EmailConfig is the SMTP submission endpoint. Credentials come from the
// environment, not the configuration file.
type EmailConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// ApplyDefaults fills zero values with their defaults.
func (c *Config) ApplyDefaults() {
	if c.LookbackDays == 0 {
		c.LookbackDays = 1
	}
	if c.ArxivMaxResults == 0 {
		c.ArxivMaxResults = 20
	}
	if len(c.Feeds) == 0 {
		c.Feeds = append([]string(nil), DefaultFeeds...)
	}
	if len(c.Keywords) == 0 {
		c.Keywords = append([]string(nil), defaultKeywords...)
	}
	if len(c.ExcludeKeywords) == 0 {
		c.ExcludeKeywords = append([]string(nil), defaultExcludeKeywords...)
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.Email.Host == "" {
		c.Email.Host = "smtp.gmail.com"
	}
	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
}

// Validate checks the structural validity of the collector configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.LookbackDays < 0 {
		errs = append(errs, fmt.Errorf("collect: lookback_days must not be negative, got %d", c.LookbackDays))
	}
	if c.ArxivMaxResults < 1 || c.ArxivMaxResults > 2000 {
		errs = append(errs, fmt.Errorf("collect: arxiv_max_results must be in 1..2000, got %d", c.ArxivMaxResults))
	}
	for _, feed := range c.Feeds {
		u, err := url.Parse(feed)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("collect: invalid feed URL %q", feed))
		}
	}
	if c.Email.Host == "" {
		errs = append(errs, errors.New("collect: email.host is required"))
	}
	if c.Email.Port < 1 || c.Email.Port > 65535 {
		errs = append(errs, fmt.Errorf("collect: email.port must be in 1..65535, got %d", c.Email.Port))
	}

	return errors.Join(errs...)
}
