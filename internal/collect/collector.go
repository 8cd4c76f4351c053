package collect

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"optbrief/internal/discord"
	"optbrief/internal/mail"
)

const userAgent = "optbrief-collector/1.0"

// Collector gathers papers and news, renders the daily brief, saves the
// report files, and delivers them.
type Collector struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client
	feeds      *feedCache
	jst        *time.Location
	arxivBase  string

	// Now is injectable for tests.
	Now func() time.Time
}

// New returns a Collector for cfg with defaults applied.
func New(cfg Config, logger *slog.Logger) *Collector {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		cfg:        cfg,
		logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		feeds:      openFeedCache(cfg.CacheDir),
		jst:        jstLocation(),
		arxivBase:  defaultArxivBaseURL,
	}
}

// Summary is the machine-readable result of one collection, printed as
// JSON by the collect command so pipeline logs stay greppable.
type Summary struct {
	PapersCount      int    `json:"papers_count"`
	NewsCount        int    `json:"news_count"`
	EmailSent        bool   `json:"email_sent"`
	DiscordSent      bool   `json:"discord_sent"`
	ExecutionTimeJST string `json:"execution_time_jst"`
}

// Run executes one collection. Source and delivery failures degrade the
// brief instead of failing it; the returned error covers only rendering
// and report file writes.
func (c *Collector) Run(ctx context.Context) (*Summary, error) {
	now := c.now()
	c.logger.Info("daily collection started", "time", now.Format("2006-01-02 15:04:05")+" JST")

	papers, err := c.collectPapers(ctx, now)
	if err != nil {
		c.logger.Error("arxiv collection failed", "error", err)
		papers = nil
	}
	c.logger.Info("papers collected", "count", len(papers))

	news := c.collectNews(ctx)
	c.logger.Info("news collected", "count", len(news))

	data := reportData{
		GeneratedAt:     now.Format("2006-01-02 15:04"),
		GeneratedAtFull: now.Format("2006-01-02 15:04:05"),
		Papers:          papers,
		News:            news,
	}
	markdown, err := renderMarkdown(data)
	if err != nil {
		return nil, err
	}
	html, err := renderHTML(data)
	if err != nil {
		return nil, err
	}

	mdName, htmlName := reportFilenames(now)
	if err := c.writeReport(mdName, markdown); err != nil {
		return nil, err
	}
	if err := c.writeReport(htmlName, html); err != nil {
		return nil, err
	}

	summary := &Summary{
		PapersCount:      len(papers),
		NewsCount:        len(news),
		EmailSent:        c.sendEmail(ctx, now, markdown, html),
		DiscordSent:      c.sendDiscord(ctx, markdown),
		ExecutionTimeJST: now.Format("2006-01-02 15:04:05") + " JST",
	}

	c.logger.Info("daily collection finished",
		"papers", summary.PapersCount,
		"news", summary.NewsCount,
		"email_sent", summary.EmailSent,
		"discord_sent", summary.DiscordSent,
	)
	return summary, nil
}

// sendEmail delivers the brief by email when the delivery environment is
// complete. Missing credentials and send failures only disable the
// channel.
func (c *Collector) sendEmail(ctx context.Context, now time.Time, markdown, html string) bool {
	sender := os.Getenv(EnvSenderEmail)
	recipient := os.Getenv(EnvRecipientEmail)
	password := os.Getenv(EnvGmailAppPassword)
	if sender == "" || recipient == "" || password == "" {
		c.logger.Warn("email delivery skipped, credentials not configured")
		return false
	}

	err := mail.Send(ctx, mail.Config{Host: c.cfg.Email.Host, Port: c.cfg.Email.Port}, password, mail.Message{
		From:    sender,
		To:      recipient,
		Subject: "Mathematical Optimization Brief - " + now.Format("2006/01/02") + " JST",
		Text:    markdown,
		HTML:    html,
	})
	if err != nil {
		c.logger.Error("email delivery failed", "error", err)
		return false
	}
	c.logger.Info("report emailed")
	return true
}

// sendDiscord posts the Markdown brief to the configured webhook.
func (c *Collector) sendDiscord(ctx context.Context, markdown string) bool {
	webhook := os.Getenv(EnvDiscordWebhook)
	if webhook == "" {
		c.logger.Warn("discord delivery skipped, webhook not configured")
		return false
	}

	if err := discord.New(webhook).SendReport(ctx, markdown); err != nil {
		c.logger.Error("discord delivery failed", "error", err)
		return false
	}
	c.logger.Info("report posted to discord")
	return true
}

func (c *Collector) writeReport(name, content string) error {
	path := filepath.Join(c.cfg.OutputDir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("collect: write report %s: %w", name, err)
	}
	c.logger.Info("report saved", "file", path)
	return nil
}

func (c *Collector) now() time.Time {
	if c.Now != nil {
		return c.Now().In(c.jst)
	}
	return time.Now().In(c.jst)
}

// flatten collapses newlines so multi-line feed fields render on one
// line.
func flatten(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}

// truncate caps s at limit runes, appending an ellipsis when cut.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

// jstLocation resolves Asia/Tokyo, falling back to a fixed +09:00 zone on
// systems without tzdata. JST has no daylight saving, so the fallback is
// exact.
func jstLocation() *time.Location {
	if loc, err := time.LoadLocation("Asia/Tokyo"); err == nil {
		return loc
	}
	return time.FixedZone("JST", 9*60*60)
}
