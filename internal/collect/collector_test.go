package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearDeliveryEnv blanks the delivery variables so a developer's real
// credentials never leak into test runs.
func clearDeliveryEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvRecipientEmail, "")
	t.Setenv(EnvSenderEmail, "")
	t.Setenv(EnvGmailAppPassword, "")
	t.Setenv(EnvDiscordWebhook, "")
}

func TestCollector_Run(t *testing.T) {
	clearDeliveryEnv(t)

	arxivSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, arxivFeedTemplate, "We study accelerated first-order methods.")
	}))
	t.Cleanup(arxivSrv.Close)
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, newsFeed)
	}))
	t.Cleanup(feedSrv.Close)

	var webhookPayload map[string]string
	webhookSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&webhookPayload)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(webhookSrv.Close)
	t.Setenv(EnvDiscordWebhook, webhookSrv.URL)

	outDir := t.TempDir()
	c := New(Config{Feeds: []string{feedSrv.URL}, OutputDir: outDir}, slog.Default())
	c.arxivBase = arxivSrv.URL
	c.Now = func() time.Time { return time.Date(2026, 3, 15, 23, 50, 0, 0, c.jst) }

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.PapersCount != 1 {
		t.Errorf("PapersCount = %d, want 1", summary.PapersCount)
	}
	if summary.NewsCount != 2 {
		t.Errorf("NewsCount = %d, want 2", summary.NewsCount)
	}
	if summary.EmailSent {
		t.Error("EmailSent = true without credentials")
	}
	if !summary.DiscordSent {
		t.Error("DiscordSent = false, want webhook delivery")
	}
	if summary.ExecutionTimeJST != "2026-03-15 23:50:00 JST" {
		t.Errorf("ExecutionTimeJST = %q", summary.ExecutionTimeJST)
	}

	md, err := os.ReadFile(filepath.Join(outDir, "report_20260315_2350_JST.md"))
	if err != nil {
		t.Fatalf("markdown report missing: %v", err)
	}
	if !strings.Contains(string(md), "Accelerated Methods for Convex Optimization") {
		t.Error("markdown report missing the collected paper")
	}
	html, err := os.ReadFile(filepath.Join(outDir, "report_20260315_2350_JST.html"))
	if err != nil {
		t.Fatalf("html report missing: %v", err)
	}
	if !strings.HasPrefix(string(html), "<!DOCTYPE html>") {
		t.Error("html report missing doctype")
	}

	if !strings.Contains(webhookPayload["content"], "Mathematical Optimization Daily Brief") {
		t.Error("webhook payload missing the brief")
	}
}

func TestCollector_Run_SourcesDown(t *testing.T) {
	clearDeliveryEnv(t)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(down.Close)

	outDir := t.TempDir()
	c := New(Config{Feeds: []string{down.URL}, OutputDir: outDir}, slog.Default())
	c.arxivBase = down.URL
	c.Now = func() time.Time { return time.Date(2026, 3, 15, 23, 50, 0, 0, c.jst) }

	summary, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v (source outages must not fail the brief)", err)
	}
	if summary.PapersCount != 0 || summary.NewsCount != 0 {
		t.Errorf("counts = %d/%d, want 0/0", summary.PapersCount, summary.NewsCount)
	}
	if summary.EmailSent || summary.DiscordSent {
		t.Error("no delivery channel was configured")
	}

	md, err := os.ReadFile(filepath.Join(outDir, "report_20260315_2350_JST.md"))
	if err != nil {
		t.Fatalf("markdown report missing: %v", err)
	}
	if !strings.Contains(string(md), "No new papers today.") {
		t.Error("empty brief missing its fallback text")
	}
}

func TestCollector_Run_UnwritableOutputDir(t *testing.T) {
	clearDeliveryEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := New(Config{
		Feeds:     []string{srv.URL},
		OutputDir: filepath.Join(t.TempDir(), "does", "not", "exist"),
	}, slog.Default())
	c.arxivBase = srv.URL

	if _, err := c.Run(context.Background()); err == nil {
		t.Fatal("expected error when report files cannot be written")
	}
}

func TestSummary_JSONKeys(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Summary{ExecutionTimeJST: "2026-03-15 23:50:00 JST"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{"papers_count", "news_count", "email_sent", "discord_sent", "execution_time_jst"} {
		if !strings.Contains(string(data), `"`+key+`"`) {
			t.Errorf("summary JSON missing key %q", key)
		}
	}
}
