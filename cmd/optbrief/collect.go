package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"optbrief/internal/collect"
	"optbrief/internal/config"
	"optbrief/internal/secrets"
	"optbrief/pkg/app"
)

func collectCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect papers and news, render the daily brief, and deliver it",
		Long: `Collect gathers recent optimization papers from arXiv and related news
from RSS feeds, renders the daily brief as Markdown and HTML in the
working directory, and delivers it by email and Discord webhook.

Delivery credentials come from the environment: RECIPIENT_EMAIL,
SENDER_EMAIL, GMAIL_APP_PASSWORD, and DISCORD_WEBHOOK. Absent values
disable the corresponding channel. The machine-readable summary is
printed to stdout as JSON.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ccfg, err := collectorConfig(cfgPath)
			if err != nil {
				return err
			}

			summary, err := collect.New(ccfg, collectorLogger()).Run(ctx)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	return cmd
}

// collectorConfig resolves the collector section. Inside a pipeline step
// the daemon passes its config file via OPTBRIEF_CONFIG; standalone
// invocations fall back to the standard search and finally to built-in
// defaults, so collect works without any configuration at all.
func collectorConfig(flagPath string) (collect.Config, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(app.EnvConfigPath)
	}
	if path == "" {
		if resolved, err := app.ResolveConfigPath(); err == nil {
			path = resolved
		}
	}

	var ccfg collect.Config
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return collect.Config{}, err
		}
		if err := config.Validate(cfg); err != nil {
			return collect.Config{}, err
		}
		ccfg = cfg.Collector
	} else {
		ccfg.ApplyDefaults()
	}

	// The cache restore step materializes the feed cache inside the run
	// workspace and exports its location.
	if dir := os.Getenv("OPTBRIEF_CACHE_DIR"); dir != "" {
		ccfg.CacheDir = dir
	}
	return ccfg, nil
}

// collectorLogger builds a stderr logger that redacts delivery
// credentials, keeping stdout clean for the JSON summary.
func collectorLogger() *slog.Logger {
	store := secrets.NewStore()
	store.LoadEnv([]string{
		collect.EnvRecipientEmail,
		collect.EnvSenderEmail,
		collect.EnvGmailAppPassword,
		collect.EnvDiscordWebhook,
	})
	redactor := secrets.NewRedactor()
	redactor.SyncStore(store)

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(secrets.NewRedactingHandler(handler, redactor))
}
