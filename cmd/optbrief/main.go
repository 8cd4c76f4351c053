// Package main is the entry point for the optbrief CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"optbrief/internal/config"
	"optbrief/internal/pipeline"
	"optbrief/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "optbrief",
		Short:         "Self-hosted daemon for the daily optimization research brief",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		versionCmd(),
		startCmd(),
		runCmd(),
		collectCmd(),
		configCmd(),
		initCmd(),
		serviceCmd(),
		mcpCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("optbrief %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func startCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the daemon: scheduler, retention sweep, and HTTP gateway",
		RunE: func(_ *cobra.Command, _ []string) error {
			return app.Run(app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
				Commit:     commit,
				Date:       date,
			})
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	return cmd
}

func runCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one pipeline run and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, path, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			comps, err := app.Wire(ctx, cfg, path, version)
			if err != nil {
				return err
			}
			defer func() { _ = comps.Close(context.Background()) }()

			run, err := comps.Runner.Run(ctx, pipeline.TriggerManual)
			if err != nil {
				return err
			}
			for _, step := range run.Steps {
				fmt.Printf("  %-10s %s\n", step.Status, step.Name)
			}
			if run.Status != pipeline.StatusSucceeded {
				return fmt.Errorf("run %s %s: %s (log: %s)",
					run.ID, run.Status, run.Error, pipeline.RunLogPath(comps.DataDir, run.ID))
			}
			fmt.Printf("run %s succeeded in %s\n", run.ID, run.Duration().Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			fmt.Println("Configuration OK")
			fmt.Printf("  pipeline: %s (%d steps)\n", cfg.Pipeline.Name, len(cfg.Pipeline.Steps))
			fmt.Printf("  schedule: %s (%s)\n", cfg.Pipeline.Schedule, cfg.Pipeline.Timezone)
			if cfg.Gateway != nil {
				fmt.Printf("  gateway:  %s\n", cfg.Gateway.Bind)
			}
			return nil
		},
	})
	return cmd
}

// loadConfig resolves, loads, and validates the configuration file.
func loadConfig(flagPath string) (*config.Config, string, error) {
	path := flagPath
	if path == "" {
		resolved, err := app.ResolveConfigPath()
		if err != nil {
			return nil, "", err
		}
		path = resolved
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}
