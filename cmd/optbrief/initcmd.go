package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"optbrief/internal/config"
	"optbrief/internal/gateway"
	"optbrief/internal/sched"
	"optbrief/pkg/app"
)

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a configuration file",
		RunE: func(_ *cobra.Command, _ []string) error {
			if output == "" {
				output = app.DefaultConfigPath()
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			cfg := config.Default()
			schedule := cfg.Pipeline.Schedule
			timezone := cfg.Pipeline.Timezone
			logFormat := cfg.Log.Format
			enableGateway := false
			bind := "127.0.0.1:8080"
			token := ""

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Pipeline schedule").
						Description("5-field cron expression for the daily brief.").
						Value(&schedule).
						Validate(validateSchedule),
					huh.NewInput().
						Title("Timezone").
						Description("IANA name the schedule is evaluated in.").
						Value(&timezone).
						Validate(validateTimezone),
					huh.NewSelect[string]().
						Title("Log format").
						Options(
							huh.NewOption("text", "text"),
							huh.NewOption("json", "json"),
						).
						Value(&logFormat),
					huh.NewConfirm().
						Title("Enable the HTTP gateway?").
						Value(&enableGateway),
				),
				huh.NewGroup(
					huh.NewInput().
						Title("Gateway bind address").
						Value(&bind),
					huh.NewInput().
						Title("Gateway auth token").
						Description("Empty leaves the API routes unmounted.").
						EchoMode(huh.EchoModePassword).
						Value(&token),
				).WithHideFunc(func() bool { return !enableGateway }),
			)
			if err := form.Run(); err != nil {
				return err
			}

			cfg.Pipeline.Schedule = schedule
			cfg.Pipeline.Timezone = timezone
			cfg.Log.Format = logFormat
			if enableGateway {
				cfg.Gateway = &gateway.Config{Bind: bind}
				cfg.Gateway.Auth.Token = token
			}

			if err := writeConfig(output, cfg); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", output)
			fmt.Println("Set RECIPIENT_EMAIL, SENDER_EMAIL, GMAIL_APP_PASSWORD, and DISCORD_WEBHOOK in the daemon environment to enable delivery.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: standard config location)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func validateSchedule(expr string) error {
	_, err := sched.ParseSchedule(expr)
	return err
}

func validateTimezone(name string) error {
	_, err := time.LoadLocation(name)
	return err
}

func writeConfig(path string, cfg *config.Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
