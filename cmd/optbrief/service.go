package main

import (
	"fmt"
	"path/filepath"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"optbrief/pkg/app"
)

const serviceName = "optbrief"

// daemonProgram adapts the daemon loop to the service manager contract:
// Start returns immediately, Stop closes the shutdown channel and waits
// for the loop to drain.
type daemonProgram struct {
	cfgPath  string
	shutdown chan struct{}
	done     chan error
}

func newDaemonProgram(cfgPath string) *daemonProgram {
	return &daemonProgram{
		cfgPath:  cfgPath,
		shutdown: make(chan struct{}),
		done:     make(chan error, 1),
	}
}

// Start implements service.Interface.
func (p *daemonProgram) Start(s service.Service) error {
	go func() {
		err := app.Run(app.RunParams{
			ConfigPath: p.cfgPath,
			Version:    version,
			Commit:     commit,
			Date:       date,
			Shutdown:   p.shutdown,
		})
		p.done <- err
		if err != nil {
			// Startup failure: ask the manager to stop the service so it
			// does not report a dead daemon as running.
			_ = s.Stop()
		}
	}()
	return nil
}

// Stop implements service.Interface.
func (p *daemonProgram) Stop(service.Service) error {
	close(p.shutdown)
	return <-p.done
}

func serviceConfig(cfgPath string) *service.Config {
	args := []string{"service", "run"}
	if cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}
	return &service.Config{
		Name:        serviceName,
		DisplayName: "optbrief daily brief daemon",
		Description: "Schedules and runs the daily optimization research brief pipeline.",
		Arguments:   args,
	}
}

func serviceCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "service",
		Short: "Run under or manage the system service manager",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon under service manager control",
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := service.New(newDaemonProgram(cfgPath), serviceConfig(cfgPath))
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}

	install := &cobra.Command{
		Use:   "install",
		Short: "Install the system service",
		RunE: func(_ *cobra.Command, _ []string) error {
			// The service manager starts the daemon with an unpredictable
			// working directory, so the recorded config path must be
			// absolute.
			path := cfgPath
			if path == "" {
				resolved, err := app.ResolveConfigPath()
				if err != nil {
					return err
				}
				path = resolved
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}

			svc, err := service.New(newDaemonProgram(abs), serviceConfig(abs))
			if err != nil {
				return err
			}
			if err := svc.Install(); err != nil {
				return err
			}
			fmt.Printf("Installed service %s (config: %s)\n", serviceName, abs)
			return nil
		},
	}

	cmd.AddCommand(
		run,
		install,
		controlCmd(&cfgPath, "uninstall", "Uninstall the system service"),
		controlCmd(&cfgPath, "start", "Start the installed service"),
		controlCmd(&cfgPath, "stop", "Stop the installed service"),
	)
	return cmd
}

// controlCmd forwards an action to the service manager.
func controlCmd(cfgPath *string, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := service.New(newDaemonProgram(*cfgPath), serviceConfig(*cfgPath))
			if err != nil {
				return err
			}
			return service.Control(svc, action)
		},
	}
}
