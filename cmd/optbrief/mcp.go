package main

import (
	"context"

	"github.com/spf13/cobra"

	"optbrief/internal/mcpserver"
	"optbrief/pkg/app"
)

func mcpCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve runs and reports as MCP tools over stdio",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}

			// Logs go to stderr; stdout belongs to the MCP transport.
			ctx := context.Background()
			comps, err := app.Wire(ctx, cfg, path, version)
			if err != nil {
				return err
			}
			defer func() { _ = comps.Close(context.Background()) }()

			srv := mcpserver.New(mcpserver.Deps{
				Runner:    comps.Runner,
				Runs:      comps.Store,
				Artifacts: comps.Store,
				Files:     comps.Artifacts,
				Version:   version,
			})
			return srv.ServeStdio()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file")
	return cmd
}
