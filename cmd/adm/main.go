// Package main provides the main entry point for the app feedback admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"appfeedback/cmd/adm/commands"
	"appfeedback/internal/config"
	"appfeedback/internal/di"
	"appfeedback/internal/observability"

	"github.com/spf13/cobra"
)

func main() {
	ctx := context.Background()

	if os.Getenv(config.ConfigFileEnvVar) == "" {
		defaultPaths := []string{
			"../config.yaml",
			"../../config.yaml",
			"config.yaml",
		}
		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv(config.ConfigFileEnvVar, path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set %s environment variable: %v\n", config.ConfigFileEnvVar, err)
					os.Exit(1)
				}
				break
			}
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// The admin tool never exports telemetry
	cfg.Server.LogLevel = "error"
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "appfeedback-admin", cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	var (
		once      sync.Once
		container *di.ServiceContainer
		initErr   error
	)
	provider := func(ctx context.Context) (di.ServiceContainerInterface, error) {
		once.Do(func() {
			container = di.NewServiceContainer(cfg, logger, nil)
			initErr = container.Initialize(ctx)
		})
		if initErr != nil {
			return nil, initErr
		}
		return container, nil
	}

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "App Feedback Administration Tool",
		Long: `App Feedback Administration Tool

Operational commands for the feedback report store: migrations, retention
sweeps, ticket inspection and content reference maintenance.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.DatabaseCommands(cfg, logger))
	rootCmd.AddCommand(commands.ReportCommands(cfg, provider, logger))
	rootCmd.AddCommand(commands.TicketCommands(provider))
	rootCmd.AddCommand(commands.ContentCommands(provider, logger))

	runErr := rootCmd.ExecuteContext(ctx)

	if container != nil && initErr == nil {
		if err := container.Shutdown(ctx); err != nil {
			logger.Warn(ctx, "Warning: failed to close backends", map[string]interface{}{"error": err.Error()})
		}
	}
	if runErr != nil {
		os.Exit(1)
	}
}
