package commands

import (
	"fmt"
	"time"

	"appfeedback/internal/config"
	"appfeedback/internal/observability"
	contextutils "appfeedback/internal/utils"

	"github.com/spf13/cobra"
)

// ReportCommands returns the report management commands
func ReportCommands(cfg *config.Config, provider ContainerProvider, logger *observability.Logger) *cobra.Command {
	reportsCmd := &cobra.Command{
		Use:   "reports",
		Short: "Report management commands",
		Long: `Report management commands.

Available commands:
  show      - Print reports as JSON
  sweep     - Scrub reports older than the retention window`,
	}

	reportsCmd.AddCommand(showReportsCmd(provider))
	reportsCmd.AddCommand(sweepCmd(cfg, provider, logger))

	return reportsCmd
}

func showReportsCmd(provider ContainerProvider) *cobra.Command {
	return &cobra.Command{
		Use:   "show REPORT_ID...",
		Short: "Print reports as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			container, err := provider(ctx)
			if err != nil {
				return err
			}
			reportService, err := container.GetReportService()
			if err != nil {
				return err
			}

			reports, err := reportService.GetReports(ctx, args)
			if err != nil {
				return contextutils.WrapError(err, "failed to load reports")
			}
			return printJSON(cmd.OutOrStdout(), reports)
		},
	}
}

func sweepCmd(cfg *config.Config, provider ContainerProvider, logger *observability.Logger) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Scrub reports older than the retention window",
		Long: fmt.Sprintf(`Scrub the user-entered fields of every report created more than %d days ago.

Scrubbed reports are attributed to the configured scrubber bot. Stats are not
affected. Use --dry-run to list the reports without scrubbing them.`, cfg.Reports.RetentionDays),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			container, err := provider(ctx)
			if err != nil {
				return err
			}
			scrubService, err := container.GetScrubService()
			if err != nil {
				return err
			}

			if dryRun {
				reports, err := scrubService.GetExpiringReports(ctx)
				if err != nil {
					return contextutils.WrapError(err, "failed to list expiring reports")
				}
				cmd.Printf("%-50s %-10s %-20s\n", "Report", "Platform", "Created")
				for _, r := range reports {
					cmd.Printf("%-50s %-10s %-20s\n", r.ID, r.Platform, r.CreatedOn.UTC().Format(time.RFC3339))
				}
				cmd.Printf("Dry run: would scrub %d reports\n", len(reports))
				return nil
			}

			scrubbed, err := scrubService.SweepExpiring(ctx, cfg.Reports.ScrubberBotID)
			if err != nil {
				logger.Error(ctx, "Retention sweep failed", err, map[string]interface{}{"scrubbed": scrubbed})
				return contextutils.WrapErrorf(err, "sweep stopped after %d reports", scrubbed)
			}
			cmd.Printf("Scrubbed %d reports\n", scrubbed)
			logger.Info(ctx, "Retention sweep completed", map[string]interface{}{"scrubbed": scrubbed})
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the reports that would be scrubbed without scrubbing them")
	return cmd
}
