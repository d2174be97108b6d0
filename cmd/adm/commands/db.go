// Package commands provides CLI commands for the admin tool
package commands

import (
	"context"
	"database/sql"

	"appfeedback/internal/config"
	"appfeedback/internal/database"
	"appfeedback/internal/observability"
	contextutils "appfeedback/internal/utils"

	"github.com/spf13/cobra"
)

// reportTables lists the tables db stats counts rows of.
var reportTables = []string{
	"app_feedback_reports",
	"app_feedback_report_tickets",
	"app_feedback_report_stats",
}

// DatabaseCommands returns the database management commands
func DatabaseCommands(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the app feedback store.

Available commands:
  migrate   - Apply pending schema migrations
  stats     - Show row counts of the report tables`,
	}

	dbCmd.AddCommand(migrateCmd(cfg, logger))
	dbCmd.AddCommand(statsCmd(cfg, logger))

	return dbCmd
}

// migrateCmd returns the migrate command
func migrateCmd(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cfg.Database.URL == "" {
				return contextutils.ErrorWithContextf("database url is not configured")
			}
			logger.Info(ctx, "Running migrations", map[string]interface{}{"database_url": contextutils.MaskConnectionURL(cfg.Database.URL)})

			if err := database.NewManager(logger).RunMigrations(cfg.Database.URL); err != nil {
				logger.Error(ctx, "Migrations failed", err, nil)
				return contextutils.WrapError(err, "failed to run migrations")
			}
			cmd.Println("Migrations applied")
			return nil
		},
	}
}

// statsCmd returns the stats command
func statsCmd(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show row counts of the report tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if cfg.Database.URL == "" {
				return contextutils.ErrorWithContextf("database url is not configured")
			}

			db, err := database.NewManager(logger).InitDBWithoutMigrations(cfg.Database)
			if err != nil {
				return contextutils.WrapError(err, "failed to connect to database")
			}
			defer func() {
				if err := db.Close(); err != nil {
					logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
				}
			}()

			counts, err := countRows(ctx, db)
			if err != nil {
				logger.Error(ctx, "Failed to count rows", err, nil)
				return err
			}

			cmd.Printf("Database: %s\n", getDatabaseInfo(ctx, db))
			for _, table := range reportTables {
				cmd.Printf("%-30s %d\n", table, counts[table])
			}
			return nil
		},
	}
}

func countRows(ctx context.Context, db *sql.DB) (map[string]int64, error) {
	counts := make(map[string]int64, len(reportTables))
	for _, table := range reportTables {
		var n int64
		// Table names come from the fixed list above.
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count %s: %v", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}
