// Package database provides database connection and migration functionality.
package database

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"appfeedback/internal/config"
	"appfeedback/internal/observability"
	contextutils "appfeedback/internal/utils"

	// Import PostgreSQL driver for database/sql
	_ "github.com/lib/pq"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // required for golang-migrate postgres driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // required for golang-migrate file source

	"go.nhat.io/otelsql"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// defaultDatabaseName is reported on spans when the URL carries no database name.
const defaultDatabaseName = "appfeedback"

// MigrationsDirEnvVar overrides the directory searched for migration files.
const MigrationsDirEnvVar = "APPFEEDBACK_MIGRATIONS_DIR"

// Manager handles database operations with proper logging
type Manager struct {
	logger *observability.Logger
}

var (
	otelDriverNameCache string
	otelDriverOnce      sync.Once
	otelDriverErr       error
)

// NewManager creates a new database manager with the provided logger
func NewManager(logger *observability.Logger) *Manager {
	if logger == nil {
		panic("NewManager: logger is nil")
	}
	return &Manager{
		logger: logger,
	}
}

// DefaultDatabaseConfig returns the default database configuration
func DefaultDatabaseConfig() config.DatabaseConfig {
	cfg := config.DatabaseConfig{
		MaxOpenConns:    config.DefaultMaxOpenConns,
		MaxIdleConns:    config.DefaultMaxIdleConns,
		ConnMaxLifetime: config.DatabaseConnMaxLifetime,
	}

	// Check for TEST_DATABASE_URL first (for tests)
	if testURL := os.Getenv("TEST_DATABASE_URL"); testURL != "" {
		cfg.URL = testURL
	}

	return cfg
}

// InitDB initializes and returns a database connection with migrations
func (dm *Manager) InitDB(databaseURL string) (result0 *sql.DB, err error) {
	cfg := DefaultDatabaseConfig()
	cfg.URL = databaseURL
	return dm.InitDBWithConfig(cfg)
}

// InitDBWithConfig initializes and returns a database connection with migrations and custom config
func (dm *Manager) InitDBWithConfig(cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "init_db",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
		attribute.String("db.system", "postgresql"),
		attribute.Bool("migrations.enabled", true),
		attribute.Int("db.max_open_conns", cfg.MaxOpenConns),
		attribute.Int("db.max_idle_conns", cfg.MaxIdleConns),
		attribute.String("db.conn_max_lifetime", cfg.ConnMaxLifetime.String()),
	)
	defer observability.FinishSpan(span, &err)

	db, err := dm.InitDBWithoutMigrations(cfg)
	if err != nil {
		return nil, err
	}

	if err := dm.RunMigrations(cfg.URL); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// extractDatabaseName extracts the database name from a PostgreSQL connection string
func extractDatabaseName(databaseURL string) string {
	// key=value DSN: "host=localhost dbname=appfeedback sslmode=disable"
	if !strings.Contains(databaseURL, "://") && strings.Contains(databaseURL, "=") {
		for _, field := range strings.Fields(databaseURL) {
			if name, ok := strings.CutPrefix(field, "dbname="); ok && name != "" {
				return name
			}
		}
		return defaultDatabaseName
	}

	if u, err := url.Parse(databaseURL); err == nil && u.Path != "" {
		if dbName := strings.TrimPrefix(u.Path, "/"); dbName != "" {
			return dbName
		}
	}

	return defaultDatabaseName
}

// InitDBWithoutMigrations initializes and returns a database connection without running migrations
func (dm *Manager) InitDBWithoutMigrations(cfg config.DatabaseConfig) (result0 *sql.DB, err error) {
	ctx, span := observability.TraceDatabaseFunction(context.Background(), "init_db_without_migrations",
		attribute.String("db.name", extractDatabaseName(cfg.URL)),
	)
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(cfg.URL) == "" {
		return nil, contextutils.WrapError(contextutils.ErrDatabaseConnection, "database url is empty")
	}

	// Register OpenTelemetry SQL driver once per process and reuse the name
	otelDriverOnce.Do(func() {
		otelDriverNameCache, otelDriverErr = otelsql.Register("postgres",
			otelsql.WithDatabaseName(extractDatabaseName(cfg.URL)),
			otelsql.TraceQueryWithoutArgs(),
			otelsql.WithSystem(semconv.DBSystemPostgreSQL),
			otelsql.TraceRowsAffected(),
		)
	})
	if otelDriverErr != nil {
		return nil, contextutils.WrapError(otelDriverErr, "failed to register otelsql driver")
	}

	db, err := sql.Open(otelDriverNameCache, cfg.URL)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to open database connection")
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			dm.logger.Error(ctx, "Failed to close database connection after ping failure", closeErr)
		}
		return nil, contextutils.WrapError(contextutils.ErrDatabaseConnection, "failed to ping database: "+err.Error())
	}

	dm.logger.Info(ctx, "Database connection established", map[string]interface{}{
		"database":          contextutils.MaskConnectionURL(cfg.URL),
		"max_open_conns":    cfg.MaxOpenConns,
		"max_idle_conns":    cfg.MaxIdleConns,
		"conn_max_lifetime": cfg.ConnMaxLifetime.String(),
	})

	return db, nil
}

// RunMigrations applies every pending migration under the migrations directory.
func (dm *Manager) RunMigrations(databaseURL string) (err error) {
	ctx, span := observability.TraceDatabaseFunction(context.Background(), "run_migrations",
		attribute.String("db.system", "postgresql"),
	)
	defer observability.FinishSpan(span, &err)

	if strings.TrimSpace(databaseURL) == "" {
		return errors.New("database url must be set for migrations")
	}

	migrationsPath, err := dm.GetMigrationsPath()
	if err != nil {
		dm.logger.Error(ctx, "Could not find migrations path", err)
		return err
	}
	span.SetAttributes(attribute.String("migration.path", migrationsPath))

	files, err := os.ReadDir(migrationsPath)
	if err != nil {
		return contextutils.WrapError(err, "could not read migrations directory")
	}
	migrationFileCount := 0
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".up.sql") {
			migrationFileCount++
		}
	}
	span.SetAttributes(attribute.Int("migration.files.count", migrationFileCount))
	if migrationFileCount == 0 {
		return contextutils.ErrorWithContextf("no migration files found in %s", migrationsPath)
	}

	m, err := migrate.New("file://"+filepath.ToSlash(migrationsPath), databaseURL)
	if err != nil {
		return contextutils.WrapError(err, "failed to initialize golang-migrate")
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			dm.logger.Error(ctx, "Error closing migration", errors.Join(srcErr, dbErr))
		}
	}()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		dm.logger.Info(ctx, "No new migrations to apply")
		return nil
	}
	if err != nil {
		return contextutils.WrapError(err, "golang-migrate up failed")
	}

	version, dirty, _ := m.Version()
	dm.logger.Info(ctx, "Migrations applied successfully", map[string]interface{}{
		"version": version,
		"dirty":   dirty,
	})
	return nil
}

// GetMigrationsPath returns the path to the migrations directory, honouring
// APPFEEDBACK_MIGRATIONS_DIR before walking up from the working directory.
func (dm *Manager) GetMigrationsPath() (result0 string, err error) {
	_, span := observability.TraceDatabaseFunction(context.Background(), "get_migrations_path")
	defer observability.FinishSpan(span, &err)

	if dir := os.Getenv(MigrationsDirEnvVar); dir != "" {
		if _, statErr := os.Stat(dir); statErr != nil {
			return "", contextutils.WrapErrorf(statErr, "%s points at a missing directory", MigrationsDirEnvVar)
		}
		return filepath.Abs(dir)
	}

	currentDir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("search.start_dir", currentDir))

	for {
		migrationsPath := filepath.Join(currentDir, "migrations")
		if info, statErr := os.Stat(migrationsPath); statErr == nil && info.IsDir() {
			span.SetAttributes(attribute.String("migration.found_path", migrationsPath))
			return migrationsPath, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", contextutils.ErrorWithContextf("migrations directory not found in any parent directory")
		}
		currentDir = parentDir
	}
}
