// Package main provides the main entry point for the app feedback backend server.
// It sets up the HTTP server, storage backends, middleware, and API routes.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"appfeedback/internal/config"
	"appfeedback/internal/di"
	"appfeedback/internal/handlers"
	"appfeedback/internal/observability"
	contextutils "appfeedback/internal/utils"
	"appfeedback/internal/version"

	"github.com/gin-gonic/gin"
)

// Application encapsulates the main application logic and can be tested
type Application struct {
	container di.ServiceContainerInterface
	router    *gin.Engine
	server    *http.Server
}

// NewApplication creates a new application instance
func NewApplication(container di.ServiceContainerInterface) (*Application, error) {
	reportService, err := container.GetReportService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get report service")
	}

	ticketService, err := container.GetTicketService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get ticket service")
	}

	statsService, err := container.GetStatsService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get stats service")
	}

	scrubService, err := container.GetScrubService()
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to get scrub service")
	}

	router := handlers.NewRouter(container.GetConfig(), handlers.Services{
		Reports: reportService,
		Tickets: ticketService,
		Stats:   statsService,
		Scrub:   scrubService,
	}, container.GetLogger())

	return &Application{
		container: container,
		router:    router,
	}, nil
}

// Run serves HTTP until ctx is cancelled or the listener fails
func (a *Application) Run(ctx context.Context, port string) error {
	a.server = &http.Server{
		Addr:              ":" + port,
		Handler:           a.router,
		ReadHeaderTimeout: config.DefaultHTTPTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return contextutils.WrapError(err, "server failed")
	}
}

// Shutdown drains in-flight requests, then closes the storage backends
func (a *Application) Shutdown(ctx context.Context) error {
	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.container.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.OpenTelemetry.ServiceVersion == "" {
		cfg.OpenTelemetry.ServiceVersion = version.Version
	}
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "appfeedback-server", cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), config.TelemetryFlushTimeout)
		defer cancel()
		if err := observability.ShutdownObservability(flushCtx, tp, mp, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error shutting down observability: %v\n", err)
		}
	}()

	logger.Info(ctx, "Starting app feedback backend service", map[string]interface{}{
		"port":           cfg.Server.Port,
		"logLevel":       cfg.Server.LogLevel,
		"version":        version.Version,
		"retention_days": cfg.Reports.RetentionDays,
	})

	container := di.NewServiceContainer(cfg, logger, nil)
	if err := container.Initialize(ctx); err != nil {
		logger.Error(ctx, "Failed to initialize services", err, nil)
		os.Exit(1)
	}

	app, err := NewApplication(container)
	if err != nil {
		logger.Error(ctx, "Failed to create application", err, nil)
		_ = container.Shutdown(context.Background())
		os.Exit(1)
	}

	if err := app.Run(ctx, cfg.Server.Port); err != nil {
		logger.Error(ctx, "Application failed", err, nil)
		_ = app.Shutdown(context.Background())
		os.Exit(1)
	}
	logger.Info(context.Background(), "Received shutdown signal, shutting down gracefully", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "Error during application shutdown", err, nil)
		os.Exit(1)
	}

	logger.Info(shutdownCtx, "Shutdown completed successfully", nil)
}
