// Package main provides the entry point for the app feedback retention worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"appfeedback/internal/config"
	"appfeedback/internal/di"
	"appfeedback/internal/handlers"
	"appfeedback/internal/observability"
	"appfeedback/internal/version"
	"appfeedback/internal/worker"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// fatalIfErr logs the error with context and panics with a consistent message
func fatalIfErr(ctx context.Context, logger *observability.Logger, msg string, err error, fields map[string]interface{}) {
	logger.Error(ctx, msg, err, fields)
	panic(msg + ": " + err.Error())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	if cfg.OpenTelemetry.ServiceVersion == "" {
		cfg.OpenTelemetry.ServiceVersion = version.Version
	}

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "appfeedback-worker", cfg.Server.LogLevel)
	if err != nil {
		panic("Failed to initialize observability: " + err.Error())
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), config.TelemetryFlushTimeout)
		defer cancel()
		if err := observability.ShutdownObservability(flushCtx, tp, mp, logger); err != nil {
			logger.Warn(flushCtx, "Error shutting down observability", map[string]interface{}{"error": err.Error()})
		}
	}()

	instance, _ := os.Hostname()
	logger.Info(ctx, "Starting app feedback worker service", map[string]interface{}{
		"port":           cfg.Server.WorkerPort,
		"logLevel":       cfg.Server.LogLevel,
		"instance":       instance,
		"sweep_interval": cfg.Reports.SweepInterval.String(),
	})

	container := di.NewServiceContainer(cfg, logger, nil)
	if err := container.Initialize(ctx); err != nil {
		fatalIfErr(ctx, logger, "Failed to initialize services", err, map[string]interface{}{"db_url_set": cfg.Database.URL != ""})
	}
	defer func() {
		if err := container.Shutdown(context.Background()); err != nil {
			logger.Warn(context.Background(), "Warning: failed to close backends", map[string]interface{}{"error": err.Error()})
		}
	}()

	scrubService, err := container.GetScrubService()
	if err != nil {
		fatalIfErr(ctx, logger, "Failed to get scrub service", err, nil)
	}
	sweeper := worker.NewWorker(scrubService, instance, cfg, logger)

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:              ":" + cfg.Server.WorkerPort,
		Handler:           handlers.NewWorkerRouter(cfg, sweeper, logger),
		ReadHeaderTimeout: config.DefaultHTTPTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sweeper.Start(gctx)
		return nil
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "Worker shutting down", map[string]interface{}{"instance": instance})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.WorkerShutdownTimeout)
		defer cancel()
		return errors.Join(server.Shutdown(shutdownCtx), sweeper.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		logger.Error(context.Background(), "Worker exited with error", err, nil)
		return
	}
	logger.Info(context.Background(), "Worker shutdown completed", nil)
}
