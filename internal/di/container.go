// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"appfeedback/internal/config"
	"appfeedback/internal/conversion"
	"appfeedback/internal/database"
	"appfeedback/internal/models"
	"appfeedback/internal/observability"
	"appfeedback/internal/services"
	"appfeedback/internal/store"
	contextutils "appfeedback/internal/utils"

	goredis "github.com/redis/go-redis/v9"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetReportService() (services.ReportServiceInterface, error)
	GetTicketService() (services.TicketServiceInterface, error)
	GetStatsService() (services.StatsServiceInterface, error)
	GetScrubService() (services.ScrubServiceInterface, error)
	GetStore() store.Store
	GetDatabase() *sql.DB
	GetRedis() *goredis.Client
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	meterProvider otelmetric.MeterProvider
	dbManager     *database.Manager
	db            *sql.DB
	rdb           *goredis.Client
	store         store.Store
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container. A nil
// meter provider registers the report counters on the global provider.
func NewServiceContainer(cfg *config.Config, logger *observability.Logger, mp otelmetric.MeterProvider) *ServiceContainer {
	return &ServiceContainer{
		cfg:           cfg,
		logger:        logger,
		meterProvider: mp,
		services:      make(map[string]interface{}),
	}
}

// Initialize connects the storage backends and builds every service. Without
// a database URL reports are kept in memory, which only suits local runs.
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	metrics := observability.NewReportMetrics(sc.meterProvider)

	if sc.cfg.Database.URL != "" {
		sc.dbManager = database.NewManager(sc.logger)
		db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to initialize database")
		}
		sc.db = db
		sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
			return db.Close()
		})
		sc.store = store.NewPostgresStore(db, sc.logger, metrics, sc.cfg.Reports.MaxStatsTxRetries)
	} else {
		sc.logger.Warn(ctx, "No database URL configured, using in-memory report store", nil)
		sc.store = store.NewMemoryStore()
	}

	rdb, err := services.NewRedisClient(ctx, sc.cfg.Redis)
	if err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to connect to redis")
	}
	if rdb != nil {
		sc.logger.Info(ctx, "Connected to redis", map[string]interface{}{
			"addr":     sc.cfg.Redis.Addr,
			"password": contextutils.MaskSecret(sc.cfg.Redis.Password),
			"db":       sc.cfg.Redis.DB,
		})
		sc.rdb = rdb
		sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
			return rdb.Close()
		})
	} else {
		sc.logger.Warn(ctx, "Redis not configured, sweep lock is process-local and content references are unchecked", nil)
	}

	sc.initializeServices(metrics)
	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetReportService returns the report service
func (sc *ServiceContainer) GetReportService() (services.ReportServiceInterface, error) {
	return GetServiceAs[services.ReportServiceInterface](sc, "report")
}

// GetTicketService returns the ticket service
func (sc *ServiceContainer) GetTicketService() (services.TicketServiceInterface, error) {
	return GetServiceAs[services.TicketServiceInterface](sc, "ticket")
}

// GetStatsService returns the stats service
func (sc *ServiceContainer) GetStatsService() (services.StatsServiceInterface, error) {
	return GetServiceAs[services.StatsServiceInterface](sc, "stats")
}

// GetScrubService returns the scrub service
func (sc *ServiceContainer) GetScrubService() (services.ScrubServiceInterface, error) {
	return GetServiceAs[services.ScrubServiceInterface](sc, "scrub")
}

// GetStore returns the report store
func (sc *ServiceContainer) GetStore() store.Store {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.store
}

// GetDatabase returns the database instance, nil for the in-memory store
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetRedis returns the Redis client, nil when Redis is not configured
func (sc *ServiceContainer) GetRedis() *goredis.Client {
	return sc.rdb
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup closes backends in reverse order of initialization
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errors []error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			sc.logger.Error(ctx, "Failed to close backend", err, nil)
			errors = append(errors, err)
		}
	}
	sc.shutdownFuncs = nil

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(metrics *observability.ReportMetrics) {
	var refs models.ContentReferences
	if sc.rdb != nil {
		contentRefs := services.NewRedisContentReferences(sc.rdb, sc.cfg.Redis.KeyPrefix)
		sc.services["content_refs"] = contentRefs
		refs = contentRefs
	}

	statsService := services.NewStatsService(sc.store, sc.logger, metrics)
	sc.services["stats"] = statsService

	converter := conversion.NewConverter(sc.store, sc.cfg.Reports.MaxIDGenerationRetries, sc.logger)
	reportService := services.NewReportService(sc.store, converter, statsService, refs, sc.logger, metrics)
	sc.services["report"] = reportService

	// Ticket membership changes go through the report service's reassignment
	sc.services["ticket"] = services.NewTicketService(sc.store, reportService, sc.logger)

	lock := services.NewSweepLock(sc.rdb, sc.cfg.Redis.KeyPrefix, sc.cfg.Redis.LockTTL)
	sc.services["scrub"] = services.NewScrubService(sc.store, lock, sc.cfg.Reports.RetentionWindow(), sc.logger, metrics)
}
