package handlers

import (
	"net/http"
	"time"

	"appfeedback/internal/config"
	"appfeedback/internal/middleware"
	"appfeedback/internal/observability"
	"appfeedback/internal/services"
	"appfeedback/internal/version"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// Services bundles what the router dispatches to.
type Services struct {
	Reports services.ReportServiceInterface
	Tickets services.TicketServiceInterface
	Stats   services.StatsServiceInterface
	Scrub   services.ScrubServiceInterface
}

// NewRouter creates the API router with all middleware and routes.
func NewRouter(cfg *config.Config, svc Services, logger *observability.Logger) *gin.Engine {
	router := gin.New()
	router.Use(middleware.ErrorRecoveryMiddleware(logger, &middleware.ErrorRecoveryConfig{
		EnableCircuitBreaker:    !cfg.IsTest,
		CircuitBreakerThreshold: middleware.DefaultErrorRecoveryConfig().CircuitBreakerThreshold,
		CircuitBreakerTimeout:   middleware.DefaultErrorRecoveryConfig().CircuitBreakerTimeout,
	}))
	router.Use(requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "appfeedback"})
	})
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Info())
	})

	serviceName := cfg.OpenTelemetry.ServiceName
	if serviceName == "" {
		serviceName = "appfeedback-server"
	}
	router.Use(observability.GinMiddleware(serviceName))
	router.Use(observability.ErrorAttributesMiddleware())

	router.RedirectTrailingSlash = false

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", middleware.ModeratorIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	secureConfig := secure.DefaultConfig()
	secureConfig.SSLRedirect = false
	secureConfig.IsDevelopment = cfg.Server.Debug
	secureConfig.ContentSecurityPolicy = config.DefaultCSP
	router.Use(secure.New(secureConfig))

	reportHandler := NewReportHandler(svc.Reports, svc.Scrub, logger)
	ticketHandler := NewTicketHandler(svc.Tickets, svc.Stats, logger)
	adminHandler := NewAdminHandler(svc.Scrub, cfg.Reports.ScrubberBotID, logger)
	routeListing := NewRouteListingHandler("appfeedback")

	v1 := router.Group("/v1")
	{
		// Apps submit reports without a moderator identity.
		v1.POST("/reports", reportHandler.Ingest)

		moderated := v1.Group("", middleware.RequireModerator())

		reports := moderated.Group("/reports")
		{
			reports.GET("", reportHandler.GetReports)
			reports.GET("/filters", reportHandler.GetFilterOptions)
			reports.PUT("/:id/ticket", reportHandler.Reassign)
			reports.POST("/:id/scrub", reportHandler.Scrub)
		}

		tickets := moderated.Group("/tickets")
		{
			tickets.POST("", ticketHandler.CreateTicket)
			tickets.GET("", ticketHandler.ListTickets)
			tickets.GET("/:id", ticketHandler.GetTicket)
			tickets.PATCH("/:id", ticketHandler.RenameTicket)
			tickets.POST("/:id/archive", ticketHandler.ArchiveTicket)
			tickets.POST("/:id/unarchive", ticketHandler.UnarchiveTicket)
			tickets.GET("/:id/stats", ticketHandler.GetTicketStats)
		}

		admin := moderated.Group("/admin")
		{
			admin.POST("/sweep", adminHandler.Sweep)
			admin.GET("/expiring", reportHandler.GetExpiring)
			admin.GET("/routes", routeListing.GetRouteListingJSON)
		}
	}

	routeListing.CollectRoutes(router)
	return router
}

// requestLogger logs one line per request at a level chosen by status code.
func requestLogger(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		statusCode := c.Writer.Status()
		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  time.Since(start).Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		switch {
		case statusCode >= http.StatusInternalServerError:
			fields["http.error_type"] = "server_error"
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		case statusCode >= http.StatusBadRequest:
			fields["http.error_type"] = "client_error"
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		default:
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	}
}
