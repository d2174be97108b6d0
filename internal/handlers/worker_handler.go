package handlers

import (
	"context"
	"net/http"

	"appfeedback/internal/config"
	"appfeedback/internal/middleware"
	"appfeedback/internal/observability"
	"appfeedback/internal/version"
	"appfeedback/internal/worker"

	"github.com/gin-gonic/gin"
)

// WorkerControl is the part of the sweep worker exposed over HTTP.
type WorkerControl interface {
	GetStatus() worker.Status
	GetHistory() []worker.RunRecord
	GetInstance() string
	TriggerManualRun()
	Pause(ctx context.Context)
	Resume(ctx context.Context)
}

// WorkerHandler serves the status and control endpoints of the worker process.
type WorkerHandler struct {
	worker WorkerControl
	logger *observability.Logger
}

// NewWorkerHandler creates a WorkerHandler.
func NewWorkerHandler(w WorkerControl, logger *observability.Logger) *WorkerHandler {
	return &WorkerHandler{worker: w, logger: logger}
}

// GetStatus handles GET /v1/worker/status.
func (h *WorkerHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"instance": h.worker.GetInstance(),
		"status":   h.worker.GetStatus(),
	})
}

// GetHistory handles GET /v1/worker/history.
func (h *WorkerHandler) GetHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"instance": h.worker.GetInstance(),
		"history":  h.worker.GetHistory(),
	})
}

// Trigger handles POST /v1/worker/trigger.
func (h *WorkerHandler) Trigger(c *gin.Context) {
	moderatorID, _ := middleware.GetModeratorID(c)
	h.logger.Info(c.Request.Context(), "Worker run requested", map[string]interface{}{
		"moderator_id": moderatorID,
		"instance":     h.worker.GetInstance(),
	})
	h.worker.TriggerManualRun()
	c.JSON(http.StatusAccepted, gin.H{"message": "sweep triggered"})
}

// Pause handles POST /v1/worker/pause.
func (h *WorkerHandler) Pause(c *gin.Context) {
	h.worker.Pause(c.Request.Context())
	c.JSON(http.StatusOK, h.worker.GetStatus())
}

// Resume handles POST /v1/worker/resume.
func (h *WorkerHandler) Resume(c *gin.Context) {
	h.worker.Resume(c.Request.Context())
	c.JSON(http.StatusOK, h.worker.GetStatus())
}

// NewWorkerRouter creates the router of the worker process.
func NewWorkerRouter(cfg *config.Config, w WorkerControl, logger *observability.Logger) *gin.Engine {
	router := gin.New()
	router.Use(middleware.ErrorRecoveryMiddleware(logger, middleware.DefaultErrorRecoveryConfig()))
	router.Use(requestLogger(logger))

	serviceName := cfg.OpenTelemetry.ServiceName
	if serviceName == "" {
		serviceName = "appfeedback-worker"
	}
	router.Use(observability.GinMiddleware(serviceName))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "appfeedback-worker"})
	})
	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, version.Info())
	})

	h := NewWorkerHandler(w, logger)
	v1 := router.Group("/v1/worker")
	{
		v1.GET("/status", h.GetStatus)
		v1.GET("/history", h.GetHistory)

		control := v1.Group("", middleware.RequireModerator())
		control.POST("/trigger", h.Trigger)
		control.POST("/pause", h.Pause)
		control.POST("/resume", h.Resume)
	}
	return router
}
