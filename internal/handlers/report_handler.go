package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"appfeedback/internal/config"
	"appfeedback/internal/middleware"
	"appfeedback/internal/observability"
	"appfeedback/internal/services"
	contextutils "appfeedback/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// ReportHandler handles report ingestion, reads, reassignment and scrubbing.
type ReportHandler struct {
	reportService services.ReportServiceInterface
	scrubService  services.ScrubServiceInterface
	logger        *observability.Logger
}

// NewReportHandler creates a ReportHandler.
func NewReportHandler(reportService services.ReportServiceInterface, scrubService services.ScrubServiceInterface, logger *observability.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		scrubService:  scrubService,
		logger:        logger,
	}
}

// IngestResponse is returned for an accepted submission.
type IngestResponse struct {
	ReportID string `json:"report_id"`
}

// ReassignRequest moves a report; a null ticket_id takes it off its ticket.
type ReassignRequest struct {
	TicketID *string `json:"ticket_id"`
}

// Ingest handles POST /v1/reports.
func (h *ReportHandler) Ingest(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "ingest_report")
	defer observability.FinishSpan(span, nil)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, config.MaxReportPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			HandleValidationError(c, "payload", tooLarge.Limit, "report payload is too large")
			return
		}
		HandleBindError(c, err)
		return
	}

	reportID, err := h.reportService.Ingest(ctx, body)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeReportID(reportID))
	c.JSON(http.StatusCreated, IngestResponse{ReportID: reportID})
}

// GetReports handles GET /v1/reports?ids=a,b. Unknown ids come back as null
// at their position.
func (h *ReportHandler) GetReports(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_reports")
	defer observability.FinishSpan(span, nil)

	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		HandleValidationError(c, "ids", c.Query("ids"), "at least one report id is required")
		return
	}
	span.SetAttributes(observability.AttributeCount(len(ids)))

	reports, err := h.reportService.GetReports(ctx, ids)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// GetFilterOptions handles GET /v1/reports/filters.
func (h *ReportHandler) GetFilterOptions(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_filter_options")
	defer observability.FinishSpan(span, nil)

	filters, err := h.reportService.GetFilterOptions(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"filters": filters})
}

// Reassign handles PUT /v1/reports/:id/ticket.
func (h *ReportHandler) Reassign(c *gin.Context) {
	reportID := c.Param("id")
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "reassign_report",
		observability.AttributeReportID(reportID))
	defer observability.FinishSpan(span, nil)

	var req ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}

	report, err := h.reportService.Reassign(ctx, reportID, req.TicketID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Scrub handles POST /v1/reports/:id/scrub on behalf of the calling moderator.
func (h *ReportHandler) Scrub(c *gin.Context) {
	reportID := c.Param("id")
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "scrub_report",
		observability.AttributeReportID(reportID))
	defer observability.FinishSpan(span, nil)

	moderatorID, ok := middleware.GetModeratorID(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return
	}

	report, err := h.scrubService.ScrubReport(ctx, reportID, moderatorID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	h.logger.Info(ctx, "Moderator scrubbed report", map[string]interface{}{
		"report_id":    reportID,
		"moderator_id": moderatorID,
	})
	c.JSON(http.StatusOK, report)
}

// GetExpiring handles GET /v1/admin/expiring.
func (h *ReportHandler) GetExpiring(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_expiring_reports")
	defer observability.FinishSpan(span, nil)

	reports, err := h.scrubService.GetExpiringReports(ctx)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(attribute.Int("reports.expiring", len(reports)))
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}
