package handlers

import (
	"net/http"
	"strconv"

	"appfeedback/internal/models"
	"appfeedback/internal/observability"
	"appfeedback/internal/services"

	"github.com/gin-gonic/gin"
)

// TicketHandler handles ticket endpoints.
type TicketHandler struct {
	ticketService services.TicketServiceInterface
	statsService  services.StatsServiceInterface
	logger        *observability.Logger
}

// NewTicketHandler creates a TicketHandler.
func NewTicketHandler(ticketService services.TicketServiceInterface, statsService services.StatsServiceInterface, logger *observability.Logger) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
		statsService:  statsService,
		logger:        logger,
	}
}

// CreateTicketRequest represents a POST /v1/tickets body.
type CreateTicketRequest struct {
	TicketName string   `json:"ticket_name" binding:"required"`
	Platform   string   `json:"platform" binding:"required"`
	ReportIDs  []string `json:"report_ids"`
}

// RenameTicketRequest represents a PATCH /v1/tickets/:id body.
type RenameTicketRequest struct {
	TicketName string `json:"ticket_name" binding:"required"`
}

// CreateTicket handles POST /v1/tickets.
func (h *TicketHandler) CreateTicket(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "create_ticket")
	defer observability.FinishSpan(span, nil)

	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}
	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		HandleAppError(c, err)
		return
	}

	ticket, err := h.ticketService.CreateTicket(ctx, req.TicketName, platform, req.ReportIDs)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

// ListTickets handles GET /v1/tickets?include_archived=true.
func (h *TicketHandler) ListTickets(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_tickets")
	defer observability.FinishSpan(span, nil)

	includeArchived := false
	if raw := c.Query("include_archived"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			HandleValidationError(c, "include_archived", raw, "must be a boolean")
			return
		}
		includeArchived = parsed
	}

	tickets, err := h.ticketService.ListTickets(ctx, includeArchived)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

// GetTicket handles GET /v1/tickets/:id.
func (h *TicketHandler) GetTicket(c *gin.Context) {
	ticketID := c.Param("id")
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_ticket",
		observability.AttributeTicketID(ticketID))
	defer observability.FinishSpan(span, nil)

	ticket, err := h.ticketService.GetTicket(ctx, ticketID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// RenameTicket handles PATCH /v1/tickets/:id.
func (h *TicketHandler) RenameTicket(c *gin.Context) {
	ticketID := c.Param("id")
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "rename_ticket",
		observability.AttributeTicketID(ticketID))
	defer observability.FinishSpan(span, nil)

	var req RenameTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleBindError(c, err)
		return
	}

	ticket, err := h.ticketService.RenameTicket(ctx, ticketID, req.TicketName)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// ArchiveTicket handles POST /v1/tickets/:id/archive.
func (h *TicketHandler) ArchiveTicket(c *gin.Context) {
	h.setArchived(c, true)
}

// UnarchiveTicket handles POST /v1/tickets/:id/unarchive.
func (h *TicketHandler) UnarchiveTicket(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *TicketHandler) setArchived(c *gin.Context, archived bool) {
	ticketID := c.Param("id")
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "set_ticket_archived",
		observability.AttributeTicketID(ticketID))
	defer observability.FinishSpan(span, nil)

	var (
		ticket *models.Ticket
		err    error
	)
	if archived {
		ticket, err = h.ticketService.ArchiveTicket(ctx, ticketID)
	} else {
		ticket, err = h.ticketService.UnarchiveTicket(ctx, ticketID)
	}
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// GetTicketStats handles GET /v1/tickets/:id/stats. The pseudo ticket ids
// of the all-reports and unticketed buckets are accepted too.
func (h *TicketHandler) GetTicketStats(c *gin.Context) {
	ticketID := c.Param("id")
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_ticket_stats",
		observability.AttributeTicketID(ticketID))
	defer observability.FinishSpan(span, nil)

	if !models.IsPseudoTicketID(ticketID) {
		if _, err := h.ticketService.GetTicket(ctx, ticketID); err != nil {
			HandleAppError(c, err)
			return
		}
	}

	stats, err := h.statsService.GetTicketStats(ctx, ticketID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket_id": ticketID, "stats": stats})
}
