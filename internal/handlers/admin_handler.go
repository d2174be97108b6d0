package handlers

import (
	"net/http"

	"appfeedback/internal/middleware"
	"appfeedback/internal/observability"
	"appfeedback/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes operational endpoints to moderators.
type AdminHandler struct {
	scrubService  services.ScrubServiceInterface
	scrubberBotID string
	logger        *observability.Logger
}

// NewAdminHandler creates an AdminHandler. Sweeps it triggers are recorded
// as scrubbed by scrubberBotID.
func NewAdminHandler(scrubService services.ScrubServiceInterface, scrubberBotID string, logger *observability.Logger) *AdminHandler {
	return &AdminHandler{
		scrubService:  scrubService,
		scrubberBotID: scrubberBotID,
		logger:        logger,
	}
}

// SweepResponse reports the outcome of a manual sweep.
type SweepResponse struct {
	Scrubbed int `json:"scrubbed"`
}

// Sweep handles POST /v1/admin/sweep.
func (h *AdminHandler) Sweep(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "sweep_expiring")
	defer observability.FinishSpan(span, nil)

	moderatorID, _ := middleware.GetModeratorID(c)
	h.logger.Info(ctx, "Manual retention sweep requested", map[string]interface{}{
		"moderator_id": moderatorID,
	})

	scrubbed, err := h.scrubService.SweepExpiring(ctx, h.scrubberBotID)
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(observability.AttributeCount(scrubbed))
	c.JSON(http.StatusOK, SweepResponse{Scrubbed: scrubbed})
}
