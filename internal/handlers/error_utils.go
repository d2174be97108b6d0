package handlers

import (
	"fmt"

	"appfeedback/internal/middleware"
	contextutils "appfeedback/internal/utils"

	"github.com/gin-gonic/gin"
)

// HandleAppError sends the structured error response for err
func HandleAppError(c *gin.Context, err error) {
	middleware.HandleAppError(c, err)
}

// HandleValidationError handles request decoding errors consistently
func HandleValidationError(c *gin.Context, field string, value interface{}, reason string) {
	HandleAppError(c, contextutils.NewInvalidInputError(field, value, reason))
}

// HandleBindError reports a request body that could not be bound
func HandleBindError(c *gin.Context, err error) {
	HandleAppError(c, contextutils.NewAppError(
		contextutils.ErrorCodeInvalidInput,
		contextutils.SeverityWarn,
		"Invalid request body",
		fmt.Sprintf("Request body could not be decoded: %v", err),
	))
}
