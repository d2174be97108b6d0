// Package middleware provides moderator identification and error recovery
// middleware for the Gin web framework.
package middleware

import (
	"appfeedback/internal/models"
	contextutils "appfeedback/internal/utils"

	"github.com/gin-gonic/gin"
)

// ModeratorIDHeader carries the moderator id set by the auth gateway in front of the API.
const ModeratorIDHeader = "X-Moderator-ID"

// ModeratorIDKey is the gin context key holding the moderator id
const ModeratorIDKey = "moderator_id"

// RequireModerator rejects requests without a well-formed moderator id and
// stores the id on both the gin and request contexts.
func RequireModerator() gin.HandlerFunc {
	return func(c *gin.Context) {
		moderatorID := c.GetHeader(ModeratorIDHeader)
		if moderatorID == "" || moderatorID == models.ReportScrubberBotID || !models.IsValidScrubberID(moderatorID) {
			HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrUnauthorized,
				"a valid %s header is required", ModeratorIDHeader))
			c.Abort()
			return
		}

		c.Set(ModeratorIDKey, moderatorID)
		c.Request = c.Request.WithContext(contextutils.WithModeratorID(c.Request.Context(), moderatorID))
		c.Next()
	}
}

// GetModeratorID returns the moderator id set by RequireModerator.
func GetModeratorID(c *gin.Context) (string, bool) {
	moderatorID := c.GetString(ModeratorIDKey)
	return moderatorID, moderatorID != ""
}
