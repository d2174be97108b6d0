package observability

import (
	"errors"
	"net/http"

	contextutils "appfeedback/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware creates OpenTelemetry middleware for Gin HTTP requests
func GinMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// ErrorAttributesMiddleware marks the request span as failed for 4xx/5xx
// responses and copies AppError details and the acting moderator onto it.
// It must run after GinMiddleware so the span is already in the request context.
func ErrorAttributesMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.SpanContext().IsValid() {
			return
		}

		if moderatorID := contextutils.GetModeratorIDFromContext(c.Request.Context()); moderatorID != "" {
			span.SetAttributes(AttributeActor(moderatorID))
		}

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}

		errorMsg := "client error"
		if statusCode >= http.StatusInternalServerError {
			errorMsg = "server error"
		}
		severity := determineErrorSeverity(statusCode, c.Errors)

		for _, ginErr := range c.Errors {
			var appErr *contextutils.AppError
			if errors.As(ginErr.Err, &appErr) {
				errorMsg = appErr.Message
				span.SetAttributes(
					attribute.String("error.code", string(appErr.Code)),
					attribute.Bool("error.retryable", contextutils.IsRetryable(appErr)),
				)
				if appErr.Field != "" {
					span.SetAttributes(attribute.String("error.field", appErr.Field))
				}
				break
			}
			errorMsg = ginErr.Error()
		}

		span.RecordError(errors.New(errorMsg), trace.WithStackTrace(true))
		span.SetStatus(codes.Error, errorMsg)
		span.SetAttributes(
			attribute.Int("http.status_code", statusCode),
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.path", c.FullPath()),
			attribute.String("error.severity", severity),
			attribute.Bool("error.server_error", statusCode >= http.StatusInternalServerError),
		)
	}
}

// determineErrorSeverity determines the severity level based on status code and error types
func determineErrorSeverity(statusCode int, ginErrors []*gin.Error) string {
	for _, ginErr := range ginErrors {
		var appErr *contextutils.AppError
		if errors.As(ginErr.Err, &appErr) {
			return string(appErr.Severity)
		}
	}

	switch {
	case statusCode >= http.StatusInternalServerError:
		return string(contextutils.SeverityError)
	case statusCode >= http.StatusBadRequest:
		return string(contextutils.SeverityWarn)
	default:
		return string(contextutils.SeverityInfo)
	}
}
