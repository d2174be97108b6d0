package contextutils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		expected string
	}{
		{
			name: "error with details",
			appError: &AppError{
				Code:     ErrorCodeInvalidInput,
				Severity: SeverityWarn,
				Message:  "invalid category",
				Details:  "value 'Crash_Other' is invalid: unknown category",
			},
			expected: "INVALID_INPUT: invalid category - value 'Crash_Other' is invalid: unknown category",
		},
		{
			name: "error without details",
			appError: &AppError{
				Code:     ErrorCodeRecordNotFound,
				Severity: SeverityInfo,
				Message:  "Record not found",
			},
			expected: "RECORD_NOT_FOUND: Record not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appError.Error())
		})
	}
}

func TestAppError_IsComparesCodes(t *testing.T) {
	wrapped := WrapError(ErrRecordNotFound, "failed to load ticket")

	assert.True(t, errors.Is(wrapped, ErrRecordNotFound))
	assert.False(t, errors.Is(wrapped, ErrConflict))
	assert.False(t, ErrRecordNotFound.Is(errors.New("plain")))
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("sdk_version", "sdk version %d is below the minimum", 1)

	assert.Equal(t, ErrorCodeValidationFailed, err.Code)
	assert.Equal(t, SeverityWarn, err.Severity)
	assert.Equal(t, "sdk_version", err.Field)
	assert.Equal(t, "sdk version 1 is below the minimum", err.Message)
}

func TestNewInvalidInputError(t *testing.T) {
	err := NewInvalidInputError("report_type", "Crash", "unknown report type")

	assert.Equal(t, ErrorCodeInvalidInput, err.Code)
	assert.Equal(t, "report_type", err.Field)
	assert.Contains(t, err.Details, "'Crash'")
}

func TestWrapError(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Nil(t, WrapError(nil, "context"))
	})

	t.Run("AppError keeps code and field", func(t *testing.T) {
		original := NewValidationError("ticket_name", "too long")
		wrapped := WrapError(original, "failed to rename ticket")

		var appErr *AppError
		require.True(t, AsError(wrapped, &appErr))
		assert.Equal(t, ErrorCodeValidationFailed, appErr.Code)
		assert.Equal(t, "ticket_name", appErr.Field)
		assert.Equal(t, "failed to rename ticket", appErr.Message)
		assert.Equal(t, original, appErr.Cause)
	})

	t.Run("regular error becomes internal", func(t *testing.T) {
		original := errors.New("connection reset")
		wrapped := WrapError(original, "context")

		assert.Equal(t, ErrorCodeInternalError, GetErrorCode(wrapped))
		assert.Equal(t, SeverityError, GetErrorSeverity(wrapped))
		assert.ErrorIs(t, wrapped, original)
	})
}

func TestWrapErrorf(t *testing.T) {
	t.Run("plain format", func(t *testing.T) {
		wrapped := WrapErrorf(errors.New("boom"), "failed to scrub %s", "android.1.abc")

		var appErr *AppError
		require.True(t, AsError(wrapped, &appErr))
		assert.Equal(t, "failed to scrub android.1.abc", appErr.Message)
		assert.Equal(t, "boom", appErr.Details)
	})

	t.Run("with %w keeps the chain", func(t *testing.T) {
		cause := errors.New("boom")
		wrapped := WrapErrorf(ErrInternalError, "failed to open: %w", cause)

		assert.ErrorIs(t, wrapped, cause)
		assert.Equal(t, ErrorCodeInternalError, GetErrorCode(wrapped))
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"timeout", &AppError{Code: ErrorCodeTimeout, Severity: SeverityWarn}, true},
		{"database connection", &AppError{Code: ErrorCodeDatabaseConnection, Severity: SeverityError}, true},
		{"sweep in progress", ErrSweepInProgress, true},
		{"validation", &AppError{Code: ErrorCodeValidationFailed, Severity: SeverityWarn}, false},
		{"fatal timeout", &AppError{Code: ErrorCodeTimeout, Severity: SeverityFatal}, false},
		{"regular error", errors.New("regular error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(ErrConsistencyViolation))
	assert.True(t, IsFatal(WrapError(ErrUnsupportedSchemaVersion, "load report")))
	assert.True(t, IsFatal(ErrIDGenerationExhausted))
	assert.False(t, IsFatal(ErrRecordNotFound))
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestAppError_ToJSON(t *testing.T) {
	err := &AppError{
		Code:     ErrorCodeValidationFailed,
		Severity: SeverityWarn,
		Message:  "ticket name too long",
		Details:  "101 characters",
		Field:    "ticket_name",
	}

	result := err.ToJSON()

	assert.Equal(t, "VALIDATION_FAILED", result["code"])
	assert.Equal(t, "ticket name too long", result["message"])
	assert.Equal(t, "warn", result["severity"])
	assert.Equal(t, "101 characters", result["details"])
	assert.Equal(t, "ticket_name", result["field"])
	assert.Equal(t, false, result["retryable"])
	assert.NotContains(t, result, "cause")
}

func TestModeratorIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetModeratorIDFromContext(ctx))

	ctx = WithModeratorID(ctx, "uid_abcdefghijabcdefghijabcdefghijab")
	assert.Equal(t, "uid_abcdefghijabcdefghijabcdefghijab", GetModeratorIDFromContext(ctx))
}
