package apperrors

import (
	"context"
	"errors"
)

// UserMessage turns any error into the text shown to a chat user.
// Validation, conflict and no-data errors carry their own wording. Everything
// else is reduced to a generic per-class message; SQL text and file paths
// never reach a chat.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var appErr *Error
	hasAppErr := errors.As(err, &appErr)

	switch {
	case errors.Is(err, ErrTaskTimeout), errors.Is(err, context.DeadlineExceeded):
		return "The operation took too long and was stopped. Please try again later."
	case errors.Is(err, context.Canceled), errors.Is(err, ErrPoolClosed):
		return "The operation was cancelled because the service is shutting down."
	case errors.Is(err, ErrNotReady):
		return "The service is still starting up. Please try again in a moment."
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict), errors.Is(err, ErrNoData):
		if hasAppErr && appErr.Message != "" {
			return appErr.Message
		}
		return "The request could not be completed."
	case errors.Is(err, ErrNotFound):
		return "Nothing was found for this request."
	case errors.Is(err, ErrStorageConnection), errors.Is(err, ErrSchemaCreation):
		return "The database is unavailable. Please try again later."
	default:
		return "An internal error occurred while processing the request."
	}
}
