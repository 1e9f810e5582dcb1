// Package apperrors provides structured application errors for bootstrap, dispatch, and the HTTP gateway.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	// Bootstrap
	ErrStageOrder             = errors.New("stage order violation")
	ErrDependencyConstruction = errors.New("dependency construction failed")
	ErrStorageConnection      = errors.New("storage connection failed")
	ErrSchemaCreation         = errors.New("schema creation failed")
	ErrRepositoryCreation     = errors.New("repository creation failed")
	ErrServiceCreation        = errors.New("service creation failed")
	ErrShutdownCleanup        = errors.New("shutdown cleanup failed")
	ErrNotReady               = errors.New("not ready")

	// Dispatch
	ErrTaskTimeout   = errors.New("task timed out")
	ErrTaskExecution = errors.New("task execution failed")
	ErrPoolClosed    = errors.New("worker pool closed")

	// Request handling
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoData       = errors.New("no data")
	ErrInternal     = errors.New("internal error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "chatId", "text")
	Resource string // For not found/conflict (e.g., "command")
	Op       string // Operation that failed (e.g., "storage.connect")
	Stage    string // Bootstrap stage the error belongs to, if any
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause to errors.Is() and errors.As().
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// Conflict creates a conflict error for a resource.
func Conflict(resource, reason string) error {
	return &Error{
		Sentinel: ErrConflict,
		Message:  reason,
		Resource: resource,
	}
}

// NoData reports that a query found nothing to work with.
func NoData(resource, message string) error {
	return &Error{
		Sentinel: ErrNoData,
		Message:  message,
		Resource: resource,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// StageOrder reports an operation invoked before its required stage was reached.
func StageOrder(op, current, required string) error {
	return &Error{
		Sentinel: ErrStageOrder,
		Message:  fmt.Sprintf("%s: requires stage %s, current stage is %s", op, required, current),
		Op:       op,
		Stage:    current,
	}
}

// Bootstrap wraps a stage failure with its classifying sentinel.
func Bootstrap(sentinel error, stage, op string, cause error) error {
	msg := fmt.Sprintf("%s: %v", op, sentinel)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v: %v", op, sentinel, cause)
	}
	return &Error{
		Sentinel: sentinel,
		Message:  msg,
		Op:       op,
		Stage:    stage,
		Cause:    cause,
	}
}

// ShutdownCleanup records a cleanup step that failed during shutdown.
func ShutdownCleanup(op string, cause error) error {
	return &Error{
		Sentinel: ErrShutdownCleanup,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// NotReady reports that a collaborator was requested before it was built.
func NotReady(what, stage string) error {
	return &Error{
		Sentinel: ErrNotReady,
		Message:  fmt.Sprintf("%s not available at stage %s", what, stage),
		Resource: what,
		Stage:    stage,
	}
}

// TaskTimeout reports a dispatched task that exceeded its deadline.
func TaskTimeout(task string, cause error) error {
	return &Error{
		Sentinel: ErrTaskTimeout,
		Message:  fmt.Sprintf("task %s timed out", task),
		Op:       task,
		Cause:    cause,
	}
}

// TaskExecution wraps an error or panic raised inside a dispatched task.
func TaskExecution(task string, cause error) error {
	return &Error{
		Sentinel: ErrTaskExecution,
		Message:  fmt.Sprintf("task %s failed: %v", task, cause),
		Op:       task,
		Cause:    cause,
	}
}
