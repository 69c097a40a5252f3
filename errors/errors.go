// Package errors provides the error taxonomy shared by the reactkit packages.
// Errors carry a machine-readable code, an HTTP status for the gateway and a
// retryable flag.
package errors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, errors.ErrQueueClosed) matches any queue-closed error.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// Sentinels for errors.Is matching. Only the code is compared.
var (
	ErrQueueClosed       = &AppError{Code: ErrCodeQueueClosed}
	ErrExecutorClosed    = &AppError{Code: ErrCodeExecutorClosed}
	ErrExecutorSaturated = &AppError{Code: ErrCodeExecutorSaturated}
	ErrStreamStopped     = &AppError{Code: ErrCodeStreamStopped}
	ErrNoResults         = &AppError{Code: ErrCodeNoResults}
	ErrStageFailed       = &AppError{Code: ErrCodeStageFailed}
	ErrInvalidSchedule   = &AppError{Code: ErrCodeInvalidSchedule}
	ErrInvalidArgument   = &AppError{Code: ErrCodeInvalidArgument}
	ErrNotFound          = &AppError{Code: ErrCodeNotFound}
)

// --- Constructors ---

// InvalidArgument creates a new AppError for a missing or out-of-range argument.
func InvalidArgument(name, reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid argument %s: %s", name, reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"argument": name},
	}
}

// InvalidSchedule creates a new AppError for a schedule that is rejected at registration.
func InvalidSchedule(reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidSchedule, Message: fmt.Sprintf("invalid schedule: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// StageFailed wraps a stage failure so it can be surfaced to a caller.
func StageFailed(cause error) *AppError {
	return &AppError{
		Code: ErrCodeStageFailed, Message: "stage failed",
		HTTPStatus: http.StatusUnprocessableEntity, Retryable: false, Cause: cause,
	}
}

// NoResults creates a new AppError for a pipeline with no successful task.
func NoResults(stage int) *AppError {
	return &AppError{
		Code: ErrCodeNoResults, Message: "no task completed successfully",
		HTTPStatus: http.StatusNotFound, Retryable: false,
		Details: map[string]any{"stage": stage},
	}
}

// QueueClosed creates a new AppError for an operation on a closed queue.
func QueueClosed() *AppError {
	return &AppError{
		Code: ErrCodeQueueClosed, Message: "queue is closed",
		HTTPStatus: http.StatusGone, Retryable: false,
	}
}

// ExecutorClosed creates a new AppError for a submit after shutdown.
func ExecutorClosed(name string) *AppError {
	return &AppError{
		Code: ErrCodeExecutorClosed, Message: fmt.Sprintf("executor %s is shut down", name),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: false,
		Details: map[string]any{"executor": name},
	}
}

// ExecutorSaturated creates a new AppError for a submit beyond the backlog limit.
func ExecutorSaturated(name string, limit int) *AppError {
	return &AppError{
		Code: ErrCodeExecutorSaturated, Message: fmt.Sprintf("executor %s backlog is full", name),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"executor": name, "max_queued": limit},
	}
}

// StreamStopped creates a new AppError for an operation on a stopped hot stream.
func StreamStopped(name string) *AppError {
	return &AppError{
		Code: ErrCodeStreamStopped, Message: fmt.Sprintf("stream %s is stopped", name),
		HTTPStatus: http.StatusConflict, Retryable: false,
		Details: map[string]any{"stream": name},
	}
}

// Unavailable creates a new AppError for a capacity limit.
func Unavailable(resource string) *AppError {
	return &AppError{
		Code: ErrCodeUnavailable, Message: fmt.Sprintf("The %s is at capacity. Please try again.", resource),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"resource": resource},
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
