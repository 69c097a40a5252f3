package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Argument and configuration errors
const (
	// ErrCodeInvalidArgument indicates a nil or out-of-range argument to a constructor.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeInvalidSchedule indicates a schedule that can never fire.
	ErrCodeInvalidSchedule ErrorCode = "INVALID_SCHEDULE"
	// ErrCodeInvalidInput indicates configuration or request input failed validation.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Pipeline errors
const (
	// ErrCodeStageFailed indicates a stage function returned an error or panicked.
	ErrCodeStageFailed ErrorCode = "STAGE_FAILED"
	// ErrCodeNoResults indicates no task produced a successful value.
	ErrCodeNoResults ErrorCode = "NO_RESULTS"
)

// Resource lifecycle errors
const (
	// ErrCodeQueueClosed indicates an offer or take on a closed queue.
	ErrCodeQueueClosed ErrorCode = "QUEUE_CLOSED"
	// ErrCodeExecutorClosed indicates a submit after the executor was shut down.
	ErrCodeExecutorClosed ErrorCode = "EXECUTOR_CLOSED"
	// ErrCodeExecutorSaturated indicates the executor backlog is full.
	ErrCodeExecutorSaturated ErrorCode = "EXECUTOR_SATURATED"
	// ErrCodeStreamStopped indicates an operation on a stopped hot stream.
	ErrCodeStreamStopped ErrorCode = "STREAM_STOPPED"
	// ErrCodeUnavailable indicates a capacity limit was reached.
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeExecutorSaturated: true,
	ErrCodeUnavailable:       true,
	ErrCodeInternal:          false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
