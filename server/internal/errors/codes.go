package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for chat operations.
type ErrorCode string

const (
	// ErrCodeWriteFailed indicates a durable store write was rejected; any
	// optimistic state has been rolled back. Not retried automatically.
	ErrCodeWriteFailed ErrorCode = "WRITE_FAILED"
	// ErrCodeGatewayFailed indicates the assistant gateway call failed.
	ErrCodeGatewayFailed ErrorCode = "GATEWAY_FAILED"
	// ErrCodeUnrecognizedAction indicates an action name outside the dispatch table.
	ErrCodeUnrecognizedAction ErrorCode = "UNRECOGNIZED_ACTION"
	// ErrCodeActionConflict indicates an action already resolved to the other terminal status.
	ErrCodeActionConflict ErrorCode = "ACTION_CONFLICT"
	// ErrCodeNotFound indicates the referenced row does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeRateLimitExceeded indicates the assistant rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeUnauthorized indicates authentication failure.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
)

// ChatError represents a structured error for chat operations.
type ChatError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ChatError) Unwrap() error {
	return e.Cause
}

// Convenience constructors for common error types.

// WriteFailed creates a write-failed error wrapping the store error.
func WriteFailed(msg string, cause error) *ChatError {
	return &ChatError{Code: ErrCodeWriteFailed, Message: msg, Cause: cause}
}

// GatewayFailed creates a gateway-failed error.
func GatewayFailed(msg string, cause error) *ChatError {
	return &ChatError{Code: ErrCodeGatewayFailed, Message: msg, Cause: cause}
}

// UnrecognizedAction creates an unrecognized-action error.
func UnrecognizedAction(name string) *ChatError {
	return &ChatError{
		Code:    ErrCodeUnrecognizedAction,
		Message: fmt.Sprintf("action name not in dispatch table: %s", name),
	}
}

// ActionConflict creates an action-conflict error.
func ActionConflict(msg string) *ChatError {
	return &ChatError{Code: ErrCodeActionConflict, Message: msg}
}

// NotFound creates a not-found error.
func NotFound(msg string) *ChatError {
	return &ChatError{Code: ErrCodeNotFound, Message: msg}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *ChatError {
	return &ChatError{Code: ErrCodeInvalidArgument, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *ChatError {
	return &ChatError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *ChatError {
	return &ChatError{Code: ErrCodeUnauthorized, Message: msg}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if chatErr, ok := err.(*ChatError); ok {
		return chatErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a ChatError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if chatErr, ok := err.(*ChatError); ok {
		return chatErr.Code
	}
	return defaultCode
}
