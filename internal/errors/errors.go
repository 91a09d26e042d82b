// Package errors provides error code definitions shared across gridshare.
package errors

import "fmt"

// ErrorCode represents a unique, machine-readable error code.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrDuplicate  ErrorCode = "DUPLICATE"
	ErrPermission ErrorCode = "PERMISSION_DENIED"

	// Persistence errors
	ErrPersistence ErrorCode = "PERSISTENCE_FAILED"
	ErrConstraint  ErrorCode = "CONSTRAINT_VIOLATION"

	// Auth errors
	ErrAuthFailed   ErrorCode = "AUTH_FAILED"
	ErrTokenInvalid ErrorCode = "TOKEN_INVALID"

	// Invite link errors
	ErrLinkExpired ErrorCode = "LINK_EXPIRED"
	ErrLinkRevoked ErrorCode = "LINK_REVOKED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}
