package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrTypeInvalidLink represents a malformed or unsupported source link
	ErrTypeInvalidLink ErrorType = "invalid_link"
	// ErrTypeResolution represents a link the resolver could not turn into a media URL
	ErrTypeResolution ErrorType = "resolution"
	// ErrTypeTransfer represents network or HTTP failures during a download
	ErrTypeTransfer ErrorType = "transfer"
	// ErrTypeExhaustedRetries represents a transfer that failed on every attempt
	ErrTypeExhaustedRetries ErrorType = "exhausted_retries"
	// ErrTypePersistence represents disk write or delete failures
	ErrTypePersistence ErrorType = "persistence"
	// ErrTypeFileNotFound represents a missing audio file for a known item
	ErrTypeFileNotFound ErrorType = "file_not_found"
	// ErrTypeNotFound represents a missing record
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeUnknown represents unknown errors
	ErrTypeUnknown ErrorType = "unknown"
)

// AppError represents an application error with context
type AppError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewInvalidLinkError creates a new invalid link error
func NewInvalidLinkError(link string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypeInvalidLink,
		Message:    fmt.Sprintf("unsupported link %q", link),
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewResolutionError creates a new resolution error
func NewResolutionError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypeResolution,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Retryable:  false, // an unresolvable link stays unresolvable
		Cause:      cause,
	}
}

// NewTransferError creates a new transfer error.
// statusCode is the HTTP status of the response, or 0 when no response arrived.
// Client errors (4xx other than 429) are not retryable.
func NewTransferError(message string, statusCode int, cause error) *AppError {
	retryable := true
	if statusCode >= 400 && statusCode < 500 && statusCode != http.StatusTooManyRequests {
		retryable = false
	}
	if statusCode == 0 {
		statusCode = http.StatusServiceUnavailable
	}
	return &AppError{
		Type:       ErrTypeTransfer,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// NewExhaustedRetriesError wraps the last failure after every attempt failed
func NewExhaustedRetriesError(attempts int, last error) *AppError {
	return &AppError{
		Type:       ErrTypeExhaustedRetries,
		Message:    fmt.Sprintf("download failed after %d attempts", attempts),
		StatusCode: http.StatusBadGateway,
		Retryable:  false,
		Cause:      last,
	}
}

// NewPersistenceError creates a new persistence error
func NewPersistenceError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypePersistence,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewFileNotFoundError creates a new file not found error
func NewFileNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrTypeFileNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
		Retryable:  false,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
		Retryable:  false,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:       ErrTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
	}
}

// asAppError finds the outermost AppError in err's chain
func asAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if appErr, ok := asAppError(err); ok {
		return appErr.Retryable
	}
	return false
}

// GetErrorType returns the error type from an error
func GetErrorType(err error) ErrorType {
	if appErr, ok := asAppError(err); ok {
		return appErr.Type
	}
	return ErrTypeUnknown
}

// hasType reports whether any AppError in err's chain has the given type
func hasType(err error, t ErrorType) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Type == t {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// IsInvalidLink checks if an error is an invalid link error
func IsInvalidLink(err error) bool {
	return hasType(err, ErrTypeInvalidLink)
}

// IsResolution checks if an error is a resolution error
func IsResolution(err error) bool {
	return hasType(err, ErrTypeResolution)
}

// IsTransfer checks if an error is, or wraps, a transfer error
func IsTransfer(err error) bool {
	return hasType(err, ErrTypeTransfer)
}

// IsExhaustedRetries checks if an error is an exhausted retries error
func IsExhaustedRetries(err error) bool {
	return hasType(err, ErrTypeExhaustedRetries)
}

// IsPersistence checks if an error is a persistence error
func IsPersistence(err error) bool {
	return hasType(err, ErrTypePersistence)
}

// IsFileNotFound checks if an error is a file not found error
func IsFileNotFound(err error) bool {
	return hasType(err, ErrTypeFileNotFound)
}

// IsNotFound checks if an error is a record not found error
func IsNotFound(err error) bool {
	return hasType(err, ErrTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return hasType(err, ErrTypeValidation)
}
