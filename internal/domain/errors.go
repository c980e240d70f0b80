package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrCancelled indicates that an operation was cancelled by its caller.
	// Cancellation is never surfaced to the user as an error.
	ErrCancelled = errors.New("cancelled")

	// ErrStorageFull indicates that a write would exceed the store's size
	// budget. The cache pruning chain recovers from it locally.
	ErrStorageFull = errors.New("storage full")
)

// ExternalAPIError provides details about a failed upstream request.
type ExternalAPIError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(endpoint string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
