package gateway

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoBaseURL is returned when the backend base URL is missing.
	ErrNoBaseURL = errors.New("gateway: base URL required")

	// ErrEmptyAudio is returned when an upload is attempted with no audio.
	ErrEmptyAudio = errors.New("gateway: empty audio payload")

	// ErrEmptyText is returned when a text operation is given no text.
	ErrEmptyText = errors.New("gateway: empty text")

	// ErrStreamClosed is returned when using a closed speech stream.
	ErrStreamClosed = errors.New("gateway: speech stream closed")
)

// APIError represents an error response from the backend.
//
// A 2xx reply that carries success=false in its body is also reported as an
// APIError so callers have a single error shape for backend failures.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the backend.
	Message string

	// Code is the error code (if provided).
	Code string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway: API error %d (%s): %s",
			e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("gateway: API error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsRetryable returns true if the request should be retried.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// ConnectionError wraps a transport-level failure reaching the backend.
type ConnectionError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("gateway: %s: connection failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}
