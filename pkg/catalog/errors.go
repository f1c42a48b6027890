package catalog

import (
	"fmt"
)

// Error represents a failed catalog API request.
//
// It carries the HTTP status code and the server's error message, if the
// response body contained one. A zero StatusCode means the request never
// produced a response (network failure).
type Error struct {
	StatusCode int    // HTTP status code (0 for transport failures)
	Message    string // Error message from the server, if any
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("catalog: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("catalog: request failed with status %d", e.StatusCode)
}

// Is checks if the target error is a catalog error with the same status.
//
// This allows errors.Is() to work with *Error types.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode
}

// Temporary returns true if the request should be retried.
//
// Server errors (5xx) and rate limiting (429) are considered temporary.
// Client errors (4xx) are not: retrying a bad request cannot succeed.
func (e *Error) Temporary() bool {
	if e.StatusCode == 429 {
		return true
	}
	return e.StatusCode >= 500
}
