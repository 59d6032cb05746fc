package client

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel for resources the registry confirmed absent.
var ErrNotFound = errors.New("not found")

// HTTPError represents a non-2xx response. A 404 marks the resource absent;
// anything else is an upstream error carrying the truncated body for
// diagnostics.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsNotFound returns true if the error represents a 404 response.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == 404
}

// RequestError represents a network-level failure: connection refused,
// timeout, DNS failure, or a body that could not be read. Always transient
// from this package's point of view; retry policy belongs to the caller.
type RequestError struct {
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
