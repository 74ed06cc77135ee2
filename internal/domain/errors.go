package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = errors.New("job not found")

	// ErrJobAlreadyClaimed is returned when another worker won the claim race
	ErrJobAlreadyClaimed = errors.New("job already claimed by another worker")

	// ErrInvalidPayload is returned when job payload JSON is malformed
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrMaxRetriesExceeded is returned when a job has exhausted its retry budget
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrDestinationNotFound is returned when a webhook destination cannot be found
	ErrDestinationNotFound = errors.New("destination not found")

	// ErrDeliveryLogNotFound is returned when no delivery log exists for an (event, destination) pair
	ErrDeliveryLogNotFound = errors.New("delivery log not found")

	// ErrValidation marks input the remote side will never accept (terminal)
	ErrValidation = errors.New("validation error")

	// ErrAuthorization marks rejected credentials (terminal)
	ErrAuthorization = errors.New("authorization error")

	// ErrNetwork marks a transport failure (retryable)
	ErrNetwork = errors.New("network error")

	// ErrTimeout marks a call that exceeded its deadline (retryable)
	ErrTimeout = errors.New("timeout")
)

// RetryableError wraps transient errors that should be retried
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

// TerminalError wraps errors that must never be retried
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string {
	return "terminal error: " + e.Err.Error()
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

// NewTerminalError creates a new terminal error
func NewTerminalError(err error) error {
	return &TerminalError{Err: err}
}

// RemoteError is a non-2xx response from a remote endpoint
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("remote returned HTTP %d: %s", e.StatusCode, e.Body)
}

// IsServerError reports a 5xx response
func (e *RemoteError) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsClientError reports a 4xx response
func (e *RemoteError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// PartialFailure describes targets of a multi-target job that failed while others succeeded
type PartialFailure struct {
	Failed map[string]string
}

func (e *PartialFailure) Error() string {
	keys := make([]string, 0, len(e.Failed))
	for k := range e.Failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Failed[k])
	}
	return "partial failure: " + strings.Join(parts, "; ")
}
