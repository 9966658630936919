package provider

import (
	"fmt"
	"time"
)

// ValidationError indicates a chat completion request that failed local
// validation before any network call was made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Message)
}

// ProviderError indicates a failed call to the local inference provider,
// either a transport failure or a non-2xx response.
type ProviderError struct {
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s failed: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s failed: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// TimeoutError indicates an upstream call that exceeded its deadline.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Cause   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %s timed out after %s", e.Op, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// StreamError indicates an explicit error event delivered inside the
// provider's response stream.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("provider stream error: %s", e.Message)
}
