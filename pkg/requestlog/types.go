package requestlog

import (
	"fmt"
	"time"
)

// Record is one audited bridge request.
type Record struct {
	// ID is the unique record identifier, assigned at enqueue time.
	ID string

	// RequestID correlates the record with server logs.
	RequestID string

	// Time is when the request started.
	Time time.Time

	// Method and Path identify the request.
	Method string
	Path   string

	// Status is the HTTP status the bridge answered with.
	Status int

	// Duration is the total handling time.
	Duration time.Duration

	// Model is the chat model requested, when the request was a chat
	// completion.
	Model string

	// Streamed reports whether the response was streamed.
	Streamed bool

	// Origin is the caller's Origin header, when present.
	Origin string
}

// StorageError indicates a request log storage failure.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("request log %s failed: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}
