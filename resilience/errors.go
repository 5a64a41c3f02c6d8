package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrMaxRetriesExceeded wraps the last error once every attempt failed.
	ErrMaxRetriesExceeded = errors.New("resilience: max retries exceeded")

	// ErrBulkheadFull is returned when no request slot frees up in time.
	ErrBulkheadFull = errors.New("resilience: too many concurrent requests")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")
)
