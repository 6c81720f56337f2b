package ai

import "errors"

// Sentinel errors for model client operations
var (
	// ErrNotRunning indicates no model server is reachable at the configured endpoint.
	ErrNotRunning = errors.New("model server not running")
	// ErrTimeout indicates a call exceeded its wall-clock budget.
	ErrTimeout = errors.New("model call timed out")
	// ErrRequestFailed indicates the model server returned a non-success status.
	ErrRequestFailed = errors.New("model request failed")
	// ErrQuotaExceeded indicates the provider returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded = errors.New("ai quota exceeded")
)
