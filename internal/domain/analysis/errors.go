package analysis

import "errors"

var (
	// ErrSessionActive indicates a start was requested while a session is running or synthesizing.
	ErrSessionActive = errors.New("analysis session already active")
	// ErrNoSession indicates a cancel was requested with no active session.
	ErrNoSession = errors.New("no active analysis session")
	// ErrNoImages indicates a start was requested for a company with nothing to analyze.
	ErrNoImages = errors.New("company has no captured images")
	// ErrNoUsableResults indicates every per-image call failed, so synthesis cannot run.
	ErrNoUsableResults = errors.New("no images produced usable results")
	// ErrSchema indicates a well-formed payload that does not match the expected shape.
	ErrSchema = errors.New("payload does not match expected schema")
)
