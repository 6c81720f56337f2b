package analysis

import "context"

// SessionStore port: persists the single active session under a well-known key.
// The single-active-session invariant is enforced at this write boundary, not
// by callers holding locks.
type SessionStore interface {
	// Activate claims the active slot for s. Returns ErrSessionActive if the
	// stored session is still running or synthesizing.
	Activate(ctx context.Context, s *Session) error
	// Save overwrites the stored session on a state transition.
	Save(ctx context.Context, s *Session) error
	// Load returns the stored session, or nil when the slot is empty.
	Load(ctx context.Context) (*Session, error)
	// Clear empties the slot.
	Clear(ctx context.Context) error
}

// Publisher port: pushes lifecycle events to connected observers.
// Delivery is at-most-once and best-effort; the persisted session is the
// source of truth, not the event stream.
type Publisher interface {
	Publish(ev Event)
}
