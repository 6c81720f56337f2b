package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/aydenden/companylens/internal/domain/analysis"
)

// slotKey is the well-known key of the single active-session row.
const slotKey = "active"

// SessionRepository persists the active analysis session as one row keyed by
// a fixed slot. The single-active-session invariant is enforced here with a
// row lock rather than by callers.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Activate claims the slot for s, failing with ErrSessionActive when the
// stored session is still live. The check-and-write runs inside one
// transaction holding the slot row lock, so concurrent starts serialize.
func (r *SessionRepository) Activate(ctx context.Context, s *domain.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM analysis_session WHERE slot=? FOR UPDATE;`, slotKey,
	).Scan(&status)
	switch {
	case err == sql.ErrNoRows:
		// slot empty
	case err != nil:
		return err
	case domain.Status(status) == domain.StatusRunning || domain.Status(status) == domain.StatusSynthesizing:
		return domain.ErrSessionActive
	}

	if err := upsertSession(ctx, tx, s); err != nil {
		return err
	}
	return tx.Commit()
}

// Save overwrites the slot unconditionally; used for transitions of the
// session that already owns it.
func (r *SessionRepository) Save(ctx context.Context, s *domain.Session) error {
	return upsertSession(ctx, r.db, s)
}

func (r *SessionRepository) Load(ctx context.Context) (*domain.Session, error) {
	const q = `SELECT data FROM analysis_session WHERE slot=? LIMIT 1;`
	var data []byte
	if err := r.db.QueryRowContext(ctx, q, slotKey).Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("corrupt session record: %w", err)
	}
	return &s, nil
}

func (r *SessionRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM analysis_session WHERE slot=?;`, slotKey)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSession(ctx context.Context, ex execer, s *domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO analysis_session (slot, session_id, status, data, updated_at)
VALUES (?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 session_id=VALUES(session_id), status=VALUES(status), data=VALUES(data), updated_at=VALUES(updated_at);
`
	_, err = ex.ExecContext(ctx, q, slotKey, s.ID, s.Status, data, time.Now())
	return err
}
