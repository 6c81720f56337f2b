package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/aydenden/companylens/internal/domain/analysis"
)

const slotKey = "active"

// SessionRepository is the PostgreSQL variant of the active-session slot.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Activate(ctx context.Context, s *domain.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM analysis_session WHERE slot=$1 FOR UPDATE;`, slotKey,
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

func (r *SessionRepository) Save(ctx context.Context, s *domain.Session) error {
	return upsertSession(ctx, r.db, s)
}

func (r *SessionRepository) Load(ctx context.Context) (*domain.Session, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM analysis_session WHERE slot=$1 LIMIT 1;`, slotKey,
	).Scan(&data)
	if err != nil {
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
	_, err := r.db.ExecContext(ctx, `DELETE FROM analysis_session WHERE slot=$1;`, slotKey)
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
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (slot) DO UPDATE SET
  session_id=EXCLUDED.session_id, status=EXCLUDED.status, data=EXCLUDED.data, updated_at=EXCLUDED.updated_at;
`
	_, err = ex.ExecContext(ctx, q, slotKey, s.ID, s.Status, data, time.Now())
	return err
}
