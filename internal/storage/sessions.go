package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/garyellow/tamly-chatbot-go/internal/conversation"
	apperrors "github.com/garyellow/tamly-chatbot-go/internal/errors"
)

var _ conversation.SessionStore = (*DB)(nil)

// Get loads a session by id.
func (db *DB) Get(ctx context.Context, id string) (*conversation.Session, error) {
	var data string
	err := db.conn.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	s, err := conversation.UnmarshalSession([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return s, nil
}

// Save inserts or replaces a session.
func (db *DB) Save(ctx context.Context, s *conversation.Session) error {
	data, err := conversation.MarshalSession(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	query := `
	INSERT INTO sessions (id, data, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`
	if _, err := db.conn.ExecContext(ctx, query, s.ID, string(data), updated.Unix()); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes a session. Unknown ids are ignored.
func (db *DB) Delete(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Count returns the number of stored sessions.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// DeleteIdleSessions removes sessions not updated since before and returns
// how many were removed.
func (db *DB) DeleteIdleSessions(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete idle sessions: %w", err)
	}
	return res.RowsAffected()
}
