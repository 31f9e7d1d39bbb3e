package storage

import (
	"context"
	"fmt"
	"time"

	domerrors "github.com/garyellow/messenger-bot-go/internal/errors"
)

// ArchiveSession stores an ended session. Archiving the same id twice keeps
// the first record.
func (db *DB) ArchiveSession(ctx context.Context, s *ArchivedSession) error {
	if s == nil || s.ID == "" {
		return domerrors.NewValidationError("id", "must not be empty")
	}
	query := `
		INSERT INTO session_archive (id, user_id, state, replaced, snapshot, started_at, ended_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	s.ArchivedAt = time.Now().Unix()
	_, err := db.conn.ExecContext(ctx, query,
		s.ID, s.UserID, s.State, s.Replaced, string(s.Snapshot), s.StartedAt, s.EndedAt, s.ArchivedAt)
	if err != nil {
		return fmt.Errorf("failed to archive session %s: %w", s.ID, err)
	}
	return nil
}

// ListArchivedSessions returns the most recently ended sessions of userID,
// or of all users when userID is empty.
func (db *DB) ListArchivedSessions(ctx context.Context, userID string, limit int) ([]ArchivedSession, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, state, replaced, snapshot, started_at, ended_at, archived_at
		FROM session_archive
		WHERE (? = '' OR user_id = ?)
		ORDER BY ended_at DESC, archived_at DESC
		LIMIT ?
	`
	rows, err := db.conn.QueryContext(ctx, query, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query archived sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []ArchivedSession
	for rows.Next() {
		var s ArchivedSession
		var snapshot string
		if err := rows.Scan(&s.ID, &s.UserID, &s.State, &s.Replaced, &snapshot,
			&s.StartedAt, &s.EndedAt, &s.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan archived session: %w", err)
		}
		s.Snapshot = []byte(snapshot)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// DeleteArchivedSessionsBefore removes sessions that ended before cutoff.
func (db *DB) DeleteArchivedSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM session_archive WHERE ended_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete archived sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for session_archive: %w", err)
	}
	return n, nil
}
