package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/markdave123/contexta/backend/internal/model/chat"
)

var (
	ErrInvalidRole  = errors.New("role must be user, assistant, or system")
	ErrEmptyMessage = errors.New("message is required")
	ErrUnknownUser  = errors.New("user does not exist")
	ErrNoTurns      = errors.New("session has no turns")
)

// AppendTurn writes one turn and returns it with id and timestamp assigned.
// The timestamp is clamped to stay strictly after the previous turn of the
// same session, so transcript order and timestamp order always agree.
// Callers appending to the same session concurrently must serialize (the
// chat service holds a per-session lock around this).
func (s *Store) AppendTurn(ctx context.Context, sessionID string, userID *string, role chat.Role, message string) (chat.Turn, error) {
	if !role.Valid() {
		return chat.Turn{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if message == "" {
		return chat.Turn{}, ErrEmptyMessage
	}
	if sessionID == "" {
		return chat.Turn{}, errors.New("session id is required")
	}

	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM chat_history WHERE session_id = ?`, sessionID,
	).Scan(&last)
	if err != nil {
		return chat.Turn{}, fmt.Errorf("failed to read session tail: %w", err)
	}

	ts := time.Now().UTC().UnixNano()
	if last.Valid && ts <= last.Int64 {
		ts = last.Int64 + 1
	}

	turn := chat.Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		Message:   message,
		CreatedAt: time.Unix(0, ts).UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chat_history (id, session_id, user_id, message, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.SessionID, turn.UserID, turn.Message, string(turn.Role), ts,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return chat.Turn{}, fmt.Errorf("%w: %s", ErrUnknownUser, derefOrAnon(userID))
		}
		return chat.Turn{}, fmt.Errorf("failed to append turn: %w", err)
	}

	return turn, nil
}

// Turns returns the session transcript oldest-to-newest. A positive limit
// keeps only the newest limit turns; a non-zero before excludes turns at or
// after that instant. An unknown session yields an empty slice.
func (s *Store) Turns(ctx context.Context, sessionID string, limit int, before time.Time) ([]chat.Turn, error) {
	query := `SELECT id, session_id, user_id, message, role, created_at FROM chat_history WHERE session_id = ?`
	args := []any{sessionID}
	if !before.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, before.UnixNano())
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	defer rows.Close()

	var turns []chat.Turn
	for rows.Next() {
		var (
			t      chat.Turn
			userID sql.NullString
			ts     int64
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &userID, &t.Message, (*string)(&t.Role), &ts); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if userID.Valid {
			t.UserID = &userID.String
		}
		t.CreatedAt = time.Unix(0, ts).UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	// Rows came back newest-first so LIMIT keeps the suffix; restore
	// chronological order for callers.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// TurnsStrict behaves like Turns but fails with ErrNoTurns when the session
// has never been written to.
func (s *Store) TurnsStrict(ctx context.Context, sessionID string, limit int, before time.Time) ([]chat.Turn, error) {
	turns, err := s.Turns(ctx, sessionID, limit, before)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTurns, sessionID)
	}
	return turns, nil
}

// Owner returns the user id on the session's first turn. The second return
// reports whether the session exists at all; a nil id with true means the
// session is anonymous.
func (s *Store) Owner(ctx context.Context, sessionID string) (*string, bool, error) {
	var userID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM chat_history WHERE session_id = ? ORDER BY created_at ASC LIMIT 1`, sessionID,
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve session owner: %w", err)
	}
	if !userID.Valid {
		return nil, true, nil
	}
	return &userID.String, true, nil
}

func derefOrAnon(id *string) string {
	if id == nil {
		return "<anonymous>"
	}
	return *id
}
