// ABOUTME: Session (refresh token) persistence methods for the SQLite store
// ABOUTME: Rows are appended at login and evicted lazily when found expired

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveSession appends a new session row. Prior sessions for the same user are
// left untouched; concurrent logins produce independent rows.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, refresh_token, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		session.UserID,
		session.RefreshToken,
		formatTime(session.ExpiresAt),
		formatTime(session.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateSession
		}
		return fmt.Errorf("inserting session: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading session id: %w", err)
	}
	session.ID = id
	return nil
}

// VerifySession looks up a refresh token and returns the owning user id if it
// is still live. A row found past its expiry is deleted on the spot and
// ErrNotFound is returned; there is no background sweep.
func (s *SQLiteStore) VerifySession(ctx context.Context, refreshToken string) (int64, error) {
	var userID int64
	var expiresAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM sessions WHERE refresh_token = ?",
		refreshToken).Scan(&userID, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("querying session: %w", err)
	}

	expiry, err := parseTime(expiresAt)
	if err != nil {
		return 0, err
	}

	if !expiry.After(time.Now().UTC()) {
		// Lazy eviction: drop the expired row while we're here
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM sessions WHERE refresh_token = ?", refreshToken); err != nil {
			s.logger.Warn("evicting expired session", "error", err)
		}
		return 0, ErrNotFound
	}

	return userID, nil
}

// DeleteSession removes a session row by refresh token.
// Returns ErrNotFound if no such session exists.
func (s *SQLiteStore) DeleteSession(ctx context.Context, refreshToken string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE refresh_token = ?", refreshToken)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return requireRowAffected(res)
}
