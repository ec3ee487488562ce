// ABOUTME: User persistence methods for the SQLite store
// ABOUTME: Handles account creation, lookup, password updates and deactivation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateUser inserts a new user row and returns its id.
// Returns ErrDuplicateUsername if the username is already taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) (int64, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	var email *string
	if user.Email != "" {
		email = &user.Email
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, salt, is_active, is_admin, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Username,
		email,
		user.PasswordHash,
		user.Salt,
		user.IsActive,
		user.IsAdmin,
		formatTime(user.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, ErrDuplicateUsername
		}
		return 0, fmt.Errorf("inserting user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading user id: %w", err)
	}
	user.ID = id

	s.logger.Info("created user", "id", id, "username", user.Username)
	return id, nil
}

const userColumns = "id, username, email, password_hash, salt, is_active, is_admin, created_at, last_login"

// GetUserByUsername fetches a user by exact (case-sensitive) username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username)
	return scanUser(row)
}

// GetUserByID fetches a user by id.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

// UpdatePassword overwrites the stored hash and salt for a user.
// Existing sessions remain valid; revoking them is not part of the contract.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, userID int64, passwordHash, salt string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, salt = ? WHERE id = ?",
		passwordHash, salt, userID)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return requireRowAffected(res)
}

// TouchLastLogin records a successful login time.
func (s *SQLiteStore) TouchLastLogin(ctx context.Context, userID int64, when time.Time) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_login = ? WHERE id = ?",
		formatTime(when), userID)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return requireRowAffected(res)
}

// DeactivateUser flips the is_active flag off. User rows are never deleted.
func (s *SQLiteStore) DeactivateUser(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET is_active = 0 WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("deactivating user: %w", err)
	}
	return requireRowAffected(res)
}

// CountUsers returns the total number of user rows, active or not.
// The setup endpoint uses this to decide whether bootstrap is still open.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// scanUser scans a single user row.
func scanUser(row *sql.Row) (*User, error) {
	var u User
	var email sql.NullString
	var createdAt string
	var lastLogin sql.NullString

	err := row.Scan(
		&u.ID,
		&u.Username,
		&email,
		&u.PasswordHash,
		&u.Salt,
		&u.IsActive,
		&u.IsAdmin,
		&createdAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	if email.Valid {
		u.Email = email.String
	}

	u.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	if lastLogin.Valid {
		t, err := parseTime(lastLogin.String)
		if err != nil {
			return nil, err
		}
		u.LastLogin = &t
	}

	return &u, nil
}

// requireRowAffected maps zero-row updates to ErrNotFound.
func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
