// ABOUTME: Credential storage and verification with salted bcrypt hashing
// ABOUTME: Hashing runs through a bounded semaphore so it cannot starve request serving

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/2389/warden/internal/store"
)

// ErrInvalidCredentials is returned for every verification miss: unknown
// username, deactivated account, or wrong password. Callers must not
// distinguish these cases in responses to avoid username enumeration.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUsernameTaken is returned when creating a user whose username exists.
var ErrUsernameTaken = errors.New("username already taken")

// saltBytes is the entropy of each per-user salt before hex encoding.
const saltBytes = 32

// dummyHash is a bcrypt hash compared against on miss paths so that lookups
// for unknown or inactive users take as long as a real password check.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// CredentialStore creates users and verifies passwords. Passwords are
// combined with a fresh per-user salt and hashed with bcrypt at the
// configured cost.
type CredentialStore struct {
	store   store.Store
	logger  *slog.Logger
	cost    int
	hashSem *semaphore.Weighted
}

// NewCredentialStore constructs a CredentialStore. maxConcurrent bounds the
// number of bcrypt computations in flight; zero or negative means 4.
func NewCredentialStore(s store.Store, logger *slog.Logger, cost, maxConcurrent int) *CredentialStore {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &CredentialStore{
		store:   s,
		logger:  logger.With("component", "credentials"),
		cost:    cost,
		hashSem: semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

// Create registers a new user and returns its id.
// Returns ErrUsernameTaken if the username already exists.
func (c *CredentialStore) Create(ctx context.Context, username, password, email string, isAdmin bool) (int64, error) {
	salt, err := generateSalt()
	if err != nil {
		return 0, err
	}

	hash, err := c.hashPassword(ctx, password, salt)
	if err != nil {
		return 0, err
	}

	user := &store.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Salt:         salt,
		IsActive:     true,
		IsAdmin:      isAdmin,
	}

	id, err := c.store.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			return 0, ErrUsernameTaken
		}
		return 0, fmt.Errorf("creating user: %w", err)
	}
	return id, nil
}

// Verify checks a username/password pair and returns the user on success,
// updating last_login. Every miss returns ErrInvalidCredentials; the reason
// (unknown user, inactive, wrong password) appears only in debug logs.
func (c *CredentialStore) Verify(ctx context.Context, username, password string) (*store.User, error) {
	user, err := c.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a comparison to keep timing flat for unknown usernames
			c.compareDummy(ctx, password)
			c.logger.Debug("login miss", "reason", "unknown username")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if !user.IsActive {
		c.compareDummy(ctx, password)
		c.logger.Debug("login miss", "reason", "inactive user", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	if err := c.comparePassword(ctx, user.PasswordHash, password, user.Salt); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			c.logger.Debug("login miss", "reason", "wrong password", "user_id", user.ID)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now().UTC()
	if err := c.store.TouchLastLogin(ctx, user.ID, now); err != nil {
		// Login stands even if the bookkeeping write fails
		c.logger.Warn("updating last login", "user_id", user.ID, "error", err)
	}
	user.LastLogin = &now

	return user, nil
}

// UpdatePassword generates a new salt and overwrites hash and salt.
// Existing sessions are intentionally left valid.
func (c *CredentialStore) UpdatePassword(ctx context.Context, userID int64, newPassword string) error {
	salt, err := generateSalt()
	if err != nil {
		return err
	}

	hash, err := c.hashPassword(ctx, newPassword, salt)
	if err != nil {
		return err
	}

	if err := c.store.UpdatePassword(ctx, userID, hash, salt); err != nil {
		return fmt.Errorf("storing password: %w", err)
	}

	c.logger.Info("password updated", "user_id", userID)
	return nil
}

// hashPassword computes bcrypt(password+salt) under the concurrency bound.
func (c *CredentialStore) hashPassword(ctx context.Context, password, salt string) (string, error) {
	if err := c.hashSem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for hash slot: %w", err)
	}
	defer c.hashSem.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(password+salt), c.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// comparePassword checks bcrypt(password+salt) against the stored hash under
// the concurrency bound.
func (c *CredentialStore) comparePassword(ctx context.Context, hash, password, salt string) error {
	if err := c.hashSem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for hash slot: %w", err)
	}
	defer c.hashSem.Release(1)

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password+salt))
}

// compareDummy performs a comparison against a fixed hash so miss paths cost
// the same as hit paths.
func (c *CredentialStore) compareDummy(ctx context.Context, password string) {
	_ = c.comparePassword(ctx, dummyHash, password, "")
}

// generateSalt returns a fresh hex-encoded salt with saltBytes of entropy.
func generateSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
