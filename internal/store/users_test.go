// ABOUTME: Tests for user persistence
// ABOUTME: Covers creation, duplicate usernames, lookups, password updates and deactivation

package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func createTestUser(t *testing.T, store *SQLiteStore, username string) int64 {
	t.Helper()

	id, err := store.CreateUser(context.Background(), &User{
		Username:     username,
		PasswordHash: "$2a$10$fakehashfortesting",
		Salt:         "deadbeef",
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return id
}

func TestCreateAndGetUser(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	id, err := store.CreateUser(ctx, &User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$10$fakehashfortesting",
		Salt:         "deadbeef",
		IsActive:     true,
		IsAdmin:      true,
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if id == 0 {
		t.Fatal("CreateUser returned zero ID")
	}

	got, err := store.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}

	if got.ID != id {
		t.Errorf("ID mismatch: got %d, want %d", got.ID, id)
	}
	if got.Username != "alice" {
		t.Errorf("Username mismatch: got %q", got.Username)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("Email mismatch: got %q", got.Email)
	}
	if !got.IsActive {
		t.Error("IsActive should be true")
	}
	if !got.IsAdmin {
		t.Error("IsAdmin should be true")
	}
	if got.LastLogin != nil {
		t.Error("LastLogin should be nil for a new user")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestCreateUser_WithoutEmail(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	id := createTestUser(t, store, "bob")

	got, err := store.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.Email != "" {
		t.Errorf("Email should be empty, got %q", got.Email)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	createTestUser(t, store, "alice")

	_, err := store.CreateUser(context.Background(), &User{
		Username:     "alice",
		PasswordHash: "$2a$10$otherhash",
		Salt:         "cafebabe",
		IsActive:     true,
	})
	if !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	if _, err := store.GetUserByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByUsername: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetUserByID(ctx, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByID: expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePassword(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	id := createTestUser(t, store, "alice")

	if err := store.UpdatePassword(ctx, id, "$2a$10$newhash", "feedface"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}

	got, err := store.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.PasswordHash != "$2a$10$newhash" {
		t.Errorf("PasswordHash not updated: got %q", got.PasswordHash)
	}
	if got.Salt != "feedface" {
		t.Errorf("Salt not updated: got %q", got.Salt)
	}
}

func TestUpdatePassword_UnknownUser(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	err := store.UpdatePassword(context.Background(), 9999, "$2a$10$hash", "salt")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTouchLastLogin(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	id := createTestUser(t, store, "alice")

	when := time.Now().UTC().Truncate(time.Second)
	if err := store.TouchLastLogin(ctx, id, when); err != nil {
		t.Fatalf("TouchLastLogin failed: %v", err)
	}

	got, err := store.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.LastLogin == nil {
		t.Fatal("LastLogin should be set")
	}
	if !got.LastLogin.Equal(when) {
		t.Errorf("LastLogin mismatch: got %v, want %v", got.LastLogin, when)
	}
}

func TestDeactivateUser(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	id := createTestUser(t, store, "alice")

	if err := store.DeactivateUser(ctx, id); err != nil {
		t.Fatalf("DeactivateUser failed: %v", err)
	}

	got, err := store.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.IsActive {
		t.Error("IsActive should be false after deactivation")
	}
}

func TestCountUsers(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	count, err := store.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 users, got %d", count)
	}

	createTestUser(t, store, "alice")
	createTestUser(t, store, "bob")

	count, err = store.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 users, got %d", count)
	}
}
