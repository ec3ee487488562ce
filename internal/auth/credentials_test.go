// ABOUTME: Tests for credential creation and verification
// ABOUTME: Covers salted hashing, login misses, inactive users and password updates

package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/warden/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	return s
}

// MinCost keeps the bcrypt work factor cheap in tests.
func newTestCredentialStore(t *testing.T) (*CredentialStore, *store.SQLiteStore) {
	t.Helper()

	s := newAuthTestStore(t)
	return NewCredentialStore(s, testLogger(), bcrypt.MinCost, 2), s
}

func TestCredentialStore_CreateAndVerify(t *testing.T) {
	creds, _ := newTestCredentialStore(t)
	ctx := context.Background()

	id, err := creds.Create(ctx, "alice", "correct horse battery", "alice@example.com", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == 0 {
		t.Fatal("Create returned zero ID")
	}

	user, err := creds.Verify(ctx, "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if user.ID != id {
		t.Errorf("ID mismatch: got %d, want %d", user.ID, id)
	}
	if user.LastLogin == nil {
		t.Error("LastLogin should be set after a successful login")
	}
}

func TestCredentialStore_PasswordIsSaltedAndHashed(t *testing.T) {
	creds, s := newTestCredentialStore(t)
	ctx := context.Background()

	if _, err := creds.Create(ctx, "alice", "hunter22", "", false); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	user, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}

	if user.PasswordHash == "hunter22" {
		t.Fatal("password stored in plaintext")
	}
	if user.Salt == "" {
		t.Fatal("salt should be set")
	}
	// The hash covers password+salt, so the bare password must not match
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter22")) == nil {
		t.Error("hash verifies without the salt, salting is broken")
	}
}

func TestCredentialStore_VerifyWrongPassword(t *testing.T) {
	creds, _ := newTestCredentialStore(t)
	ctx := context.Background()

	if _, err := creds.Create(ctx, "alice", "hunter22", "", false); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := creds.Verify(ctx, "alice", "wrong-password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCredentialStore_VerifyUnknownUser(t *testing.T) {
	creds, _ := newTestCredentialStore(t)

	_, err := creds.Verify(context.Background(), "nobody", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCredentialStore_VerifyInactiveUser(t *testing.T) {
	creds, s := newTestCredentialStore(t)
	ctx := context.Background()

	id, err := creds.Create(ctx, "alice", "hunter22", "", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.DeactivateUser(ctx, id); err != nil {
		t.Fatalf("DeactivateUser failed: %v", err)
	}

	// Same error as a wrong password; the reason must not leak
	_, err = creds.Verify(ctx, "alice", "hunter22")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCredentialStore_DuplicateUsername(t *testing.T) {
	creds, _ := newTestCredentialStore(t)
	ctx := context.Background()

	if _, err := creds.Create(ctx, "alice", "hunter22", "", false); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := creds.Create(ctx, "alice", "other-password", "", false)
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestCredentialStore_UpdatePassword(t *testing.T) {
	creds, s := newTestCredentialStore(t)
	ctx := context.Background()

	id, err := creds.Create(ctx, "alice", "old-password", "", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	before, err := s.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}

	if err := creds.UpdatePassword(ctx, id, "new-password"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}

	after, err := s.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if after.Salt == before.Salt {
		t.Error("salt should be regenerated on password change")
	}

	if _, err := creds.Verify(ctx, "alice", "old-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("old password should no longer verify, got %v", err)
	}
	if _, err := creds.Verify(ctx, "alice", "new-password"); err != nil {
		t.Errorf("new password should verify, got %v", err)
	}
}
