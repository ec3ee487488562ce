// ABOUTME: Tests for the asynchronous audit recorder
// ABOUTME: Covers background writes, attribution and failure counting

package auth

import (
	"context"
	"testing"

	"github.com/2389/warden/internal/store"
)

func TestRecorder_Record(t *testing.T) {
	s := newAuthTestStore(t)
	recorder := NewRecorder(s, testLogger())

	userID := int64(42)
	recorder.Record(&userID, store.AuditLoginSuccess, "test detail", "10.0.0.1")
	recorder.Record(nil, store.AuditLoginFailed, "username: ghost", "10.0.0.2")
	recorder.Flush()

	entries, err := s.ListAuditLog(context.Background(), store.AuditFilter{})
	if err != nil {
		t.Fatalf("ListAuditLog failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	byAction := make(map[store.AuditAction]store.AuditEntry)
	for _, e := range entries {
		byAction[e.Action] = e
	}

	success, ok := byAction[store.AuditLoginSuccess]
	if !ok {
		t.Fatal("login_success entry missing")
	}
	if success.UserID == nil || *success.UserID != userID {
		t.Errorf("success UserID = %v, want %d", success.UserID, userID)
	}
	if success.IP != "10.0.0.1" {
		t.Errorf("success IP = %q", success.IP)
	}

	failed, ok := byAction[store.AuditLoginFailed]
	if !ok {
		t.Fatal("login_failed entry missing")
	}
	if failed.UserID != nil {
		t.Errorf("failed UserID should be nil, got %v", *failed.UserID)
	}

	if recorder.Failures() != 0 {
		t.Errorf("Failures = %d, want 0", recorder.Failures())
	}
}

func TestRecorder_FailureIsCountedNotPropagated(t *testing.T) {
	s := newAuthTestStore(t)
	recorder := NewRecorder(s, testLogger())

	// A closed store makes every write fail
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	recorder.Record(nil, store.AuditLoginFailed, "", "")
	recorder.Flush()

	if recorder.Failures() != 1 {
		t.Errorf("Failures = %d, want 1", recorder.Failures())
	}
}
