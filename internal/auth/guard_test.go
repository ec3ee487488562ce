// ABOUTME: Tests for the policy-gating HTTP middleware
// ABOUTME: Covers enforcement on/off, bearer extraction and identity attachment

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestGuard(t *testing.T) (*Guard, *SecurityPolicy, *TokenService) {
	t.Helper()

	s := newAuthTestStore(t)
	policy := NewSecurityPolicy(s, testLogger())
	tokens := newTestTokenService(t)
	return NewGuard(policy, tokens, testLogger()), policy, tokens
}

// identityEcho records the identity the guard attached.
func identityEcho(got **Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		wantToken string
		wantErr   string
	}{
		{
			name:    "missing header",
			header:  "",
			wantErr: "missing authorization header",
		},
		{
			name:    "wrong scheme",
			header:  "Basic dXNlcjpwYXNz",
			wantErr: "invalid authorization header format",
		},
		{
			name:    "empty token",
			header:  "Bearer ",
			wantErr: "empty token",
		},
		{
			name:      "valid",
			header:    "Bearer abc123",
			wantToken: "abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, errMsg := extractBearerToken(tt.header)
			if token != tt.wantToken {
				t.Errorf("token = %q, want %q", token, tt.wantToken)
			}
			if errMsg != tt.wantErr {
				t.Errorf("errMsg = %q, want %q", errMsg, tt.wantErr)
			}
		})
	}
}

func TestGuard_EnforcementOffAdmitsAnonymous(t *testing.T) {
	guard, _, _ := newTestGuard(t)

	var got *Identity
	handler := guard.Middleware(identityEcho(&got))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got != nil {
		t.Errorf("identity should be nil for anonymous request, got %+v", got)
	}
}

func TestGuard_EnforcementOnRejectsAnonymous(t *testing.T) {
	guard, policy, _ := newTestGuard(t)

	if err := policy.Set(context.Background(), true, false, nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got *Identity
	handler := guard.Middleware(identityEcho(&got))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Errorf("WWW-Authenticate = %q, want %q", rec.Header().Get("WWW-Authenticate"), "Bearer")
	}
}

func TestGuard_EnforcementOnAdmitsValidToken(t *testing.T) {
	guard, policy, tokens := newTestGuard(t)

	if err := policy.Set(context.Background(), true, false, nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	token, err := tokens.IssueAccess(42, "alice")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	var got *Identity
	handler := guard.Middleware(identityEcho(&got))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil {
		t.Fatal("identity should be attached")
	}
	if got.UserID != 42 || got.Username != "alice" {
		t.Errorf("identity = %+v, want UserID=42 Username=alice", got)
	}
}

func TestGuard_RefreshTokenRejected(t *testing.T) {
	guard, policy, tokens := newTestGuard(t)

	if err := policy.Set(context.Background(), true, false, nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// A refresh token must not grant access
	refresh, err := tokens.IssueRefresh(42, "alice")
	if err != nil {
		t.Fatalf("IssueRefresh failed: %v", err)
	}

	var got *Identity
	handler := guard.Middleware(identityEcho(&got))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestGuard_EnforcementOffStillAttachesIdentity(t *testing.T) {
	guard, _, tokens := newTestGuard(t)

	token, err := tokens.IssueAccess(42, "alice")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	var got *Identity
	handler := guard.Middleware(identityEcho(&got))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got == nil || got.UserID != 42 {
		t.Errorf("identity should be attached even with enforcement off, got %+v", got)
	}
}

func TestGuard_Optional(t *testing.T) {
	guard, policy, tokens := newTestGuard(t)

	if err := policy.Set(context.Background(), true, false, nil); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	var got *Identity
	handler := guard.Optional(identityEcho(&got))

	// Anonymous request passes even with enforcement on
	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("anonymous status = %d, want 200", rec.Code)
	}
	if got != nil {
		t.Errorf("identity should be nil, got %+v", got)
	}

	// Valid token gets attributed
	token, err := tokens.IssueAccess(7, "bob")
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d, want 200", rec.Code)
	}
	if got == nil || got.Username != "bob" {
		t.Errorf("identity should be attached, got %+v", got)
	}
}

func TestIdentityContext(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("FromContext on empty context should return nil")
	}

	id := &Identity{UserID: 1, Username: "alice"}
	ctx := WithIdentity(context.Background(), id)
	if got := FromContext(ctx); got != id {
		t.Errorf("FromContext = %+v, want %+v", got, id)
	}
}
