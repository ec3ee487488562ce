// ABOUTME: HTTP JSON handlers for the authentication surface
// ABOUTME: Implements login, refresh, status, setup, settings, register, logout and password change

package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/2389/warden/internal/auth"
	"github.com/2389/warden/internal/store"
)

// Username validation regex: alphanumeric with optional _ or -, 3-50 characters
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{2,49}$`)

// loginRequest is the JSON request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// refreshRequest is the JSON request body for POST /auth/refresh and /auth/logout.
type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// registerRequest is the JSON request body for POST /auth/register and /auth/setup.
type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=8"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

// settingsRequest is the JSON request body for PUT /auth/settings.
type settingsRequest struct {
	AuthEnabled        bool `json:"auth_enabled"`
	RequireWebhookAuth bool `json:"require_webhook_auth"`
}

// passwordRequest is the JSON request body for PUT /auth/password.
type passwordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// tokenResponse is the JSON response for successful login, refresh and setup.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Message      string `json:"message,omitempty"`
}

// statusResponse is the JSON response for GET /auth/status and PUT /auth/settings.
type statusResponse struct {
	AuthEnabled        bool `json:"auth_enabled"`
	RequireWebhookAuth bool `json:"require_webhook_auth"`
}

// registerResponse is the JSON response for POST /auth/register.
type registerResponse struct {
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

// handleLogin handles POST /auth/login.
// Bad credentials always produce the same 401 body, whatever the cause.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := s.creds.Verify(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.audit.Record(nil, store.AuditLoginFailed, "username: "+req.Username, clientIP(r))
			s.sendJSONError(w, http.StatusUnauthorized, "invalid username or password")
			return
		}
		s.internalError(w, "verifying credentials", err)
		return
	}

	resp, err := s.issueTokens(r, user.ID, user.Username)
	if err != nil {
		s.internalError(w, "issuing tokens", err)
		return
	}

	s.audit.Record(&user.ID, store.AuditLoginSuccess, "", clientIP(r))
	s.writeJSON(w, http.StatusOK, resp)
}

// handleRefresh handles POST /auth/refresh.
// A valid refresh token yields a new access token; the refresh token itself
// is returned unchanged and stays valid until its own expiry.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	userID, err := s.store.VerifySession(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		s.internalError(w, "verifying session", err)
		return
	}

	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		s.internalError(w, "loading user", err)
		return
	}

	access, err := s.tokens.IssueAccess(user.ID, user.Username)
	if err != nil {
		s.internalError(w, "issuing access token", err)
		return
	}

	s.audit.Record(&user.ID, store.AuditTokenRefreshed, "", clientIP(r))
	s.writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: req.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.AccessTTL().Seconds()),
	})
}

// handleStatus handles GET /auth/status. Public by contract.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	settings, err := s.policy.Get(r.Context())
	if err != nil {
		s.internalError(w, "reading policy", err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		AuthEnabled:        settings.AuthEnabled,
		RequireWebhookAuth: settings.RequireWebhookAuth,
	})
}

// handleSetup handles POST /auth/setup: the single-use bootstrap path.
// It creates the first admin user and turns enforcement on. Once any user
// row exists the endpoint is closed for good.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if !usernameRegex.MatchString(req.Username) {
		s.sendJSONError(w, http.StatusBadRequest, "username must be alphanumeric with optional _ or -")
		return
	}

	count, err := s.store.CountUsers(r.Context())
	if err != nil {
		s.internalError(w, "counting users", err)
		return
	}
	if count > 0 {
		s.sendJSONError(w, http.StatusBadRequest, auth.ErrSetupAlreadyComplete.Error()+", use the login endpoint")
		return
	}

	userID, err := s.creds.Create(r.Context(), req.Username, req.Password, req.Email, true)
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			s.sendJSONError(w, http.StatusBadRequest, auth.ErrSetupAlreadyComplete.Error()+", use the login endpoint")
			return
		}
		s.internalError(w, "creating first user", err)
		return
	}

	if err := s.policy.Set(r.Context(), true, false, &auth.Identity{UserID: userID, Username: req.Username}); err != nil {
		s.internalError(w, "enabling authentication", err)
		return
	}

	resp, err := s.issueTokens(r, userID, req.Username)
	if err != nil {
		s.internalError(w, "issuing tokens", err)
		return
	}
	resp.Message = "authentication configured successfully"

	s.audit.Record(&userID, store.AuditSetupCompleted, "username: "+req.Username, clientIP(r))
	s.writeJSON(w, http.StatusOK, resp)
}

// handleSettings handles PUT /auth/settings.
// Disabling enforcement requires an authenticated principal; the guard has
// already rejected anonymous callers whenever enforcement is on.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	actor := auth.FromContext(r.Context())
	if err := s.policy.Set(r.Context(), req.AuthEnabled, req.RequireWebhookAuth, actor); err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			s.sendJSONError(w, http.StatusUnauthorized, "must be authenticated to disable authentication")
			return
		}
		s.internalError(w, "updating settings", err)
		return
	}

	var actorID *int64
	if actor != nil {
		actorID = &actor.UserID
	}
	s.audit.Record(actorID, store.AuditSettingsUpdated,
		"auth_enabled: "+boolString(req.AuthEnabled)+", require_webhook_auth: "+boolString(req.RequireWebhookAuth),
		clientIP(r))

	s.writeJSON(w, http.StatusOK, statusResponse{
		AuthEnabled:        req.AuthEnabled,
		RequireWebhookAuth: req.RequireWebhookAuth,
	})
}

// handleRegister handles POST /auth/register. The guard enforces the policy:
// with authentication on only authenticated callers reach this handler.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}
	if !usernameRegex.MatchString(req.Username) {
		s.sendJSONError(w, http.StatusBadRequest, "username must be alphanumeric with optional _ or -")
		return
	}

	userID, err := s.creds.Create(r.Context(), req.Username, req.Password, req.Email, false)
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			s.sendJSONError(w, http.StatusBadRequest, "username already exists")
			return
		}
		s.internalError(w, "creating user", err)
		return
	}

	var actorID *int64
	if actor := auth.FromContext(r.Context()); actor != nil {
		actorID = &actor.UserID
	}
	s.audit.Record(actorID, store.AuditUserCreated, "created user: "+req.Username, clientIP(r))

	s.writeJSON(w, http.StatusCreated, registerResponse{
		UserID:  userID,
		Message: "user created successfully",
	})
}

// handleLogout handles POST /auth/logout: an explicit revocation extension.
// Possession of the refresh token is the credential; the row is deleted and
// the token becomes unusable immediately. Other sessions are untouched.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	userID, err := s.store.VerifySession(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.sendJSONError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		s.internalError(w, "verifying session", err)
		return
	}

	if err := s.store.DeleteSession(r.Context(), req.RefreshToken); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.internalError(w, "deleting session", err)
		return
	}

	s.audit.Record(&userID, store.AuditLogout, "", clientIP(r))
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "session revoked"})
}

// handleChangePassword handles PUT /auth/password.
// Requires an attached identity regardless of policy: the password to change
// is the caller's own. Existing sessions stay valid by contract.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	actor := auth.FromContext(r.Context())
	if actor == nil {
		s.sendJSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req passwordRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	if err := s.creds.UpdatePassword(r.Context(), actor.UserID, req.NewPassword); err != nil {
		s.internalError(w, "updating password", err)
		return
	}

	s.audit.Record(&actor.UserID, store.AuditPasswordChanged, "", clientIP(r))
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "warden",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// issueTokens builds the standard token pair, persists the refresh session
// and returns the response body.
func (s *Server) issueTokens(r *http.Request, userID int64, username string) (tokenResponse, error) {
	access, err := s.tokens.IssueAccess(userID, username)
	if err != nil {
		return tokenResponse{}, err
	}

	refresh, err := s.tokens.IssueRefresh(userID, username)
	if err != nil {
		return tokenResponse{}, err
	}

	session := &store.Session{
		UserID:       userID,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().UTC().Add(s.tokens.RefreshTTL()),
	}
	if err := s.store.SaveSession(r.Context(), session); err != nil {
		return tokenResponse{}, err
	}

	return tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// decodeBody decodes a JSON body, replying 400 on malformed input.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// decodeAndValidate decodes a JSON body and runs struct validation,
// replying 400 on failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !s.decodeBody(w, r, dst) {
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}
	return true
}

// internalError logs the cause and replies with a generic 500.
// Store and crypto details never reach the client.
func (s *Server) internalError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// clientIP extracts the caller's address for audit attribution.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
