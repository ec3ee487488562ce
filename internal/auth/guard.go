// ABOUTME: HTTP middleware gating requests on the runtime security policy
// ABOUTME: Extracts Bearer tokens, verifies them and attaches the resolved identity

package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// Guard makes the per-request admission decision. It reads the security
// policy on every gated request; when enforcement is off it admits everyone,
// still attaching an identity when a valid access token happens to be present
// so audit entries can be attributed.
type Guard struct {
	policy *SecurityPolicy
	tokens *TokenService
	logger *slog.Logger
}

// NewGuard constructs a Guard.
func NewGuard(policy *SecurityPolicy, tokens *TokenService, logger *slog.Logger) *Guard {
	return &Guard{
		policy: policy,
		tokens: tokens,
		logger: logger.With("component", "guard"),
	}
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// resolveIdentity verifies an access token and builds its Identity.
// Returns nil if the token is absent or invalid; the failure reason goes to
// the debug log only.
func (g *Guard) resolveIdentity(r *http.Request) *Identity {
	token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
	if errMsg != "" {
		return nil
	}

	claims, err := g.tokens.Verify(token, TokenTypeAccess)
	if err != nil {
		g.logger.Debug("token rejected", "error", err)
		return nil
	}

	return &Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
	}
}

// Middleware gates requests on the security policy. With enforcement off the
// request proceeds regardless, with or without identity; with enforcement on
// a missing or invalid access token is rejected with 401. All token failure
// modes (expired, bad signature, wrong type) map to the same response shape.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		settings, err := g.policy.Get(r.Context())
		if err != nil {
			g.logger.Error("reading policy", "error", err)
			writeGuardError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		identity := g.resolveIdentity(r)

		if settings.AuthEnabled && identity == nil {
			writeGuardError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		if identity != nil {
			r = r.WithContext(WithIdentity(r.Context(), identity))
		}
		next.ServeHTTP(w, r)
	})
}

// Optional attaches an identity when a valid access token is present but
// never rejects. Used on endpoints that are public by contract yet benefit
// from audit attribution.
func (g *Guard) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity := g.resolveIdentity(r); identity != nil {
			r = r.WithContext(WithIdentity(r.Context(), identity))
		}
		next.ServeHTTP(w, r)
	})
}

func writeGuardError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
