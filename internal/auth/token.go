// ABOUTME: JWT issuance and verification for access and refresh tokens
// ABOUTME: Uses HS256 signing with a configured secret and typed claims

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors. All three surface to clients as a single unauthorized
// condition; they are distinguished only in internal logs.
var (
	ErrExpiredToken     = errors.New("token expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrWrongType        = errors.New("wrong token type")
)

// ErrSecretTooShort is returned when the configured signing secret is unusable.
var ErrSecretTooShort = errors.New("jwt secret too short")

// MinSecretLength is the minimum number of bytes required for the signing secret.
const MinSecretLength = 32

// Token type claim values.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Default token lifetimes, matching the configuration defaults.
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims carries the signed identity attached to every token.
// The exp claim comes from RegisteredClaims.
type Claims struct {
	jwt.RegisteredClaims
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	TokenType string `json:"type"`
}

// TokenService issues and verifies signed, time-bounded tokens. The signing
// secret is injected at construction; it must never be derived per process
// start or every restart silently invalidates all outstanding sessions.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService creates a token service with the given secret and TTLs.
// Zero TTLs fall back to the defaults (30m access, 7d refresh).
func NewTokenService(secret []byte, accessTTL, refreshTTL time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrSecretTooShort, MinSecretLength, len(secret))
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &TokenService{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// IssueAccess creates a signed access token for the given identity.
func (s *TokenService) IssueAccess(userID int64, username string) (string, error) {
	return s.issue(userID, username, TokenTypeAccess, s.accessTTL)
}

// IssueRefresh creates a signed refresh token for the given identity.
func (s *TokenService) IssueRefresh(userID int64, username string) (string, error) {
	return s.issue(userID, username, TokenTypeRefresh, s.refreshTTL)
}

func (s *TokenService) issue(userID int64, username, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:    userID,
		Username:  username,
		TokenType: tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify validates signature, expiry and that the type claim matches
// wantType. Pure computation: only the secret and the token bytes are needed.
func (s *TokenService) Verify(tokenString, wantType string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Reject anything but HMAC before touching the secret
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongType, claims.TokenType, wantType)
	}

	return claims, nil
}
