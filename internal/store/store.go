// ABOUTME: Store interface and data types for warden persistence
// ABOUTME: Defines User, Session, SecuritySettings, AuditEntry and the Store interface

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateUsername is returned when creating a user whose username is taken
var ErrDuplicateUsername = errors.New("username already exists")

// ErrDuplicateSession is returned when saving a session whose refresh token
// collides with an existing one
var ErrDuplicateSession = errors.New("session already exists")

// User represents a local account that can authenticate against the service.
// Users are never hard-deleted, only deactivated.
type User struct {
	ID           int64
	Username     string
	Email        string // optional, empty when not provided
	PasswordHash string
	Salt         string // hex-encoded, regenerated on every password change
	IsActive     bool
	IsAdmin      bool
	CreatedAt    time.Time
	LastLogin    *time.Time // nil until the first successful login
}

// Session represents a persisted refresh token. One user may hold any number
// of concurrent sessions; expired rows are evicted lazily during lookup.
type Session struct {
	ID           int64
	UserID       int64
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// SecuritySettings is the singleton runtime security policy record.
// Exactly one row (id=1) exists at all times.
type SecuritySettings struct {
	AuthEnabled        bool
	RequireWebhookAuth bool
	UpdatedAt          time.Time
}

// AuditAction tags a security-relevant event in the audit log.
type AuditAction string

const (
	AuditLoginSuccess    AuditAction = "login_success"
	AuditLoginFailed     AuditAction = "login_failed"
	AuditTokenRefreshed  AuditAction = "token_refreshed"
	AuditSetupCompleted  AuditAction = "setup_completed"
	AuditSettingsUpdated AuditAction = "auth_settings_updated"
	AuditUserCreated     AuditAction = "user_created"
	AuditPasswordChanged AuditAction = "password_changed"
	AuditLogout          AuditAction = "logout"
)

// AuditEntry represents a single append-only audit log row.
type AuditEntry struct {
	ID        string // UUID v4
	UserID    *int64 // nil for unattributed events (e.g. failed logins)
	Action    AuditAction
	Details   string // optional free-form context
	IP        string // optional client address
	Timestamp time.Time
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since  *time.Time
	Until  *time.Time
	UserID *int64
	Action *AuditAction
	Limit  int // max results (default 100, max 1000)
}

// Store defines the persistence operations for the auth subsystem
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *User) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash, salt string) error
	TouchLastLogin(ctx context.Context, userID int64, when time.Time) error
	DeactivateUser(ctx context.Context, userID int64) error
	CountUsers(ctx context.Context) (int, error)

	// Sessions (refresh tokens)
	SaveSession(ctx context.Context, session *Session) error
	VerifySession(ctx context.Context, refreshToken string) (int64, error)
	DeleteSession(ctx context.Context, refreshToken string) error

	// Security settings (singleton row)
	GetSecuritySettings(ctx context.Context) (*SecuritySettings, error)
	UpdateSecuritySettings(ctx context.Context, authEnabled, requireWebhookAuth bool) error

	// Audit log (append-only)
	AppendAuditLog(ctx context.Context, entry *AuditEntry) error
	ListAuditLog(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)

	// Close releases any resources held by the store
	Close() error
}
