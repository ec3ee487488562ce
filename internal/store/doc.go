// Package store provides persistent storage for warden using SQLite.
//
// # Data Models
//
//   - User: Local accounts with salted bcrypt password hashes. Accounts are
//     deactivated, never deleted.
//   - Session: Persisted refresh tokens with absolute expiry. Expired rows
//     are evicted lazily during VerifySession, not by a background sweep.
//   - SecuritySettings: Single-row (id=1) runtime policy controlling whether
//     authentication is enforced at all.
//   - AuditEntry: Append-only record of security-relevant actions.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The schema is created automatically on startup and the security_settings
// row is seeded with both flags off, so a fresh database serves requests
// without enforcement until the setup endpoint is exercised.
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist (also returned for
//     expired sessions after eviction)
//   - ErrDuplicateUsername: Username already taken at creation
//   - ErrDuplicateSession: Refresh token collision
//
// All methods accept context.Context for cancellation support.
package store
