// Package auth provides credential verification, token management and
// request gating for warden.
//
// # Components
//
//   - CredentialStore: salted bcrypt password storage and verification.
//     Hashing is deliberately slow and runs through a bounded semaphore so
//     concurrent logins cannot starve unrelated requests.
//
//   - TokenService: HS256-signed JWTs with typed claims (user_id, username,
//     exp, type). Access tokens live 30 minutes, refresh tokens 7 days by
//     default. The signing secret is injected from configuration — never
//     generated per process, which would invalidate every outstanding
//     session on restart.
//
//   - SecurityPolicy: the mutable record deciding whether requests must be
//     authenticated at all. Reads go through to the database on every call.
//
//   - Recorder: fire-and-forget audit writes with one retry and a dropped-
//     write counter. An audit failure never rolls back or delays the
//     operation being audited.
//
//   - Guard: HTTP middleware combining SecurityPolicy and TokenService.
//     With enforcement off everyone is admitted (identity attached when a
//     valid token happens to be present, for audit attribution); with
//     enforcement on a valid access token is required.
//
// # Error Mapping
//
// Credential and token failures intentionally collapse to single external
// shapes: ErrInvalidCredentials for every login miss (no username
// enumeration) and a generic 401 for every token defect (expired, bad
// signature, wrong type). The specific cause appears only in internal logs.
package auth
