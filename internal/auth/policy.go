// ABOUTME: Runtime security policy deciding whether authentication is enforced
// ABOUTME: Reads through to the singleton settings row on every call

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/warden/internal/store"
)

// ErrUnauthorized is returned when a policy change requires an authenticated
// principal and none was supplied.
var ErrUnauthorized = errors.New("unauthorized")

// ErrSetupAlreadyComplete is returned when the bootstrap path is invoked
// after a user row already exists.
var ErrSetupAlreadyComplete = errors.New("setup already complete")

// SecurityPolicy exposes the mutable auth-enforcement record.
//
// Get reads through to the database on every call: staleness here directly
// affects access-control decisions, so correctness wins over caching. In a
// multi-instance deployment the shared database is the only source of truth.
type SecurityPolicy struct {
	store  store.Store
	logger *slog.Logger
}

// NewSecurityPolicy constructs a SecurityPolicy over the given store.
func NewSecurityPolicy(s store.Store, logger *slog.Logger) *SecurityPolicy {
	return &SecurityPolicy{
		store:  s,
		logger: logger.With("component", "policy"),
	}
}

// Get returns the current security settings, initializing the record to
// all-off if it is somehow absent.
func (p *SecurityPolicy) Get(ctx context.Context) (*store.SecuritySettings, error) {
	settings, err := p.store.GetSecuritySettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading security settings: %w", err)
	}
	return settings, nil
}

// Set updates both policy flags. Disabling previously-enabled authentication
// requires a non-nil acting principal; every other transition goes through
// unconditionally. The caller decides how the principal was authenticated.
func (p *SecurityPolicy) Set(ctx context.Context, authEnabled, requireWebhookAuth bool, actor *Identity) error {
	current, err := p.Get(ctx)
	if err != nil {
		return err
	}

	if current.AuthEnabled && !authEnabled && actor == nil {
		return fmt.Errorf("%w: disabling authentication requires an authenticated principal", ErrUnauthorized)
	}

	if err := p.store.UpdateSecuritySettings(ctx, authEnabled, requireWebhookAuth); err != nil {
		return fmt.Errorf("writing security settings: %w", err)
	}

	actorName := "anonymous"
	if actor != nil {
		actorName = actor.Username
	}
	p.logger.Info("policy changed",
		"auth_enabled", authEnabled,
		"require_webhook_auth", requireWebhookAuth,
		"actor", actorName,
	)
	return nil
}
