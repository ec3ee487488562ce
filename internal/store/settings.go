// ABOUTME: Security settings persistence for the SQLite store
// ABOUTME: Maintains the single-row runtime policy record (id=1)

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetSecuritySettings reads the singleton policy row. The row is seeded at
// store initialization, but a missing row is repaired here rather than
// treated as fatal so that reads stay total.
func (s *SQLiteStore) GetSecuritySettings(ctx context.Context) (*SecuritySettings, error) {
	var settings SecuritySettings
	var updatedAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT auth_enabled, require_webhook_auth, updated_at FROM security_settings WHERE id = 1").
		Scan(&settings.AuthEnabled, &settings.RequireWebhookAuth, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if err := s.seedSecuritySettings(); err != nil {
				return nil, err
			}
			return &SecuritySettings{UpdatedAt: time.Now().UTC()}, nil
		}
		return nil, fmt.Errorf("querying security settings: %w", err)
	}

	settings.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSecuritySettings overwrites both policy flags in place.
// Writers are serialized by SQLite; readers always see the committed row.
func (s *SQLiteStore) UpdateSecuritySettings(ctx context.Context, authEnabled, requireWebhookAuth bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE security_settings
		SET auth_enabled = ?, require_webhook_auth = ?, updated_at = ?
		WHERE id = 1`,
		authEnabled, requireWebhookAuth, formatTime(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("updating security settings: %w", err)
	}
	if err := requireRowAffected(res); err != nil {
		return err
	}

	s.logger.Info("security settings updated",
		"auth_enabled", authEnabled,
		"require_webhook_auth", requireWebhookAuth,
	)
	return nil
}
