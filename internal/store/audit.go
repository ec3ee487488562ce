// ABOUTME: Audit log entity store methods for tracking security-relevant actions
// ABOUTME: Append-only table; entries are never updated or deleted by this subsystem

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendAuditLog appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var details, ip *string
	if e.Details != "" {
		details = &e.Details
	}
	if e.IP != "" {
		ip = &e.IP
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (audit_id, user_id, action, details, ip_address, ts)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.UserID,
		e.Action,
		details,
		ip,
		formatTime(e.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"action", e.Action,
	)
	return nil
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const auditLogQuery = `
	SELECT audit_id, user_id, action, details, ip_address, ts
	FROM audit_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR ts <= ?)
	  AND (? IS NULL OR user_id = ?)
	  AND (? IS NULL OR action = ?)
	ORDER BY ts DESC
	LIMIT ?
`

// ListAuditLog returns audit entries matching the filter criteria.
// Results are returned newest first (DESC by timestamp).
func (s *SQLiteStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	limit := normalizeAuditLimit(f.Limit)

	var sinceStr, untilStr, actionStr *string
	if f.Since != nil {
		v := formatTime(*f.Since)
		sinceStr = &v
	}
	if f.Until != nil {
		v := formatTime(*f.Until)
		untilStr = &v
	}
	if f.Action != nil {
		v := string(*f.Action)
		actionStr = &v
	}

	rows, err := s.db.QueryContext(ctx, auditLogQuery,
		sinceStr, sinceStr,
		untilStr, untilStr,
		f.UserID, f.UserID,
		actionStr, actionStr,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var actionStr, tsStr string
		var details, ip *string

		if err := rows.Scan(&e.ID, &e.UserID, &actionStr, &details, &ip, &tsStr); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		e.Action = AuditAction(actionStr)
		if details != nil {
			e.Details = *details
		}
		if ip != nil {
			e.IP = *ip
		}
		e.Timestamp, err = parseTime(tsStr)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}
