// ABOUTME: Fire-and-forget audit recorder over the append-only audit_log table
// ABOUTME: A failed audit write never blocks or fails the operation being audited

package auth

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/warden/internal/store"
)

// auditWriteTimeout bounds each audit insert, including the retry.
const auditWriteTimeout = 5 * time.Second

// Recorder appends audit entries asynchronously. Writes happen on their own
// goroutine with an independent timeout; a failure is retried once, then
// logged and counted, never propagated to the caller.
type Recorder struct {
	store    store.Store
	logger   *slog.Logger
	wg       sync.WaitGroup
	failures atomic.Uint64
}

// NewRecorder constructs a Recorder over the given store.
func NewRecorder(s store.Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  s,
		logger: logger.With("component", "audit"),
	}
}

// Record appends an audit entry in the background. userID may be nil for
// unattributed events such as failed logins; details and ip may be empty.
func (r *Recorder) Record(userID *int64, action store.AuditAction, details, ip string) {
	entry := &store.AuditEntry{
		UserID:    userID,
		Action:    action,
		Details:   details,
		IP:        ip,
		Timestamp: time.Now().UTC(),
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
		defer cancel()

		err := r.store.AppendAuditLog(ctx, entry)
		if err == nil {
			return
		}

		// One retry, then give up
		if err = r.store.AppendAuditLog(ctx, entry); err == nil {
			return
		}

		r.failures.Add(1)
		r.logger.Warn("audit write failed",
			"action", action,
			"error", err,
		)
	}()
}

// Failures reports how many audit writes were dropped after retry.
func (r *Recorder) Failures() uint64 {
	return r.failures.Load()
}

// Flush waits for all in-flight audit writes to settle. Called on shutdown
// and by tests.
func (r *Recorder) Flush() {
	r.wg.Wait()
}
