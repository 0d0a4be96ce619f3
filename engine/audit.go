/*
audit.go - Append-only audit sink

PURPOSE:
  Records a LogEntry for every decision point in the sale, restock, and
  catalog flows - successes and rejections alike. Audit logging must never
  block or fail a business operation: persistence errors get one retry, then
  are swallowed, counted on an internal health counter, and reported on the
  application log channel only.

SEE ALSO:
  - sales.go, restock.go, catalog.go: callers
  - config: the logrus application logger
*/
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// AUDIT LOGGER
// =============================================================================

// AuditLogger appends LogEntries to the store, best effort.
type AuditLogger struct {
	store Store
	app   *logrus.Logger

	dropped atomic.Int64
}

// NewAuditLogger creates an audit logger. app receives internal-health
// reports when a log entry cannot be persisted; it may be nil.
func NewAuditLogger(store Store, app *logrus.Logger) *AuditLogger {
	return &AuditLogger{store: store, app: app}
}

// Record appends a log entry. Never returns an error to the caller.
func (a *AuditLogger) Record(ctx context.Context, level LogLevel, operation, message, details string) {
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Operation: operation,
		Message:   message,
		Details:   details,
	}

	// Audit writes run to completion even when the caller has gone away.
	ctx = context.WithoutCancel(ctx)

	if a.append(ctx, entry) == nil {
		return
	}
	// One best-effort retry before giving up.
	if err := a.append(ctx, entry); err != nil {
		a.dropped.Add(1)
		if a.app != nil {
			a.app.WithFields(logrus.Fields{
				"operation": operation,
				"level":     string(level),
				"dropped":   a.dropped.Load(),
			}).WithError(err).Error("audit log write failed")
		}
	}
}

// Recordf is Record with formatted details.
func (a *AuditLogger) Recordf(ctx context.Context, level LogLevel, operation, message, format string, args ...any) {
	a.Record(ctx, level, operation, message, fmt.Sprintf(format, args...))
}

// Dropped returns how many entries failed to persist since startup. This is
// the internal-health signal; it is never propagated as a caller's error.
func (a *AuditLogger) Dropped() int64 {
	return a.dropped.Load()
}

func (a *AuditLogger) append(ctx context.Context, entry LogEntry) error {
	pctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	return a.store.AppendLog(pctx, entry)
}
