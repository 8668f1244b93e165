package sessionauth

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/sessionauth/internal/audit"
)

func (e *Engine) auditUsername(username string) string {
	if username == "" || len(username) > e.config.Policy.MaxUsername {
		return audit.Guest
	}
	return username
}

// writeAudit appends a record to the activity log before returning. A failed
// append is logged and counted; it does not change the operation outcome.
func (e *Engine) writeAudit(ctx context.Context, now time.Time, username, code, detail, origin string) {
	rec := audit.Record{
		Timestamp: now.UTC(),
		Username:  e.auditUsername(username),
		Code:      code,
		Detail:    truncateDetail(detail, e.config.Audit.MaxDetailLength),
		Origin:    truncateBytes(origin, maxStoredOrigin),
	}

	_, err := writeStore(ctx, e, "audit_append", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.auditSink.Append(ctx, rec)
	})
	if err != nil {
		e.metricInc(MetricAuditWriteFailed)
		e.logOutcome(ctx, slog.LevelError, "audit", "error", "activity record not written",
			slog.String("code", code),
			slog.String("username", rec.Username),
		)
	}

	e.mirror.Emit(ctx, rec)
}
