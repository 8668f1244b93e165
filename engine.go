package sessionauth

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/sessionauth/account"
	"github.com/MrEthical07/sessionauth/internal/audit"
	"github.com/MrEthical07/sessionauth/internal/rate"
	"github.com/MrEthical07/sessionauth/mail"
	"github.com/MrEthical07/sessionauth/password"
	"github.com/MrEthical07/sessionauth/session"
)

// Engine is the authentication engine. It is safe for concurrent use; every
// call carries its own result and no per-call state is kept on the engine.
type Engine struct {
	config    Config
	accounts  account.Store
	sessions  *session.Store
	ledger    *rate.Ledger
	hasher    password.Hasher
	dummyHash string
	auditSink audit.Sink
	mirror    *audit.Dispatcher
	mailer    mail.Sender
	clock     Clock
	logger    *slog.Logger
	metrics   *Metrics

	purgeMu   sync.Mutex
	purgeStop chan struct{}
	purgeDone chan struct{}
	closed    atomic.Bool
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Close stops the purge timer and drains the audit mirror. Calls after
// Close return ErrEngineNotReady.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.stopPurger()
	e.mirror.Close()
}

func (e *Engine) ready() error {
	if e == nil || e.closed.Load() {
		return ErrEngineNotReady
	}
	return nil
}

// PurgeExpired removes every attempt record whose expiry is at or before now
// and returns how many were removed. A zero now uses the engine clock.
func (e *Engine) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	now = e.now(now)

	removed, err := writeStore(ctx, e, "attempt_purge", func(ctx context.Context) (int, error) {
		return e.ledger.PurgeExpired(ctx, now)
	})
	if err != nil {
		return 0, err
	}

	e.metrics.Add(MetricAttemptsPurged, uint64(removed))
	if removed > 0 {
		e.logger.LogAttrs(ctx, slog.LevelDebug, "attempt records purged",
			slog.String("operation", "purge"),
			slog.String("outcome", "success"),
			slog.Int("removed", removed),
		)
	}
	return removed, nil
}

// StartPurger runs PurgeExpired every Throttle.PurgeInterval until ctx is done
// or the engine is closed. It is a no-op when the interval is zero or a purger
// is already running.
func (e *Engine) StartPurger(ctx context.Context) {
	if e.ready() != nil || e.config.Throttle.PurgeInterval <= 0 {
		return
	}

	e.purgeMu.Lock()
	defer e.purgeMu.Unlock()
	if e.purgeStop != nil {
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	e.purgeStop, e.purgeDone = stop, done

	go func() {
		defer close(done)

		ticker := time.NewTicker(e.config.Throttle.PurgeInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if _, err := e.PurgeExpired(ctx, time.Time{}); err != nil {
					e.logger.LogAttrs(ctx, slog.LevelWarn, "attempt purge failed",
						slog.String("operation", "purge"),
						slog.String("outcome", "error"),
						slog.Any("error", err),
					)
				}
			}
		}
	}()
}

func (e *Engine) stopPurger() {
	e.purgeMu.Lock()
	stop, done := e.purgeStop, e.purgeDone
	e.purgeStop, e.purgeDone = nil, nil
	e.purgeMu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

// Ping checks that the session backend answers.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	_, err := readStore(ctx, e, "ping", func(ctx context.Context) (time.Duration, error) {
		return e.sessions.Ping(ctx)
	})
	return err
}

// MetricsSnapshot returns the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports records the audit mirror dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.mirror.Dropped()
}

// AuditMirrorFailed reports records the audit mirror's sink refused. The
// primary activity log is unaffected; its failures are counted by
// MetricAuditWriteFailed.
func (e *Engine) AuditMirrorFailed() uint64 {
	if e == nil {
		return 0
	}
	return e.mirror.Failed()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) logOutcome(ctx context.Context, level slog.Level, operation, outcome, msg string, attrs ...slog.Attr) {
	attrs = append(attrs,
		slog.String("operation", operation),
		slog.String("outcome", outcome),
	)
	e.logger.LogAttrs(ctx, level, msg, attrs...)
}
