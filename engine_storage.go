package sessionauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/sessionauth/account"
	"github.com/MrEthical07/sessionauth/session"
)

// expected reports errors that are domain answers rather than store failures.
func expected(err error) bool {
	return errors.Is(err, account.ErrNotFound) ||
		errors.Is(err, account.ErrUsernameTaken) ||
		errors.Is(err, account.ErrEmailTaken) ||
		errors.Is(err, account.ErrActivationMismatch) ||
		errors.Is(err, session.ErrNotFound)
}

// readStore runs an idempotent store call under the operation timeout and
// retries it once on a transient failure when Storage.RetryReads is set.
func readStore[T any](ctx context.Context, e *Engine, op string, fn func(context.Context) (T, error)) (T, error) {
	attempts := 1
	if e.config.Storage.RetryReads {
		attempts = 2
	}
	return callStore(ctx, e, op, attempts, fn)
}

// writeStore runs a mutating store call under the operation timeout. It is
// never retried.
func writeStore[T any](ctx context.Context, e *Engine, op string, fn func(context.Context) (T, error)) (T, error) {
	return callStore(ctx, e, op, 1, fn)
}

func callStore[T any](ctx context.Context, e *Engine, op string, attempts int, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)

	for i := 0; i < attempts; i++ {
		if i > 0 {
			e.metricInc(MetricStorageRetry)
		}

		opCtx, cancel := context.WithTimeout(ctx, e.config.Storage.OperationTimeout)
		v, err := fn(opCtx)
		timedOut := errors.Is(opCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			return v, nil
		}
		if expected(err) {
			return zero, err
		}
		if timedOut && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	e.metricInc(MetricStorageError)
	e.logOutcome(ctx, slog.LevelError, op, "error", "storage call failed", slog.Any("error", lastErr))

	if errors.Is(lastErr, context.DeadlineExceeded) {
		return zero, fmt.Errorf("%w: %s: %v", ErrStorageTimeout, op, lastErr)
	}
	return zero, fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, lastErr)
}
