package sessionauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/sessionauth/account"
	"github.com/MrEthical07/sessionauth/internal"
	"github.com/MrEthical07/sessionauth/internal/audit"
	"github.com/MrEthical07/sessionauth/internal/rate"
	"github.com/MrEthical07/sessionauth/session"
)

// Login authenticates req and creates a session bound to req.Origin.
//
// Checks run in order and stop at the first failure:
//
//  1. A token that is still valid for this origin returns it with
//     AlreadyAuthenticated set.
//  2. A locked-out origin gets *ThrottleError without any account lookup.
//  3. Malformed input gets *ValidationError and is not counted as an attempt.
//  4. An unknown username or wrong password records a failure for the origin
//     and gets *CredentialError.
//  5. An inactive account gets ErrAccountInactive and is not counted.
//
// The attempt is reserved against the origin's limit before credentials are
// checked, so concurrent logins from one origin never verify more than
// MaxAttempts passwords per window. Outcomes other than a credential failure
// give the reservation back.
//
// Any previous session of the user is replaced atomically.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now(req.Now)

	var c fieldCollector
	e.validateOrigin(&c, req.Origin)
	if err := c.err(); err != nil {
		e.metricInc(MetricValidationRejected)
		return nil, err
	}

	if req.Token != "" {
		check, err := e.checkSession(ctx, req.Token, req.Origin, now)
		if err != nil {
			return nil, err
		}
		if check.Valid() {
			e.metricInc(MetricLoginAlreadyAuthenticated)
			return &LoginResult{
				Token:                req.Token,
				ExpiresAt:            check.Session.ExpiresAt,
				Session:              *check.Session,
				AlreadyAuthenticated: true,
			}, nil
		}
	}

	attempts, err := e.reserveAttempt(ctx, req.Origin, now)
	if err != nil {
		return nil, err
	}
	settled := false
	defer func() {
		if !settled {
			e.releaseAttempt(ctx, req.Origin)
		}
	}()

	if err := e.validateLogin(req); err != nil {
		e.metricInc(MetricValidationRejected)
		return nil, err
	}

	acc, err := readStore(ctx, e, "account_find", func(ctx context.Context) (*account.Account, error) {
		return e.accounts.FindByUsername(ctx, req.Username)
	})
	if errors.Is(err, account.ErrNotFound) {
		_, _ = e.hasher.Verify(req.Password, e.dummyHash)
		settled = true
		return nil, e.loginFailure(ctx, now, req, attempts, audit.Guest, fmt.Sprintf("Username not found (%s)", req.Username))
	}
	if err != nil {
		return nil, err
	}

	ok, verr := e.hasher.Verify(req.Password, acc.PasswordHash)
	if verr != nil {
		e.logOutcome(ctx, slog.LevelError, "login", "error", "stored password digest unreadable",
			slog.String("username", acc.Username),
			slog.Any("error", verr),
		)
	}
	if !ok {
		settled = true
		return nil, e.loginFailure(ctx, now, req, attempts, acc.Username, "Password incorrect")
	}
	e.releaseAttempt(ctx, req.Origin)
	settled = true

	if !acc.Active {
		e.metricInc(MetricLoginInactive)
		e.logOutcome(ctx, slog.LevelInfo, "login", "inactive", "login refused, account inactive",
			slog.String("username", acc.Username),
		)
		e.writeAudit(ctx, now, acc.Username, audit.CodeLoginFail, "Account inactive", req.Origin)
		return nil, ErrAccountInactive
	}

	sess, err := e.createSession(ctx, acc, req.Origin, now)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.logOutcome(ctx, slog.LevelInfo, "login", "success", "user logged in",
		slog.String("username", acc.Username),
		slog.String("origin", req.Origin),
	)
	e.writeAudit(ctx, now, acc.Username, audit.CodeLoginSuccess, "User logged in", req.Origin)

	if e.config.Password.UpgradeOnLogin {
		e.upgradeDigest(ctx, acc, req.Password)
	}

	return &LoginResult{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		Session:   sessionInfo(sess),
	}, nil
}

// reserveAttempt counts the attempt against origin's limit, or refuses it
// with *ThrottleError when the origin is locked out. It returns the count
// including this attempt.
func (e *Engine) reserveAttempt(ctx context.Context, origin string, now time.Time) (int, error) {
	res, err := writeStore(ctx, e, "attempt_reserve", func(ctx context.Context) (rate.Reservation, error) {
		return e.ledger.Reserve(ctx, origin, now, e.config.Throttle.MaxAttempts)
	})
	if err != nil {
		return 0, err
	}
	if res.Purged {
		e.metricInc(MetricAttemptsPurged)
	}
	if res.Allowed {
		return res.Count, nil
	}

	retryAfter := res.ExpiresAt.Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	e.metricInc(MetricLoginThrottled)
	e.logOutcome(ctx, slog.LevelWarn, "login", "throttled", "login refused, origin locked out",
		slog.String("origin", origin),
		slog.Int("attempts", res.Count),
		slog.Duration("retry_after", retryAfter),
	)
	return 0, &ThrottleError{RetryAfter: retryAfter}
}

// releaseAttempt gives back a reservation that did not end in a credential
// failure. It runs even when ctx is already cancelled.
func (e *Engine) releaseAttempt(ctx context.Context, origin string) {
	_, err := writeStore(context.WithoutCancel(ctx), e, "attempt_release", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.ledger.Release(ctx, origin)
	})
	if err != nil {
		e.logOutcome(ctx, slog.LevelWarn, "login", "release_failed", "attempt reservation not released",
			slog.String("origin", origin),
			slog.Any("error", err),
		)
	}
}

// loginFailure keeps the reserved attempt and writes the audit entry, both
// before returning.
func (e *Engine) loginFailure(ctx context.Context, now time.Time, req LoginRequest, attempts int, auditUser, detail string) error {
	count, ledgerErr := writeStore(ctx, e, "attempt_confirm", func(ctx context.Context) (int, error) {
		return e.ledger.Confirm(ctx, req.Origin, now)
	})

	e.metricInc(MetricLoginFailure)
	e.writeAudit(ctx, now, auditUser, audit.CodeLoginFail, detail, req.Origin)

	if ledgerErr != nil {
		return ledgerErr
	}

	// Concurrent reservations may have moved the count past ours.
	if count < attempts {
		count = attempts
	}
	remaining := e.config.Throttle.MaxAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	e.logOutcome(ctx, slog.LevelInfo, "login", "failure", "login failed",
		slog.String("origin", req.Origin),
		slog.Int("attempts", count),
		slog.Int("remaining", remaining),
	)
	return &CredentialError{Remaining: remaining}
}

func (e *Engine) createSession(ctx context.Context, acc *account.Account, origin string, now time.Time) (*session.Session, error) {
	token, err := internal.NewSessionToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	sess := &session.Session{
		Token:     token,
		AccountID: acc.ID,
		Username:  acc.Username,
		Origin:    origin,
		CreatedAt: now,
		ExpiresAt: now.Add(e.config.Session.Duration),
	}
	ttl := e.config.Session.Duration + e.config.Session.Retention

	replaced, err := writeStore(ctx, e, "session_create", func(ctx context.Context) (int, error) {
		return e.sessions.Create(ctx, sess, ttl)
	})
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricSessionCreated)
	e.metrics.Add(MetricSessionReplaced, uint64(replaced))
	return sess, nil
}

// upgradeDigest re-hashes a verified password when its digest is outdated.
// Failures are logged; the login has already succeeded.
func (e *Engine) upgradeDigest(ctx context.Context, acc *account.Account, plain string) {
	needs, err := e.hasher.NeedsRehash(acc.PasswordHash)
	if err != nil || !needs {
		return
	}

	digest, err := e.hasher.Hash(plain)
	if err == nil {
		_, err = writeStore(ctx, e, "account_update_password", func(ctx context.Context) (struct{}, error) {
			return struct{}{}, e.accounts.UpdatePassword(ctx, acc.Username, digest)
		})
	}
	if err != nil {
		e.logOutcome(ctx, slog.LevelWarn, "login", "rehash_failed", "password digest upgrade failed",
			slog.String("username", acc.Username),
			slog.Any("error", err),
		)
		return
	}
	e.logOutcome(ctx, slog.LevelInfo, "login", "rehashed", "password digest upgraded",
		slog.String("username", acc.Username),
	)
}
