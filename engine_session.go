package sessionauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/sessionauth/internal/audit"
	"github.com/MrEthical07/sessionauth/session"
)

// CheckSession validates token for origin at req.Now.
//
// An unknown token gives SessionNotFound. A token presented from another
// origin, or checked after its expiry, deletes every session of its user and
// gives SessionOriginMismatch or SessionExpired. At exactly the expiry
// instant the session is still valid. Only store failures are returned as
// errors.
func (e *Engine) CheckSession(ctx context.Context, req SessionRequest) (SessionCheck, error) {
	if err := e.ready(); err != nil {
		return SessionCheck{}, err
	}

	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}()

	return e.checkSession(ctx, req.Token, req.Origin, e.now(req.Now))
}

// CurrentSession returns the session behind token, or ErrSessionInvalid when
// the check is anything but valid.
func (e *Engine) CurrentSession(ctx context.Context, req SessionRequest) (*SessionInfo, error) {
	check, err := e.CheckSession(ctx, req)
	if err != nil {
		return nil, err
	}
	if !check.Valid() {
		return nil, ErrSessionInvalid
	}
	return check.Session, nil
}

func (e *Engine) checkSession(ctx context.Context, token, origin string, now time.Time) (SessionCheck, error) {
	if token == "" {
		return SessionCheck{State: SessionNotFound}, nil
	}

	sess, err := readStore(ctx, e, "session_get", func(ctx context.Context) (*session.Session, error) {
		return e.sessions.Get(ctx, token)
	})
	if errors.Is(err, session.ErrNotFound) {
		e.metricInc(MetricSessionNotFound)
		e.writeAudit(ctx, now, audit.Guest, audit.CodeCheckSession, "Session token not found", origin)
		return SessionCheck{State: SessionNotFound}, nil
	}
	if err != nil {
		return SessionCheck{}, err
	}

	if sess.Origin != origin {
		if _, err := e.deleteUserSessions(ctx, sess.Username); err != nil {
			return SessionCheck{}, err
		}
		e.metricInc(MetricSessionOriginMismatch)
		e.logOutcome(ctx, slog.LevelWarn, "check_session", "origin_mismatch", "session presented from another origin",
			slog.String("username", sess.Username),
			slog.String("stored_origin", sess.Origin),
			slog.String("origin", origin),
		)
		e.writeAudit(ctx, now, sess.Username, audit.CodeCheckSession,
			fmt.Sprintf("Sessions deleted - origin differs (stored: %s / current: %s)", sess.Origin, origin), origin)
		return SessionCheck{State: SessionOriginMismatch}, nil
	}

	if sess.ExpiredAt(now) {
		if _, err := e.deleteUserSessions(ctx, sess.Username); err != nil {
			return SessionCheck{}, err
		}
		e.metricInc(MetricSessionExpired)
		e.writeAudit(ctx, now, sess.Username, audit.CodeCheckSession,
			fmt.Sprintf("Sessions deleted - session expired (expired at: %s)", sess.ExpiresAt.UTC().Format(time.RFC3339)), origin)
		return SessionCheck{State: SessionExpired}, nil
	}

	e.metricInc(MetricSessionValid)
	info := sessionInfo(sess)
	return SessionCheck{State: SessionValid, Session: &info}, nil
}

// Logout deletes every session of the user behind req.Token. An unknown or
// empty token is a no-op.
func (e *Engine) Logout(ctx context.Context, req SessionRequest) (LogoutResult, error) {
	if err := e.ready(); err != nil {
		return LogoutResult{}, err
	}
	if req.Token == "" {
		return LogoutResult{}, nil
	}
	now := e.now(req.Now)

	sess, err := readStore(ctx, e, "session_get", func(ctx context.Context) (*session.Session, error) {
		return e.sessions.Get(ctx, req.Token)
	})
	if errors.Is(err, session.ErrNotFound) {
		e.writeAudit(ctx, now, audit.Guest, audit.CodeLogout, "Session token not found - nothing deleted", req.Origin)
		return LogoutResult{}, nil
	}
	if err != nil {
		return LogoutResult{}, err
	}

	removed, err := e.deleteUserSessions(ctx, sess.Username)
	if err != nil {
		return LogoutResult{}, err
	}

	e.metricInc(MetricLogout)
	e.logOutcome(ctx, slog.LevelInfo, "logout", "success", "user logged out",
		slog.String("username", sess.Username),
		slog.Int("removed", removed),
	)
	e.writeAudit(ctx, now, sess.Username, audit.CodeLogout, fmt.Sprintf("Sessions deleted (%d)", removed), req.Origin)

	return LogoutResult{Username: sess.Username, Removed: removed}, nil
}

func (e *Engine) deleteUserSessions(ctx context.Context, username string) (int, error) {
	return writeStore(ctx, e, "session_delete_all", func(ctx context.Context) (int, error) {
		return e.sessions.DeleteAllForUser(ctx, username)
	})
}
