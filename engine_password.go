package sessionauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/sessionauth/account"
	"github.com/MrEthical07/sessionauth/internal/audit"
)

// ChangePassword verifies req.Current against the stored digest and replaces
// it with a digest of req.New. An unknown username and a wrong current
// password both give ErrInvalidCredentials.
func (e *Engine) ChangePassword(ctx context.Context, req ChangePasswordRequest) (*ChangePasswordResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.validatePasswordChange(req); err != nil {
		e.metricInc(MetricValidationRejected)
		return nil, err
	}
	now := e.now(req.Now)

	acc, err := readStore(ctx, e, "account_find", func(ctx context.Context) (*account.Account, error) {
		return e.accounts.FindByUsername(ctx, req.Username)
	})
	if errors.Is(err, account.ErrNotFound) {
		_, _ = e.hasher.Verify(req.Current, e.dummyHash)
		e.metricInc(MetricPasswordChangeFailure)
		e.writeAudit(ctx, now, audit.Guest, audit.CodeChangePassFail,
			fmt.Sprintf("Username not found (%s)", req.Username), req.Origin)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, verr := e.hasher.Verify(req.Current, acc.PasswordHash)
	if verr != nil {
		e.logOutcome(ctx, slog.LevelError, "change_password", "error", "stored password digest unreadable",
			slog.String("username", acc.Username),
			slog.Any("error", verr),
		)
	}
	if !ok {
		e.metricInc(MetricPasswordChangeFailure)
		e.writeAudit(ctx, now, acc.Username, audit.CodeChangePassFail, "Current password incorrect", req.Origin)
		return nil, ErrInvalidCredentials
	}

	digest, err := e.hasher.Hash(req.New)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	_, err = writeStore(ctx, e, "account_update_password", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.accounts.UpdatePassword(ctx, acc.Username, digest)
	})
	if errors.Is(err, account.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.logOutcome(ctx, slog.LevelInfo, "change_password", "success", "password changed",
		slog.String("username", acc.Username),
	)
	e.writeAudit(ctx, now, acc.Username, audit.CodeChangePassSuccess, "Password changed", req.Origin)

	result := &ChangePasswordResult{}
	if e.config.Password.InvalidateSessionsOnChange {
		removed, err := e.deleteUserSessions(ctx, acc.Username)
		if err != nil {
			return nil, err
		}
		result.SessionsRevoked = removed
	}
	return result, nil
}
