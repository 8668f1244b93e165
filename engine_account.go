package sessionauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/sessionauth/account"
	"github.com/MrEthical07/sessionauth/internal"
	"github.com/MrEthical07/sessionauth/internal/audit"
	"github.com/MrEthical07/sessionauth/mail"
)

// Register creates an inactive account and mails its activation link.
//
// Every field is validated and all failures are reported together before any
// store is touched. Username uniqueness is checked before email uniqueness;
// each failure is a *ConflictError naming the field. If the mail cannot be
// sent the account remains stored and ErrActivationMailFailed is returned.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	return e.register(ctx, req, false)
}

// DirectRegister is Register without the activation mail: the account is
// activated immediately.
func (e *Engine) DirectRegister(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	return e.register(ctx, req, true)
}

func (e *Engine) register(ctx context.Context, req RegisterRequest, direct bool) (*RegisterResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	op := "register"
	if direct {
		op = "register_direct"
	}
	if !direct && e.mailer == nil {
		return nil, fmt.Errorf("%w: no mailer configured", ErrActivationMailFailed)
	}
	now := e.now(req.Now)

	if req.Token != "" {
		check, err := e.checkSession(ctx, req.Token, req.Origin, now)
		if err != nil {
			return nil, err
		}
		if check.Valid() {
			return nil, ErrAlreadyAuthenticated
		}
	}

	if err := e.validateRegistration(req); err != nil {
		e.metricInc(MetricValidationRejected)
		return nil, err
	}

	if err := e.checkUnique(ctx, now, req); err != nil {
		return nil, err
	}

	digest, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	key, err := internal.RandomKey(e.config.Registration.ActivationKeyLength)
	if err != nil {
		return nil, fmt.Errorf("generate activation key: %w", err)
	}

	acc, err := writeStore(ctx, e, "account_insert", func(ctx context.Context) (*account.Account, error) {
		return e.accounts.Insert(ctx, account.NewAccount{
			Username:      req.Username,
			PasswordHash:  digest,
			Email:         req.Email,
			ActivationKey: key,
			CreatedAt:     now,
		})
	})
	switch {
	case errors.Is(err, account.ErrUsernameTaken):
		return nil, e.registerConflict(ctx, now, req, "username")
	case errors.Is(err, account.ErrEmailTaken):
		return nil, e.registerConflict(ctx, now, req, "email")
	case err != nil:
		return nil, err
	}

	result := &RegisterResult{AccountID: acc.ID, Username: acc.Username}

	if direct {
		if err := e.activate(ctx, now, acc.Username, key, req.Origin); err != nil {
			return nil, err
		}
		result.Active = true
		e.finishRegistration(ctx, now, op, req, "Account created and activated")
		return result, nil
	}

	if err := e.sendActivation(ctx, req, key); err != nil {
		e.metricInc(MetricActivationMailFailed)
		e.logOutcome(ctx, slog.LevelError, op, "mail_failed", "activation mail not sent",
			slog.String("username", req.Username),
			slog.Any("error", err),
		)
		e.finishRegistration(ctx, now, op, req, "Account created - activation email could not be sent")
		return nil, fmt.Errorf("%w: %v", ErrActivationMailFailed, err)
	}

	e.finishRegistration(ctx, now, op, req, "Account created and activation email sent")
	return result, nil
}

func (e *Engine) checkUnique(ctx context.Context, now time.Time, req RegisterRequest) error {
	_, err := readStore(ctx, e, "account_find", func(ctx context.Context) (*account.Account, error) {
		return e.accounts.FindByUsername(ctx, req.Username)
	})
	if err == nil {
		return e.registerConflict(ctx, now, req, "username")
	}
	if !errors.Is(err, account.ErrNotFound) {
		return err
	}

	_, err = readStore(ctx, e, "account_find_email", func(ctx context.Context) (*account.Account, error) {
		return e.accounts.FindByEmail(ctx, req.Email)
	})
	if err == nil {
		return e.registerConflict(ctx, now, req, "email")
	}
	if !errors.Is(err, account.ErrNotFound) {
		return err
	}
	return nil
}

func (e *Engine) registerConflict(ctx context.Context, now time.Time, req RegisterRequest, field string) error {
	value := req.Username
	if field == "email" {
		value = strings.ToLower(req.Email)
	}
	e.metricInc(MetricRegisterConflict)
	e.logOutcome(ctx, slog.LevelInfo, "register", "conflict", "registration refused, duplicate "+field,
		slog.String("field", field),
	)
	e.writeAudit(ctx, now, audit.Guest, audit.CodeRegisterFail,
		fmt.Sprintf("%s (%s) already exists", capitalize(field), value), req.Origin)
	return &ConflictError{Field: field}
}

func (e *Engine) finishRegistration(ctx context.Context, now time.Time, op string, req RegisterRequest, detail string) {
	e.metricInc(MetricRegisterSuccess)
	e.logOutcome(ctx, slog.LevelInfo, op, "success", "account registered",
		slog.String("username", req.Username),
	)
	e.writeAudit(ctx, now, req.Username, audit.CodeRegisterSuccess, detail, req.Origin)
}

func (e *Engine) sendActivation(ctx context.Context, req RegisterRequest, key string) error {
	reg := e.config.Registration
	msg, err := mail.ActivationMessage(reg.SiteName, reg.ActivationURL, req.Email, req.Username, key)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, reg.MailTimeout)
	defer cancel()
	return e.mailer.Send(sendCtx, msg)
}

// Activate consumes the activation key of an inactive account. A wrong key, a
// replayed key, or an already active account all give ErrActivationInvalid.
func (e *Engine) Activate(ctx context.Context, req ActivateRequest) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.validateActivation(req); err != nil {
		e.metricInc(MetricValidationRejected)
		return err
	}
	return e.activate(ctx, e.now(req.Now), req.Username, req.Key, req.Origin)
}

func (e *Engine) activate(ctx context.Context, now time.Time, username, key, origin string) error {
	_, err := writeStore(ctx, e, "account_activate", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.accounts.Activate(ctx, username, key)
	})
	if errors.Is(err, account.ErrActivationMismatch) || errors.Is(err, account.ErrNotFound) {
		e.metricInc(MetricActivationFailure)
		e.logOutcome(ctx, slog.LevelInfo, "activate", "failure", "activation refused",
			slog.String("username", username),
		)
		return ErrActivationInvalid
	}
	if err != nil {
		return err
	}

	e.metricInc(MetricActivationSuccess)
	e.writeAudit(ctx, now, username, audit.CodeActivateSuccess, "Activation successful - key consumed", origin)
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
