package sessionauth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrValidation is the base error for malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned for an unknown username or a wrong
	// password. The two causes are not distinguished.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive is returned when the credentials match an account that
	// has not been activated.
	ErrAccountInactive = errors.New("account not activated")
	// ErrThrottled is returned while the origin is locked out.
	ErrThrottled = errors.New("too many failed attempts")
	// ErrConflict is the base error for a duplicate username or email.
	ErrConflict = errors.New("already registered")
	// ErrSessionInvalid is returned when an operation needs a valid session.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrActivationInvalid is returned when the activation key does not match,
	// was already consumed, or the account is already active.
	ErrActivationInvalid = errors.New("activation key invalid")
	// ErrAlreadyAuthenticated is returned by registration when the caller
	// already holds a valid session.
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	// ErrActivationMailFailed is returned when the account was stored but the
	// activation mail could not be sent.
	ErrActivationMailFailed = errors.New("activation mail could not be sent")
	// ErrStorageUnavailable wraps a failed store call.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrStorageTimeout wraps a store call that exceeded Storage.OperationTimeout.
	ErrStorageTimeout = errors.New("storage timeout")
	// ErrEngineNotReady is returned by a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Field error codes.
const (
	CodeRequired         = "required"
	CodeTooShort         = "too_short"
	CodeTooLong          = "too_long"
	CodeInvalidFormat    = "invalid_format"
	CodeContainsUsername = "contains_username"
	CodeMismatch         = "mismatch"
	CodeTaken            = "taken"
	CodeIncorrect        = "incorrect"
	CodeInactive         = "inactive"
	CodeThrottled        = "throttled"
	CodeSession          = "session_invalid"
	CodeAuthenticated    = "already_authenticated"
	CodeActivation       = "activation_invalid"
	CodeMailFailed       = "mail_failed"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal"
)

// FieldError is one failing input field. Field is empty for errors that are
// not tied to a single field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// ValidationError lists every field that failed shape validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Code)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Has reports whether field failed with code.
func (e *ValidationError) Has(field, code string) bool {
	for _, f := range e.Fields {
		if f.Field == field && f.Code == code {
			return true
		}
	}
	return false
}

// CredentialError is a failed login. Remaining is the number of further
// failures the origin may make before it is locked out.
type CredentialError struct {
	Remaining int
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s: %d attempts remaining", ErrInvalidCredentials.Error(), e.Remaining)
}

func (e *CredentialError) Unwrap() error { return ErrInvalidCredentials }

// ThrottleError is a refused login while the origin is locked out.
type ThrottleError struct {
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("%s: retry in %s", ErrThrottled.Error(), e.RetryAfter.Round(time.Second))
}

func (e *ThrottleError) Unwrap() error { return ErrThrottled }

// ConflictError names the field whose value is already registered.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return e.Field + " " + ErrConflict.Error()
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
