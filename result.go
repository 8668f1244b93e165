package sessionauth

import (
	"errors"
	"fmt"
	"time"
)

// Result is the transport-friendly view of an operation outcome.
type Result[T any] struct {
	OK     bool         `json:"ok"`
	Errors []FieldError `json:"errors,omitempty"`
	Data   T            `json:"data,omitempty"`
}

// ResultOf folds an operation's return values into a Result.
func ResultOf[T any](data T, err error) Result[T] {
	if err == nil {
		return Result[T]{OK: true, Data: data}
	}
	return Result[T]{Errors: FieldErrors(err)}
}

// FieldErrors flattens err into the per-field list carried by Result.
func FieldErrors(err error) []FieldError {
	if err == nil {
		return nil
	}

	var (
		verr  *ValidationError
		cerr  *CredentialError
		terr  *ThrottleError
		cferr *ConflictError
	)
	switch {
	case errors.As(err, &verr):
		out := make([]FieldError, len(verr.Fields))
		copy(out, verr.Fields)
		return out
	case errors.As(err, &cerr):
		return []FieldError{{
			Code:    CodeIncorrect,
			Message: fmt.Sprintf("Username or password incorrect. %d attempts remaining.", cerr.Remaining),
		}}
	case errors.As(err, &terr):
		return []FieldError{{
			Code:    CodeThrottled,
			Message: fmt.Sprintf("Too many failed attempts. Try again in %s.", terr.RetryAfter.Round(time.Second)),
		}}
	case errors.As(err, &cferr):
		return []FieldError{{
			Field:   cferr.Field,
			Code:    CodeTaken,
			Message: fmt.Sprintf("This %s is already registered.", cferr.Field),
		}}
	}

	return []FieldError{{Code: ErrorCode(err), Message: errorMessage(err)}}
}

// ErrorCode maps err to a stable machine-readable code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeInvalidFormat
	case errors.Is(err, ErrInvalidCredentials):
		return CodeIncorrect
	case errors.Is(err, ErrAccountInactive):
		return CodeInactive
	case errors.Is(err, ErrThrottled):
		return CodeThrottled
	case errors.Is(err, ErrConflict):
		return CodeTaken
	case errors.Is(err, ErrSessionInvalid):
		return CodeSession
	case errors.Is(err, ErrAlreadyAuthenticated):
		return CodeAuthenticated
	case errors.Is(err, ErrActivationInvalid):
		return CodeActivation
	case errors.Is(err, ErrActivationMailFailed):
		return CodeMailFailed
	case errors.Is(err, ErrStorageUnavailable), errors.Is(err, ErrStorageTimeout):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrAccountInactive):
		return "Account is not activated."
	case errors.Is(err, ErrSessionInvalid):
		return "Please log in again."
	case errors.Is(err, ErrAlreadyAuthenticated):
		return "You are already logged in."
	case errors.Is(err, ErrActivationInvalid):
		return "Activation key is incorrect or already used."
	case errors.Is(err, ErrActivationMailFailed):
		return "Account created but the activation email could not be sent."
	case errors.Is(err, ErrStorageUnavailable), errors.Is(err, ErrStorageTimeout):
		return "Service temporarily unavailable."
	default:
		return "Internal error."
	}
}
