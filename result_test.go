package sessionauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestResultOfSuccess(t *testing.T) {
	res := ResultOf(LogoutResult{Username: "alice", Removed: 1}, nil)
	if !res.OK || len(res.Errors) != 0 || res.Data.Removed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestFieldErrorsMapping(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  string
		wantField string
		contains  string
	}{
		{"credentials", &CredentialError{Remaining: 2}, CodeIncorrect, "", "2 attempts remaining"},
		{"throttled", &ThrottleError{RetryAfter: 90 * time.Second}, CodeThrottled, "", "1m30s"},
		{"conflict", &ConflictError{Field: "email"}, CodeTaken, "email", "email"},
		{"inactive", ErrAccountInactive, CodeInactive, "", "not activated"},
		{"storage", fmt.Errorf("%w: session_get: boom", ErrStorageUnavailable), CodeUnavailable, "", "unavailable"},
		{"timeout", fmt.Errorf("%w: session_get", ErrStorageTimeout), CodeUnavailable, "", "unavailable"},
		{"unknown", errors.New("boom"), CodeInternal, "", "Internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := FieldErrors(tt.err)
			if len(fields) != 1 {
				t.Fatalf("expected one field error, got %+v", fields)
			}
			f := fields[0]
			if f.Code != tt.wantCode || f.Field != tt.wantField {
				t.Fatalf("unexpected field error: %+v", f)
			}
			if !strings.Contains(f.Message, tt.contains) {
				t.Fatalf("expected message containing %q, got %q", tt.contains, f.Message)
			}
		})
	}
}

func TestFieldErrorsKeepsValidationFields(t *testing.T) {
	verr := &ValidationError{Fields: []FieldError{
		{Field: "username", Code: CodeTooShort},
		{Field: "email", Code: CodeInvalidFormat},
	}}
	res := ResultOf[*RegisterResult](nil, verr)
	if res.OK || len(res.Errors) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	res.Errors[0].Code = "mutated"
	if verr.Fields[0].Code != CodeTooShort {
		t.Fatal("FieldErrors must copy the validation fields")
	}
	if !errors.Is(verr, ErrValidation) {
		t.Fatal("ValidationError must unwrap to ErrValidation")
	}
}

func TestResultJSONOmitsToken(t *testing.T) {
	res := ResultOf(&LoginResult{Token: "secret-token", Session: SessionInfo{Username: "alice"}}, nil)
	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(raw), "secret-token") {
		t.Fatalf("token leaked into JSON: %s", raw)
	}
}
