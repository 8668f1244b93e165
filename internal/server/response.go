package server

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/middleware"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func errorBody(code, message string) sessionauth.Result[any] {
	return sessionauth.Result[any]{Errors: []sessionauth.FieldError{{Code: code, Message: message}}}
}

// writeResult renders data and err as a Result with the status err maps to.
func writeResult[T any](w http.ResponseWriter, okStatus int, data T, err error) {
	status := okStatus
	if err != nil {
		status = statusFor(err)
		var terr *sessionauth.ThrottleError
		if errors.As(err, &terr) {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(terr.RetryAfter.Seconds()))))
		}
	}
	writeJSON(w, status, sessionauth.ResultOf(data, err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sessionauth.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, sessionauth.ErrInvalidCredentials), errors.Is(err, sessionauth.ErrSessionInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, sessionauth.ErrAccountInactive), errors.Is(err, sessionauth.ErrAlreadyAuthenticated):
		return http.StatusForbidden
	case errors.Is(err, sessionauth.ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, sessionauth.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, sessionauth.ErrActivationInvalid):
		return http.StatusNotFound
	case errors.Is(err, sessionauth.ErrActivationMailFailed):
		return http.StatusBadGateway
	case errors.Is(err, sessionauth.ErrStorageUnavailable), errors.Is(err, sessionauth.ErrStorageTimeout),
		errors.Is(err, sessionauth.ErrEngineNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// readIP returns the origin of r. With TrustForwardedFor the last
// X-Forwarded-For entry wins: it is the one the trusted proxy appended, while
// earlier entries come from the client.
func (h *Handler) readIP(r *http.Request) string {
	if h.opts.TrustForwardedFor {
		xff := r.Header.Values("X-Forwarded-For")
		if len(xff) > 0 {
			last := xff[len(xff)-1]
			if i := strings.LastIndex(last, ","); i >= 0 {
				last = last[i+1:]
			}
			if last = strings.TrimSpace(last); last != "" {
				return last
			}
		}
	}
	return middleware.RemoteIP(r)
}
