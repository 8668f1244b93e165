package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/sessionauth"
)

// DefaultCookieName carries the session token when Options.CookieName is empty.
const DefaultCookieName = "auth_session"

// SessionChecker resolves a token to its session. *sessionauth.Engine
// implements it.
type SessionChecker interface {
	CurrentSession(ctx context.Context, req sessionauth.SessionRequest) (*sessionauth.SessionInfo, error)
}

// Options configures Guard.
type Options struct {
	CookieName string
	// Origin extracts the request origin. Defaults to RemoteIP.
	Origin func(*http.Request) string
}

type sessionContextKey struct{}

// SessionFromContext returns the session stored by Guard.
func SessionFromContext(ctx context.Context) (*sessionauth.SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey{}).(*sessionauth.SessionInfo)
	return info, ok
}

// WithSession returns ctx carrying info.
func WithSession(ctx context.Context, info *sessionauth.SessionInfo) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, info)
}

// RequireSession is Guard with default options.
func RequireSession(checker SessionChecker) func(http.Handler) http.Handler {
	return Guard(checker, Options{})
}

// Guard rejects requests without a valid session for the request origin and
// passes the rest on with the session in their context.
func Guard(checker SessionChecker, opts Options) func(http.Handler) http.Handler {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.Origin == nil {
		opts.Origin = RemoteIP
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if checker == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := Token(r, opts.CookieName)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			info, err := checker.CurrentSession(r.Context(), sessionauth.SessionRequest{
				Token:  token,
				Origin: opts.Origin(r),
			})
			switch {
			case errors.Is(err, sessionauth.ErrSessionInvalid):
				ClearCookie(w, opts.CookieName)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			case err != nil:
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), info)))
		})
	}
}

// Token returns the session token from the named cookie, falling back to an
// Authorization bearer header.
func Token(r *http.Request, cookieName string) (string, bool) {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r.Header.Get("Authorization"))
}

// ClearCookie expires the session cookie on the client.
func ClearCookie(w http.ResponseWriter, cookieName string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
