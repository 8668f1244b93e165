package sessionauth

import (
	"time"

	"github.com/MrEthical07/sessionauth/session"
)

// SessionState is the outcome of a session check.
type SessionState int

const (
	// SessionValid means the token resolves to a live session bound to the
	// presented origin.
	SessionValid SessionState = iota
	// SessionNotFound means the token is unknown. The caller should clear it.
	SessionNotFound
	// SessionOriginMismatch means the token was presented from a different
	// origin. Every session of the user has been deleted.
	SessionOriginMismatch
	// SessionExpired means now is past the session expiry. Every session of
	// the user has been deleted.
	SessionExpired
)

func (s SessionState) String() string {
	switch s {
	case SessionValid:
		return "valid"
	case SessionNotFound:
		return "not_found"
	case SessionOriginMismatch:
		return "origin_mismatch"
	case SessionExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// SessionInfo is the public view of a stored session. It never carries the
// token.
type SessionInfo struct {
	AccountID string    `json:"account_id"`
	Username  string    `json:"username"`
	Origin    string    `json:"origin"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func sessionInfo(s *session.Session) SessionInfo {
	return SessionInfo{
		AccountID: s.AccountID,
		Username:  s.Username,
		Origin:    s.Origin,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

// SessionCheck is the result of CheckSession. Session is set only when State
// is SessionValid.
type SessionCheck struct {
	State   SessionState
	Session *SessionInfo
}

// Valid reports whether the check found a live session.
func (c SessionCheck) Valid() bool {
	return c.State == SessionValid && c.Session != nil
}

// LoginRequest carries the credentials, the caller's current token if any,
// and the request origin. A zero Now uses the engine clock.
type LoginRequest struct {
	Username string
	Password string
	Token    string
	Origin   string
	Now      time.Time
}

// LoginResult is a successful login. When AlreadyAuthenticated is set, Token
// is the caller's existing token and no new session was created.
type LoginResult struct {
	Token                string      `json:"-"`
	ExpiresAt            time.Time   `json:"expires_at"`
	Session              SessionInfo `json:"session"`
	AlreadyAuthenticated bool        `json:"already_authenticated"`
}

// SessionRequest identifies a session by token and origin.
type SessionRequest struct {
	Token  string
	Origin string
	Now    time.Time
}

// LogoutResult reports the sessions removed by Logout. Username is empty when
// the token did not resolve.
type LogoutResult struct {
	Username string `json:"username,omitempty"`
	Removed  int    `json:"removed"`
}

// RegisterRequest carries a new account. Token is the caller's current
// session token, if any; registration is refused while it is valid.
type RegisterRequest struct {
	Username        string
	Password        string
	ConfirmPassword string
	Email           string
	Token           string
	Origin          string
	Now             time.Time
}

// RegisterResult describes the stored account.
type RegisterResult struct {
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Active    bool   `json:"active"`
}

// ActivateRequest consumes an activation key.
type ActivateRequest struct {
	Username string
	Key      string
	Origin   string
	Now      time.Time
}

// ChangePasswordRequest replaces the password of Username after verifying
// Current.
type ChangePasswordRequest struct {
	Username   string
	Current    string
	New        string
	ConfirmNew string
	Origin     string
	Now        time.Time
}

// ChangePasswordResult reports how many sessions were revoked, which is
// non-zero only with Password.InvalidateSessionsOnChange.
type ChangePasswordResult struct {
	SessionsRevoked int `json:"sessions_revoked"`
}
