package session

import "time"

// Session is one authenticated login, bound to the origin it was created from.
// Token is the Redis key suffix and is not part of the encoded payload.
type Session struct {
	Token     string
	AccountID string
	Username  string
	Origin    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ExpiredAt reports whether the session is expired at now. The boundary is
// exclusive: a session whose expiry equals now is still valid.
func (s *Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
