package rate

import "errors"

var (
	// ErrRedisUnavailable wraps every Redis failure surfaced by the ledger.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrCorruptRecord is returned when a stored record or a script reply cannot
	// be parsed.
	ErrCorruptRecord = errors.New("corrupt attempt record")
)
