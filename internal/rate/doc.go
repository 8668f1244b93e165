// Package rate implements the per-origin failed-login ledger backing the
// engine's throttle.
//
// # Storage layout
//
// Each origin has a hash at {<prefix>}:a:<origin> holding "count" and
// "expires_at" (unix milliseconds). A sorted set at {<prefix>}:ai indexes
// origins by expires_at so [Ledger.PurgeExpired] can sweep without scanning
// keys. The braces are a Redis Cluster hash tag: every ledger key lands in one
// slot, which the purge script needs because it derives record keys from the
// index.
//
// # Window semantics
//
// A login reserves its attempt with [Ledger.Reserve] before credentials are
// checked, and settles it afterwards: [Ledger.Confirm] keeps it as a failure
// and pushes expires_at to now + lockout, [Ledger.Release] gives it back.
// Records are removed by PurgeExpired, or by Reserve when it meets one that
// has expired; there is no Redis TTL on them and no sliding decrement.
package rate
