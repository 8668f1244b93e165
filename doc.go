// Package sessionauth is a username/password authentication engine with
// server-side sessions.
//
// The [Engine] verifies credentials, issues and validates origin-bound
// sessions, throttles failed logins per origin, registers and activates
// accounts, and changes passwords. It holds no durable state of its own:
// accounts live in an [account.Store], sessions and the attempt ledger in
// Redis, and every security-relevant outcome is appended to an activity log.
//
// # Architecture boundaries
//
// The engine never touches HTTP. Callers pass the session token, the client
// origin and optionally the request time in each request struct, and receive
// the token and its expiry back. Cookie handling lives in the middleware
// package and in the cmd/authd server.
//
// # Invariants
//
//   - At most Throttle.MaxAttempts failed logins per origin within a lockout window.
//   - At most one session per username. Creating a session replaces the others atomically.
//   - A session is valid only from the origin it was created from.
//
// # Construction
//
//	engine, err := sessionauth.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithAccountStore(accounts).
//		WithAuditSink(activity).
//		WithMailer(sender).
//		Build()
package sessionauth
