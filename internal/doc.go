// Package internal contains helpers that are private to sessionauth, mainly
// secure random generation for session tokens and activation keys.
//
// # Sub-packages
//
//   - audit: activity log records, synchronous sinks and the async mirror dispatcher
//   - rate: Redis-backed attempt ledger
//   - bootstrap: service configuration loading for cmd/authd
//   - server: chi HTTP transport for cmd/authd
//
// # What this package must NOT do
//
//   - Export types that appear in the public sessionauth API.
//   - Be imported by any package outside the sessionauth module.
package internal
