// Package middleware adapts session checks to net/http.
//
// [Guard] reads the session token from a cookie or an Authorization bearer
// header, checks it against the request origin and stores the resulting
// [sessionauth.SessionInfo] in the request context. Requests without a valid
// session get 401 and the token cookie is cleared.
//
// This package makes no authentication decisions of its own; every decision
// comes from the engine.
package middleware
