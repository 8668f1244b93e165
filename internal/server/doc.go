// Package server is the HTTP transport of the authd service. It maps JSON
// requests onto engine calls and renders every outcome as a
// sessionauth.Result. The session token travels in a cookie.
package server
