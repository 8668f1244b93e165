// Package session provides the Redis-backed session store and the compact
// binary session encoding.
//
// # Layout
//
// A session lives at {<prefix>}:s:<token>. Each username has an index set at
// {<prefix>}:u:<username> listing its tokens. Creation replaces every indexed
// session of the username and writes the new one in a single Lua script, so
// concurrent logins for the same username serialize inside Redis and at most
// one session survives.
//
// The scripts build session keys from index members, which Redis Cluster only
// allows within one slot. The braces make the prefix a hash tag, so all keys of
// a store share a slot and a cluster client works unchanged.
//
// # Architecture boundaries
//
// This package stores and deletes sessions. It does not decide validity:
// origin binding and expiry checks belong to the engine, which is why keys
// outlive ExpiresAt by a retention window.
package session
