package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis failure surfaced by the store.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned when no session exists for a token.
var ErrNotFound = errors.New("session not found")

const replaceSessionsScript = `
local tokens = redis.call("SMEMBERS", KEYS[1])
local replaced = 0
for _, token in ipairs(tokens) do
  replaced = replaced + redis.call("DEL", ARGV[1] .. token)
end
redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], ARGV[3], "PX", ARGV[4])
redis.call("SADD", KEYS[1], ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return replaced
`

var replaceSessionsLua = redis.NewScript(replaceSessionsScript)

const deleteUserSessionsScript = `
local tokens = redis.call("SMEMBERS", KEYS[1])
local removed = 0
for _, token in ipairs(tokens) do
  removed = removed + redis.call("DEL", ARGV[1] .. token)
end
redis.call("DEL", KEYS[1])
return removed
`

var deleteUserSessionsLua = redis.NewScript(deleteUserSessionsScript)

// Store is a Redis-backed session store enforcing one session per username.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "sa"
	}
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

// Keys share the {prefix} hash tag: the scripts derive session keys from the
// username index, so every key must live in one cluster slot.
func (s *Store) sessionPrefix() string {
	return "{" + s.prefix + "}:s:"
}

func (s *Store) key(token string) string {
	return s.sessionPrefix() + token
}

func (s *Store) userKey(username string) string {
	return "{" + s.prefix + "}:u:" + username
}

// Create deletes every existing session of sess.Username and stores sess, in
// one atomic step. ttl is the Redis lifetime of the key and must cover
// ExpiresAt plus any retention the caller wants for expiry detection. It
// returns how many previous sessions were replaced.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Create(ctx context.Context, sess *Session, ttl time.Duration) (int, error) {
	if sess.Token == "" {
		return 0, errors.New("session token required")
	}
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	data, err := Encode(sess)
	if err != nil {
		return 0, err
	}

	replaced, err := replaceSessionsLua.Run(
		ctx,
		s.redis,
		[]string{s.userKey(sess.Username), s.key(sess.Token)},
		s.sessionPrefix(),
		sess.Token,
		data,
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return int(replaced), nil
}

// Get returns the stored session for token, or ErrNotFound. It does not check
// expiry.
//
//	Performance: 1 Redis GET.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.Token = token

	return sess, nil
}

// DeleteAllForUser removes every session of username and its index, in one
// atomic step. Deleting a user with no sessions is not an error.
func (s *Store) DeleteAllForUser(ctx context.Context, username string) (int, error) {
	removed, err := deleteUserSessionsLua.Run(
		ctx,
		s.redis,
		[]string{s.userKey(username)},
		s.sessionPrefix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(removed), nil
}

// ActiveSessionCount returns the number of live session keys indexed for
// username.
func (s *Store) ActiveSessionCount(ctx context.Context, username string) (int, error) {
	tokens, err := s.redis.SMembers(ctx, s.userKey(username)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(tokens))
	for _, token := range tokens {
		keys = append(keys, s.key(token))
	}
	n, err := s.redis.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(n), nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
