package rate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const reserveScript = `
local now = tonumber(ARGV[1])
local purged = 0
if redis.call("EXISTS", KEYS[1]) == 1 then
  local exp = tonumber(redis.call("HGET", KEYS[1], "expires_at"))
  if exp == nil or exp <= now then
    redis.call("DEL", KEYS[1])
    redis.call("ZREM", KEYS[2], ARGV[4])
    purged = 1
  end
end
local count = tonumber(redis.call("HGET", KEYS[1], "count") or "0")
if count >= tonumber(ARGV[3]) then
  return {0, count, tonumber(redis.call("HGET", KEYS[1], "expires_at") or "0"), purged}
end
count = redis.call("HINCRBY", KEYS[1], "count", 1)
if count == 1 then
  redis.call("HSET", KEYS[1], "expires_at", ARGV[2])
  redis.call("ZADD", KEYS[2], ARGV[2], ARGV[4])
end
return {1, count, tonumber(redis.call("HGET", KEYS[1], "expires_at") or "0"), purged}
`

var reserveLua = redis.NewScript(reserveScript)

const confirmScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  redis.call("HSET", KEYS[1], "count", 1)
end
redis.call("HSET", KEYS[1], "expires_at", ARGV[1])
redis.call("ZADD", KEYS[2], ARGV[1], ARGV[2])
return tonumber(redis.call("HGET", KEYS[1], "count"))
`

var confirmLua = redis.NewScript(confirmScript)

const releaseScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local count = redis.call("HINCRBY", KEYS[1], "count", -1)
if count <= 0 then
  redis.call("DEL", KEYS[1])
  redis.call("ZREM", KEYS[2], ARGV[1])
  return 0
end
return count
`

var releaseLua = redis.NewScript(releaseScript)

const purgeExpiredScript = `
local origins = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
for _, origin in ipairs(origins) do
  redis.call("DEL", ARGV[2] .. origin)
end
if #origins > 0 then
  redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
end
return #origins
`

var purgeExpiredLua = redis.NewScript(purgeExpiredScript)

// Config holds ledger tuning parameters.
type Config struct {
	Prefix          string
	LockoutDuration time.Duration
}

// Record is the stored attempt state for one origin.
type Record struct {
	Origin    string
	Count     int
	ExpiresAt time.Time
}

// Reservation is the outcome of [Ledger.Reserve].
type Reservation struct {
	// Allowed is false when the origin is at the limit; nothing was counted.
	Allowed bool
	// Count includes the reserved attempt when Allowed.
	Count     int
	ExpiresAt time.Time
	// Purged reports that an expired record was dropped before counting.
	Purged bool
}

// Ledger persists failed login attempts per origin in Redis.
type Ledger struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Ledger] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Ledger {
	if cfg.Prefix == "" {
		cfg.Prefix = "sa"
	}
	return &Ledger{
		redis:  redisClient,
		config: cfg,
	}
}

// Every key shares the {prefix} hash tag so the scripts touch a single
// cluster slot.
func (l *Ledger) recordKey(origin string) string {
	return l.recordPrefix() + origin
}

func (l *Ledger) recordPrefix() string {
	return "{" + l.config.Prefix + "}:a:"
}

func (l *Ledger) indexKey() string {
	return "{" + l.config.Prefix + "}:ai"
}

// Reserve counts one attempt for origin unless it already holds limit or more.
// The check and the increment are a single script, so concurrent callers
// cannot reserve past limit. A record whose expiry is at or before now is
// dropped first and the window starts over.
//
// A new record expires at now + lockout. Every reserved attempt must be
// settled with [Ledger.Confirm] or [Ledger.Release].
func (l *Ledger) Reserve(ctx context.Context, origin string, now time.Time, limit int) (Reservation, error) {
	vals, err := reserveLua.Run(
		ctx,
		l.redis,
		[]string{l.recordKey(origin), l.indexKey()},
		now.UnixMilli(),
		now.Add(l.config.LockoutDuration).UnixMilli(),
		limit,
		origin,
	).Int64Slice()
	if err != nil {
		return Reservation{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(vals) != 4 {
		return Reservation{}, fmt.Errorf("%w: reserve returned %d values", ErrCorruptRecord, len(vals))
	}

	return Reservation{
		Allowed:   vals[0] == 1,
		Count:     int(vals[1]),
		ExpiresAt: time.UnixMilli(vals[2]),
		Purged:    vals[3] == 1,
	}, nil
}

// Confirm marks a reserved attempt as a failure and resets the origin's
// expiry to now + lockout. It returns the current count.
func (l *Ledger) Confirm(ctx context.Context, origin string, now time.Time) (int, error) {
	expiresAt := now.Add(l.config.LockoutDuration).UnixMilli()

	count, err := confirmLua.Run(
		ctx,
		l.redis,
		[]string{l.recordKey(origin), l.indexKey()},
		expiresAt,
		origin,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// Release gives back a reserved attempt that turned out not to be a failure.
// The record is deleted when its count drops to zero.
func (l *Ledger) Release(ctx context.Context, origin string) error {
	err := releaseLua.Run(
		ctx,
		l.redis,
		[]string{l.recordKey(origin), l.indexKey()},
		origin,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Count returns the stored failure count for origin. Missing records return
// zero.
func (l *Ledger) Count(ctx context.Context, origin string) (int, error) {
	count, err := l.redis.HGet(ctx, l.recordKey(origin), "count").Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Lookup returns the record for origin and whether one exists. It has no side
// effects; an expired record that was not yet purged is returned as stored.
func (l *Ledger) Lookup(ctx context.Context, origin string) (Record, bool, error) {
	fields, err := l.redis.HGetAll(ctx, l.recordKey(origin)).Result()
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return Record{}, false, nil
	}

	count, err := strconv.Atoi(fields["count"])
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: count %q", ErrCorruptRecord, fields["count"])
	}
	expiresMillis, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: expires_at %q", ErrCorruptRecord, fields["expires_at"])
	}

	return Record{
		Origin:    origin,
		Count:     count,
		ExpiresAt: time.UnixMilli(expiresMillis),
	}, true, nil
}

// PurgeExpired deletes every record whose expiry is at or before now and
// returns how many were removed.
func (l *Ledger) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	removed, err := purgeExpiredLua.Run(
		ctx,
		l.redis,
		[]string{l.indexKey()},
		now.UnixMilli(),
		l.recordPrefix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(removed), nil
}
