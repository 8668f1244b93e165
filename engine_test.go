package sessionauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessionauth/account"
	"github.com/MrEthical07/sessionauth/internal/audit"
	"github.com/MrEthical07/sessionauth/internal/rate"
)

func TestBuildRequiresDependencies(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	if _, err := New().WithConfig(testConfig()).WithAccountStore(account.NewMemoryStore()).Build(); err == nil {
		t.Fatal("expected error without redis")
	}
	if _, err := New().WithConfig(testConfig()).WithRedis(client).Build(); err == nil {
		t.Fatal("expected error without account store")
	}

	bad := testConfig()
	bad.Throttle.MaxAttempts = 0
	if _, err := New().WithConfig(bad).WithRedis(client).WithAccountStore(account.NewMemoryStore()).Build(); err == nil {
		t.Fatal("expected config validation error")
	}

	b := New().WithConfig(testConfig()).WithRedis(client).WithAccountStore(account.NewMemoryStore())
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("a builder must not build twice")
	}
}

func TestBuildPurgesExpiredAttempts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := testConfig()
	ledger := rate.New(client, rate.Config{Prefix: cfg.Throttle.RedisPrefix, LockoutDuration: cfg.Throttle.LockoutDuration})
	ctx := context.Background()
	recordFailure(t, ledger, "1.1.1.1", testEpoch.Add(-time.Hour))
	recordFailure(t, ledger, "2.2.2.2", testEpoch)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccountStore(account.NewMemoryStore()).
		WithClock(&testClock{now: testEpoch}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	if n, _ := ledger.Count(ctx, "1.1.1.1"); n != 0 {
		t.Fatalf("expected expired record purged at startup, count=%d", n)
	}
	if n, _ := ledger.Count(ctx, "2.2.2.2"); n != 1 {
		t.Fatalf("expected live record kept, count=%d", n)
	}
}

func TestBuildFailsWhenRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.SetError("ERR server unavailable")

	_, err := New().WithConfig(testConfig()).WithRedis(client).WithAccountStore(account.NewMemoryStore()).Build()
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable from startup purge, got %v", err)
	}
}

func TestStartPurgerRemovesExpiredRecords(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Throttle.PurgeInterval = 10 * time.Millisecond })
	ctx := context.Background()

	recordFailure(t, env.engine.ledger, "1.1.1.1", testEpoch)
	env.clock.Advance(time.Hour)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	env.engine.StartPurger(runCtx)
	env.engine.StartPurger(runCtx)

	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := env.engine.ledger.Count(ctx, "1.1.1.1")
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("purger did not remove the expired record")
		}
		time.Sleep(5 * time.Millisecond)
	}

	env.engine.Close()
}

func TestAuditFailureDoesNotChangeOutcome(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "alice", "correct-horse")
	env.sink.mu.Lock()
	env.sink.err = errors.New("disk full")
	env.sink.mu.Unlock()

	env.login(t, "alice", "correct-horse", "1.2.3.4")

	if got := env.engine.metrics.Value(MetricAuditWriteFailed); got != 1 {
		t.Fatalf("expected one audit failure, got %d", got)
	}
}

func TestAuditRecordShape(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	long := strings.Repeat("x", 40)
	_, _ = env.engine.Login(ctx, LoginRequest{Username: long, Password: "correct-horse", Origin: "1.2.3.4"})
	if len(env.sink.records) != 0 {
		t.Fatal("validation failures are not audited")
	}

	env.engine.writeAudit(ctx, testEpoch, long, ActivityLoginFail, strings.Repeat("é", 400), "1.2.3.4")
	rec := env.sink.last()
	if rec.Username != ActivityGuest {
		t.Fatalf("expected oversize username recorded as guest, got %q", rec.Username)
	}
	if len(rec.Detail) > 500 || !strings.HasPrefix(rec.Detail, "é") || strings.ContainsRune(rec.Detail, '\uFFFD') {
		t.Fatalf("detail must be cut on a rune boundary within 500 bytes, got %d bytes", len(rec.Detail))
	}
	if !rec.Timestamp.Equal(testEpoch) || rec.Origin != "1.2.3.4" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	env.engine.writeAudit(ctx, testEpoch, "", ActivityLogout, "", "1.2.3.4")
	rec = env.sink.last()
	if rec.Username != ActivityGuest || rec.Detail != "none" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	env.engine.writeAudit(ctx, testEpoch, "alice", ActivityLogout, "", strings.Repeat("o", 100))
	if rec = env.sink.last(); len(rec.Origin) != 64 {
		t.Fatalf("expected origin cut to the 64-byte column, got %d bytes", len(rec.Origin))
	}
}

func TestAuditMirrorReceivesRecords(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := testConfig()
	cfg.Audit.Mirror = true
	var buf bytes.Buffer
	mirror := NewJSONActivitySink(&buf)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccountStore(account.NewMemoryStore()).
		WithAuditSink(audit.NoOpSink{}).
		WithAuditMirror(mirror).
		WithClock(&testClock{now: testEpoch}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := engine.Logout(context.Background(), SessionRequest{Token: "missing", Origin: "1.2.3.4"}); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	engine.Close()

	var rec ActivityRecord
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("mirror output is not one JSON record: %v (%q)", err, buf.String())
	}
	if rec.Code != ActivityLogout || rec.Username != ActivityGuest {
		t.Fatalf("unexpected mirrored record: %+v", rec)
	}
	if engine.AuditDropped() != 0 {
		t.Fatalf("expected no drops, got %d", engine.AuditDropped())
	}
}

func TestAuditMirrorFailuresAreReported(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := testConfig()
	cfg.Audit.Mirror = true
	primary := &recordingSink{}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccountStore(account.NewMemoryStore()).
		WithAuditSink(primary).
		WithAuditMirror(&recordingSink{err: errors.New("mirror down")}).
		WithClock(&testClock{now: testEpoch}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := engine.Logout(context.Background(), SessionRequest{Token: "missing", Origin: "1.2.3.4"}); err != nil {
			t.Fatalf("Logout: %v", err)
		}
	}
	engine.Close()

	if got := engine.AuditMirrorFailed(); got != 2 {
		t.Fatalf("expected 2 mirror failures, got %d", got)
	}
	if n := len(primary.byCode(ActivityLogout)); n != 2 {
		t.Fatalf("mirror failures must not affect the activity log, got %d records", n)
	}
	if got := engine.metrics.Value(MetricAuditWriteFailed); got != 0 {
		t.Fatalf("mirror failures are not activity log failures, got %d", got)
	}
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	env.redis.SetError("ERR down")
	if err := env.engine.Ping(context.Background()); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
