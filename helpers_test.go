package sessionauth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessionauth/account"
	"github.com/MrEthical07/sessionauth/internal/audit"
	"github.com/MrEthical07/sessionauth/internal/rate"
	"github.com/MrEthical07/sessionauth/mail"
)

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu      sync.Mutex
	records []audit.Record
	err     error
}

func (s *recordingSink) Append(_ context.Context, r audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

func (s *recordingSink) byCode(code string) []audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Record
	for _, r := range s.records {
		if r.Code == code {
			out = append(out, r)
		}
	}
	return out
}

func (s *recordingSink) last() audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return audit.Record{}
	}
	return s.records[len(s.records)-1]
}

// countingStore counts lookups and can inject transient failures.
// recordFailure stores one failed attempt for origin at now.
func recordFailure(t *testing.T, ledger *rate.Ledger, origin string, now time.Time) {
	t.Helper()
	ctx := context.Background()
	if _, err := ledger.Reserve(ctx, origin, now, 1000); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := ledger.Confirm(ctx, origin, now); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
}

type countingStore struct {
	*account.MemoryStore
	finds     atomic.Int64
	failFinds atomic.Int64
}

var errStoreDown = errors.New("connection reset")

func (s *countingStore) FindByUsername(ctx context.Context, username string) (*account.Account, error) {
	s.finds.Add(1)
	if s.failFinds.Load() > 0 {
		s.failFinds.Add(-1)
		return nil, errStoreDown
	}
	return s.MemoryStore.FindByUsername(ctx, username)
}

type testEnv struct {
	engine   *Engine
	redis    *miniredis.Miniredis
	client   *redis.Client
	accounts *countingStore
	sink     *recordingSink
	mailer   *mail.Recorder
	clock    *testClock
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Throttle.MaxAttempts = 3
	cfg.Throttle.LockoutDuration = 30 * time.Minute
	cfg.Throttle.PurgeInterval = 0
	cfg.Session.Duration = time.Hour
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = 4
	cfg.Registration.ActivationURL = "https://example.com/"
	cfg.Registration.SiteName = "Example"
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	env := &testEnv{
		redis:    mr,
		client:   client,
		accounts: &countingStore{MemoryStore: account.NewMemoryStore()},
		sink:     &recordingSink{},
		mailer:   &mail.Recorder{},
		clock:    &testClock{now: testEpoch},
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccountStore(env.accounts).
		WithAuditSink(env.sink).
		WithMailer(env.mailer).
		WithClock(env.clock).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine

	return env
}

// seed registers and activates an account directly through the engine.
func (env *testEnv) seed(t *testing.T, username, password string) {
	t.Helper()
	_, err := env.engine.DirectRegister(context.Background(), RegisterRequest{
		Username:        username,
		Password:        password,
		ConfirmPassword: password,
		Email:           username + "@example.com",
		Origin:          "127.0.0.1",
	})
	if err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
}

func (env *testEnv) login(t *testing.T, username, password, origin string) *LoginResult {
	t.Helper()
	res, err := env.engine.Login(context.Background(), LoginRequest{
		Username: username,
		Password: password,
		Origin:   origin,
	})
	if err != nil {
		t.Fatalf("login %s from %s: %v", username, origin, err)
	}
	return res
}
