package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/account"
	"github.com/MrEthical07/sessionauth/password"
)

type userState struct {
	username string
	origin   string
	mu       sync.Mutex
	token    string
}

const loadPassword = "load-test-password"

func main() {
	var (
		users       = flag.Int("users", 2000, "number of accounts to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "session checks to run")
		logins      = flag.Int("logins", 5000, "logins to run")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt", "redis key prefix")
		algorithm   = flag.String("algorithm", password.AlgorithmBcrypt, "password algorithm (argon2id or bcrypt)")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 || *logins <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, ops, and logins must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := sessionauth.DefaultConfig()
	cfg.Throttle.RedisPrefix = *prefix
	cfg.Session.RedisPrefix = *prefix
	cfg.Password.Algorithm = *algorithm
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = 4
	if cfg.Password.Algorithm == password.AlgorithmBcrypt {
		cfg.Policy.MaxPassword = password.BcryptMaxLength
	}
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := sessionauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccountStore(account.NewMemoryStore()).
		WithAuditSink(sessionauth.NewJSONActivitySink(io.Discard)).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]userState, *users)
	fmt.Printf("seeding %d accounts...\n", *users)
	startSeed := time.Now()
	for i := 0; i < *users; i++ {
		states[i] = userState{
			username: fmt.Sprintf("user%05d", i),
			origin:   fmt.Sprintf("10.%d.%d.%d", (i>>16)&0xFF, (i>>8)&0xFF, i&0xFF),
		}
		_, err := engine.DirectRegister(ctx, sessionauth.RegisterRequest{
			Username:        states[i].username,
			Password:        loadPassword,
			ConfirmPassword: loadPassword,
			Email:           states[i].username + "@load.test",
			Origin:          states[i].origin,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loginStats := runPhase(states, *logins, *concurrency, 7919, func(s *userState) error {
		res, err := engine.Login(ctx, sessionauth.LoginRequest{
			Username: s.username,
			Password: loadPassword,
			Origin:   s.origin,
		})
		if err != nil {
			return err
		}
		s.token = res.Token
		return nil
	})
	checkStats := runPhase(states, *ops, *concurrency, 6151, func(s *userState) error {
		if s.token == "" {
			return sessionauth.ErrSessionInvalid
		}
		check, err := engine.CheckSession(ctx, sessionauth.SessionRequest{Token: s.token, Origin: s.origin})
		if err != nil {
			return err
		}
		if !check.Valid() {
			return fmt.Errorf("session %s", check.State)
		}
		return nil
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("check", checkStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("sessions created=%d replaced=%d valid=%d storage_errors=%d\n",
		snap.Counters[sessionauth.MetricSessionCreated],
		snap.Counters[sessionauth.MetricSessionReplaced],
		snap.Counters[sessionauth.MetricSessionValid],
		snap.Counters[sessionauth.MetricStorageError],
	)
}

// runPhase calls op ops times against random users. A user's state is locked
// for the duration of the call.
func runPhase(states []userState, ops, concurrency int, seed int64, op func(*userState) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]

				state.mu.Lock()
				t0 := time.Now()
				err := op(state)
				d := time.Since(t0)
				state.mu.Unlock()
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
