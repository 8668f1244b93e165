package sessionauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessionauth/account"
	"github.com/MrEthical07/sessionauth/internal"
	"github.com/MrEthical07/sessionauth/internal/audit"
	"github.com/MrEthical07/sessionauth/internal/rate"
	"github.com/MrEthical07/sessionauth/mail"
	"github.com/MrEthical07/sessionauth/password"
	"github.com/MrEthical07/sessionauth/session"
)

// Builder assembles an Engine. A Builder can build once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts    account.Store
	auditSink   ActivitySink
	auditMirror ActivitySink
	mailer      mail.Sender
	hasher      password.Hasher
	logger      *slog.Logger
	clock       Clock

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig sets the configuration. Build validates it; the builder keeps a
// copy.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing sessions and the attempt ledger.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the credential store.
func (b *Builder) WithAccountStore(store account.Store) *Builder {
	b.accounts = store
	return b
}

// WithAuditSink sets the activity log. Records are appended before the
// operation returns.
func (b *Builder) WithAuditSink(sink ActivitySink) *Builder {
	b.auditSink = sink
	return b
}

// WithAuditMirror sets a best-effort secondary sink fed asynchronously when
// Audit.Mirror is enabled.
func (b *Builder) WithAuditMirror(sink ActivitySink) *Builder {
	b.auditMirror = sink
	return b
}

// WithMailer sets the sender used for activation mail. Register fails without
// one; DirectRegister does not need it.
func (b *Builder) WithMailer(sender mail.Sender) *Builder {
	b.mailer = sender
	return b
}

// WithHasher overrides the hasher built from Config.Password.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithLogger sets the structured logger. Without one, slog.Default is used.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock sets the time source used when a request leaves Now zero.
func (b *Builder) WithClock(clock Clock) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled overrides Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms overrides Config.Metrics.EnableLatencyHistograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and dependencies, runs the startup purge
// of expired attempt records, and returns the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("module", "sessionauth")

	sink := b.auditSink
	if sink == nil {
		logger.Warn("no activity sink configured, activity records are discarded")
		sink = audit.NoOpSink{}
	}

	clock := b.clock
	if clock == nil {
		clock = systemClock{}
	}

	hasher := b.hasher
	if hasher == nil {
		h, err := password.New(cfg.Password.hasherConfig())
		if err != nil {
			return nil, err
		}
		hasher = h
	}

	// Verified against when the username is unknown.
	decoy, err := internal.RandomKey(32)
	if err != nil {
		return nil, err
	}
	dummyHash, err := hasher.Hash(decoy)
	if err != nil {
		return nil, fmt.Errorf("hash decoy password: %w", err)
	}

	engine := &Engine{
		config:    cfg,
		accounts:  b.accounts,
		sessions:  session.NewStore(b.redis, cfg.Session.RedisPrefix),
		hasher:    hasher,
		dummyHash: dummyHash,
		auditSink: sink,
		mailer:    b.mailer,
		clock:     clock,
		logger:    logger,
		metrics:   NewMetrics(cfg.Metrics),
	}
	engine.ledger = rate.New(b.redis, rate.Config{
		Prefix:          cfg.Throttle.RedisPrefix,
		LockoutDuration: cfg.Throttle.LockoutDuration,
	})
	engine.mirror = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Mirror && b.auditMirror != nil,
		BufferSize: cfg.Audit.MirrorBufferSize,
		DropIfFull: cfg.Audit.MirrorDropIfFull,
	}, b.auditMirror)

	if _, err := engine.PurgeExpired(context.Background(), clock.Now()); err != nil {
		engine.mirror.Close()
		return nil, fmt.Errorf("startup purge: %w", err)
	}

	b.built = true

	return engine, nil
}
