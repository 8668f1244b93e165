package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/account"
	"github.com/MrEthical07/sessionauth/internal/server"
	"github.com/MrEthical07/sessionauth/mail"
	"github.com/MrEthical07/sessionauth/metrics/export/prometheus"
	"github.com/MrEthical07/sessionauth/storage/postgres"
)

// Runtime owns the engine, the HTTP server and every backing connection.
type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	engine     *sessionauth.Engine
	httpServer *http.Server
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	logger.Info("bootstrapping authd", "http_addr", cfg.HTTPAddr)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	redisClient, err := connectRedis(ctx, cfg.RedisURL, logger, &closers)
	if err != nil {
		cleanup()
		return nil, err
	}

	var (
		accounts account.Store
		sink     sessionauth.ActivitySink
	)
	if cfg.DatabaseURL == "" {
		logger.Warn("no database configured, accounts are kept in memory")
		accounts = account.NewMemoryStore()
		sink = sessionauth.NewJSONActivitySink(os.Stdout)
	} else {
		db, err := connectPostgres(ctx, cfg, &closers)
		if err != nil {
			cleanup()
			return nil, err
		}
		accounts = postgres.NewAccountRepository(db)
		sink = postgres.NewActivityRepository(db)
	}

	mailer, err := newMailer(cfg.SMTP, logger)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("init mailer: %w", err)
	}

	builder := sessionauth.New().
		WithConfig(cfg.Engine).
		WithRedis(redisClient).
		WithAccountStore(accounts).
		WithAuditSink(sink).
		WithMailer(mailer).
		WithLogger(logger)
	if cfg.Engine.Audit.Mirror {
		builder = builder.WithAuditMirror(sessionauth.NewJSONActivitySink(os.Stderr))
	}
	engine, err := builder.Build()
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	closers = append(closers, engine.Close)

	handler := server.NewHandler(engine, server.Options{
		CookieName:          cfg.CookieName,
		CookieSecure:        cfg.CookieSecure,
		TrustForwardedFor:   cfg.TrustForwardedFor,
		AllowDirectRegister: cfg.AllowDirectRegister,
		Metrics:             prometheus.NewExporter(engine).Handler(),
		Logger:              logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		engine:     engine,
		httpServer: httpServer,
		cleanupFn: func(context.Context) {
			cleanup()
		},
	}, nil
}

func connectRedis(ctx context.Context, url string, logger *slog.Logger, closers *[]func()) (redis.UniversalClient, error) {
	var opts *redis.Options
	if url == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start embedded redis: %w", err)
		}
		*closers = append(*closers, mr.Close)
		logger.Warn("no redis configured, using embedded miniredis", "addr", mr.Addr())
		opts = &redis.Options{Addr: mr.Addr()}
	} else {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	*closers = append(*closers, func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func connectPostgres(ctx context.Context, cfg Config, closers *[]func()) (*sql.DB, error) {
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	*closers = append(*closers, func() { _ = db.Close() })

	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return db, nil
}

func newMailer(cfg mail.SMTPConfig, logger *slog.Logger) (mail.Sender, error) {
	if cfg.Host == "" {
		logger.Warn("no smtp host configured, activation mail is logged")
		return logMailer{logger: logger}, nil
	}
	return mail.NewSMTPSender(cfg)
}

// logMailer writes messages to the log instead of delivering them.
type logMailer struct {
	logger *slog.Logger
}

func (m logMailer) Send(ctx context.Context, msg mail.Message) error {
	if msg.To == "" {
		return mail.ErrNoRecipient
	}
	m.logger.InfoContext(ctx, "activation mail",
		"module", "mail",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.HTMLBody,
	)
	return nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.engine.StartPurger(ctx)

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.cleanupFn(shutdownCtx)
	return runErr
}
