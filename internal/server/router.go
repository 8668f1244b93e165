package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/middleware"
)

// Engine is the slice of *sessionauth.Engine the transport calls.
type Engine interface {
	Login(ctx context.Context, req sessionauth.LoginRequest) (*sessionauth.LoginResult, error)
	Logout(ctx context.Context, req sessionauth.SessionRequest) (sessionauth.LogoutResult, error)
	CurrentSession(ctx context.Context, req sessionauth.SessionRequest) (*sessionauth.SessionInfo, error)
	Register(ctx context.Context, req sessionauth.RegisterRequest) (*sessionauth.RegisterResult, error)
	DirectRegister(ctx context.Context, req sessionauth.RegisterRequest) (*sessionauth.RegisterResult, error)
	Activate(ctx context.Context, req sessionauth.ActivateRequest) error
	ChangePassword(ctx context.Context, req sessionauth.ChangePasswordRequest) (*sessionauth.ChangePasswordResult, error)
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	CookieName   string
	CookieSecure bool
	// TrustForwardedFor takes the origin from the last X-Forwarded-For entry,
	// the one appended by the proxy in front of the server.
	TrustForwardedFor bool
	// AllowDirectRegister exposes POST /auth/v1/register/direct.
	AllowDirectRegister bool
	// Metrics is mounted on GET /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Handler binds the engine to HTTP.
type Handler struct {
	engine Engine
	opts   Options
	logger *slog.Logger
}

// NewHandler fills option defaults and returns the handler.
func NewHandler(engine Engine, opts Options) *Handler {
	if opts.CookieName == "" {
		opts.CookieName = middleware.DefaultCookieName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine: engine,
		opts:   opts,
		logger: logger.With("module", "http"),
	}
}

// NewRouter registers the routes and the middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)

	r.Get("/healthz", h.healthz)
	if h.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.opts.Metrics)
	}

	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Post("/logout", h.logout)
		r.Get("/session", h.session)
		r.Post("/register", h.register)
		if h.opts.AllowDirectRegister {
			r.Post("/register/direct", h.registerDirect)
		}
		r.Post("/activate", h.activate)
		r.Get("/activate", h.activate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(h.engine, middleware.Options{
				CookieName: h.opts.CookieName,
				Origin:     h.readIP,
			}))
			r.Post("/password", h.changePassword)
		})
	})

	return r
}
