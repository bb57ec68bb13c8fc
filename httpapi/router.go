// Package httpapi exposes the Engine as a cookie-based JSON API on a chi
// router.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/cookieauth"
	"github.com/MrEthical07/cookieauth/middleware"
	"github.com/MrEthical07/cookieauth/transport"
)

// Service is the Engine surface the handlers call. *cookieauth.Engine
// satisfies it.
type Service interface {
	Register(ctx context.Context, in cookieauth.RegisterInput) (*cookieauth.AuthResult, error)
	Login(ctx context.Context, in cookieauth.LoginInput) (*cookieauth.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*cookieauth.RefreshResult, error)
	Logout(ctx context.Context, accessToken string)
	Authenticate(ctx context.Context, accessToken string) (*cookieauth.Principal, error)
	VerifyEmail(ctx context.Context, code string) (cookieauth.PublicUser, error)
	RequestPasswordReset(ctx context.Context, email string) (*cookieauth.ResetRequestResult, error)
	ResetPassword(ctx context.Context, in cookieauth.ResetPasswordInput) (cookieauth.PublicUser, error)
	GetUser(ctx context.Context, userID string) (cookieauth.PublicUser, error)
	ListSessions(ctx context.Context, userID, currentSessionID string) ([]cookieauth.SessionView, error)
	RevokeSession(ctx context.Context, userID, sessionID string) error
	Ping(ctx context.Context) error
}

var _ Service = (*cookieauth.Engine)(nil)

// Config wires the router.
type Config struct {
	Service Service
	Cookies transport.Cookies
	Logger  *slog.Logger

	// CORSOrigin enables credentialed CORS for one origin when non-empty.
	CORSOrigin string
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
	// RateLimiter throttles the public /auth routes per client IP. Optional.
	RateLimiter *middleware.IPRateLimiter
	// Metrics is mounted at GET /metrics when non-nil.
	Metrics http.Handler
}

// NewRouter returns the API handler.
//
// Middleware order:
//
//	[RealIP] → Recoverer → ClientInfo → AccessLog → [CORS]
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{svc: cfg.Service, cookies: cfg.Cookies, logger: logger}

	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.ClientInfo)
	r.Use(middleware.AccessLog(logger))
	if cfg.CORSOrigin != "" {
		r.Use(middleware.CORS(cfg.CORSOrigin))
	}

	r.Get("/healthz", h.health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	// --- public ---
	r.Route("/auth", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Get("/refresh", h.refresh)
		r.Get("/logout", h.logout)
		r.Get("/email/verify/{code}", h.verifyEmail)
		r.Post("/password/forgot", h.forgotPassword)
		r.Post("/password/reset", h.resetPassword)
	})

	// --- authenticated ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.Service, logger))

		r.Get("/user", h.getUser)
		r.Get("/sessions", h.listSessions)
		r.Delete("/sessions/{id}", h.revokeSession)
	})

	return r
}
