// Package httpapi exposes the goSession engine over HTTP with a chi router.
package httpapi

import (
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Route names keyed into the rate limit table.
const (
	RouteSignup  = "auth-signup"
	RouteSignin  = "auth-signin"
	RouteRefresh = "auth-refresh"
	RouteLogout  = "auth-logout"
)

// Options configures [NewRouter].
type Options struct {
	Logger *zap.Logger
	// MetricsHandler is mounted at /metrics when non-nil.
	MetricsHandler http.Handler
	// RequestTimeout bounds every request; zero means 30s.
	RequestTimeout time.Duration
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool
}

type handler struct {
	engine *goSession.Engine
	cookie goSession.CookieConfig
	log    *zap.Logger
}

// NewRouter returns the HTTP surface of engine.
func NewRouter(engine *goSession.Engine, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	h := &handler{
		engine: engine,
		cookie: engine.Config().Cookie,
		log:    log,
	}

	r := chi.NewRouter()
	if opts.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(timeout))
	r.Use(middleware.RequestLogger(log))

	r.Get("/healthz", h.health)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.With(middleware.RateGate(engine, RouteSignup)).Post("/signup", h.signUp)
		r.With(middleware.RateGate(engine, RouteSignin)).Post("/signin", h.signIn)
		r.With(middleware.RateGate(engine, RouteRefresh)).Post("/refresh", h.refresh)
		r.With(middleware.RateGate(engine, RouteLogout)).Post("/logout", h.logout)
		r.With(middleware.Guard(engine, log)).Get("/me", h.me)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	return r
}
