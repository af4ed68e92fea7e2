package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hackgods/dental-booking/internal/identity"
	"github.com/hackgods/dental-booking/internal/session"
	"github.com/hackgods/dental-booking/pkg/logging"
)

const defaultSettle = 5 * time.Second

type RouterConfig struct {
	Sessions *session.Store
	Resolver *identity.Resolver
	Logger   *logging.Logger

	// Metrics serves /metrics when set, e.g. promhttp.HandlerFor(reg, ...).
	Metrics http.Handler

	// Settle bounds how long event handlers wait for the wizard's calls
	// before answering. Zero means defaultSettle; negative means no wait.
	Settle time.Duration

	Postgres Pinger
	Redis    Pinger
	Upstream Pinger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	settle := cfg.Settle
	if settle == 0 {
		settle = defaultSettle
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Upstream, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(IdentityMiddleware(cfg.Resolver))

		r.Route("/wizard/sessions", func(r chi.Router) {
			r.Post("/", createSessionHandler(cfg.Sessions, settle))
			r.Get("/{id}", getSessionHandler(cfg.Sessions))
			r.Delete("/{id}", deleteSessionHandler(cfg.Sessions))
			r.Post("/{id}/events", wizardEventHandler(cfg.Sessions, settle))
		})

		r.Get("/appointments", listAppointmentsHandler(cfg.Sessions))
		r.Patch("/appointments/{id}/status", updateStatusHandler(cfg.Sessions))
	})

	return r
}
