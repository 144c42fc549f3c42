// Package api provides the HTTP API of the route search service.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/routedesk/routedesk/internal/api/handler"
	"github.com/routedesk/routedesk/internal/api/middleware"
)

// SessionStore creates and finds result sessions. *session.Manager
// implements it.
type SessionStore interface {
	handler.SessionCreator
	handler.SessionFinder
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool
	RateLimits  middleware.Limits

	Resolver handler.QueryResolver
	Searcher handler.Searcher
	Sessions SessionStore
	Ops      handler.OpsDeps
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "routedesk-api"
	}

	// Global middleware - order matters
	r.Use(middleware.ContextLogger(cfg.Logger))
	r.Use(middleware.RequestID)            // Generate/propagate request ID
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind the load balancer
	r.Use(middleware.ContentTypeJSON)            // JSON content type unless a handler overrides it

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Ops)
	searchHandler := handler.NewSearchHandler(cfg.Resolver, cfg.Searcher, cfg.Sessions, cfg.Logger)
	sessionHandler := handler.NewSessionHandler(cfg.Sessions, cfg.Logger)

	limits := middleware.NewRateLimiters(cfg.RateLimits)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(limits.Standard).Get("/status", opsHandler.SystemStatus)
		})

		// Searches occupy an engine worker until they return.
		r.With(limits.Search, middleware.RequireJSON).Post("/routes:search", searchHandler.Search)

		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Use(limits.Standard)
			r.Use(limits.Session)
			r.Get("/", sessionHandler.Get)
			r.Post("/more", sessionHandler.More)
			r.Post("/export", sessionHandler.Export)
			r.Post("/compare-hubs", sessionHandler.CompareHubs)
			r.Get("/map", sessionHandler.Map)
		})
	})

	return r
}
