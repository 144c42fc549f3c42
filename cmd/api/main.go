// Package main provides the entrypoint for the routedesk API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/routedesk/routedesk/internal/api"
	"github.com/routedesk/routedesk/internal/api/handler"
	"github.com/routedesk/routedesk/internal/api/middleware"
	"github.com/routedesk/routedesk/internal/catalog"
	"github.com/routedesk/routedesk/internal/config"
	"github.com/routedesk/routedesk/internal/database"
	"github.com/routedesk/routedesk/internal/provider/resilience"
	"github.com/routedesk/routedesk/internal/render"
	"github.com/routedesk/routedesk/internal/search"
	"github.com/routedesk/routedesk/internal/search/engineclient"
	"github.com/routedesk/routedesk/internal/session"
	"github.com/routedesk/routedesk/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "routedesk-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if !cfg.IsProduction() {
		log = log.Level(zerolog.DebugLevel)
	} else {
		log = log.Level(zerolog.InfoLevel)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Server.Env).
		Msg("starting routedesk API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Server.Env,
		Component:      "api",
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if tp.Enabled() {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Catalog: Postgres when enabled, otherwise the seed file
	var (
		repo catalog.Repository
		pool *pgxpool.Pool
		db   handler.Pinger
	)
	if cfg.Database.Enabled {
		pool, err = database.Connect(ctx, cfg.Database, serviceName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		repo = catalog.NewPostgresRepository(pool)
		db = pool
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")
	} else {
		mem, err := catalog.LoadSeedFile(cfg.Catalog.SeedPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Catalog.SeedPath).Msg("failed to load catalog seed")
		}
		repo = mem
		log.Info().Str("path", cfg.Catalog.SeedPath).Msg("catalog loaded from seed file")
	}

	registry := resilience.NewRegistry()
	engine := engineclient.NewClient(engineclient.ClientConfig{
		BaseURL:  cfg.Engine.BaseURL,
		APIKey:   cfg.Engine.APIKey,
		Timeout:  cfg.Engine.Timeout,
		Registry: registry,
		Logger:   log,
	})

	orchestrator, err := search.NewOrchestrator(search.OrchestratorConfig{
		Engine:  engine,
		Workers: cfg.Search.Workers,
		Logger:  log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize search orchestrator")
	}
	log.Info().Int("workers", cfg.Search.Workers).Msg("search orchestrator initialized")

	dispatcher, err := render.NewDispatcher(render.DispatcherConfig{
		Renderer:  render.NewPDFRenderer(),
		QueueSize: cfg.Render.QueueSize,
		Logger:    log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize render dispatcher")
	}

	sessions, err := session.NewManager(session.ManagerConfig{
		Timeout:       cfg.Session.Timeout,
		Retention:     cfg.Session.Retention,
		SweepInterval: cfg.Session.SweepInterval,
		MapTimeout:    cfg.Session.MapTimeout,
		Renderer:      dispatcher,
		Logger:        log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize session manager")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		RequireTLS:  cfg.Server.RequireTLS,
		RateLimits: middleware.Limits{
			Search:   cfg.RateLimit.SearchPerMinute,
			Session:  cfg.RateLimit.SessionPerMinute,
			Standard: cfg.RateLimit.StandardPerMinute,
		},
		Resolver: search.NewResolver(repo),
		Searcher: orchestrator,
		Sessions: sessions,
		Ops: handler.OpsDeps{
			Upstreams: registry,
			Render:    dispatcher,
			Sessions:  sessions,
			Search:    orchestrator,
			Database:  db,
		},
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Sessions first so pending map renders drain before the queue closes
	sessions.Close()
	dispatcher.Close()
	orchestrator.Close()

	log.Info().Msg("server stopped")
}
