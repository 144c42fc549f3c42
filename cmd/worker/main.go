// Package main provides the entrypoint for the routedesk batch worker.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/routedesk/routedesk/internal/api/handler"
	"github.com/routedesk/routedesk/internal/catalog"
	"github.com/routedesk/routedesk/internal/config"
	"github.com/routedesk/routedesk/internal/database"
	"github.com/routedesk/routedesk/internal/provider/resilience"
	"github.com/routedesk/routedesk/internal/search"
	"github.com/routedesk/routedesk/internal/search/engineclient"
	"github.com/routedesk/routedesk/internal/telemetry"
	"github.com/routedesk/routedesk/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "routedesk-worker"

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
	if cfg.PubSub.ProjectID == "" {
		log.Fatal().Msg("pubsub.project_id is required for the worker")
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("subscription", cfg.PubSub.Subscription).
		Msg("starting routedesk worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Server.Env,
		Component:      "worker",
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

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
	} else {
		mem, err := catalog.LoadSeedFile(cfg.Catalog.SeedPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Catalog.SeedPath).Msg("failed to load catalog seed")
		}
		repo = mem
	}

	registry := resilience.NewRegistry()
	orchestrator, err := search.NewOrchestrator(search.OrchestratorConfig{
		Engine: engineclient.NewClient(engineclient.ClientConfig{
			BaseURL:  cfg.Engine.BaseURL,
			APIKey:   cfg.Engine.APIKey,
			Timeout:  cfg.Engine.Timeout,
			Registry: registry,
			Logger:   log,
		}),
		Workers: cfg.Search.Workers,
		Logger:  log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize search orchestrator")
	}
	defer orchestrator.Close()

	batchCfg := worker.DefaultBatchConfig()
	batchCfg.Concurrency = cfg.Search.Workers
	batchJob := worker.NewBatchJob(worker.BatchJobConfig{
		Config:   batchCfg,
		Resolver: search.NewResolver(repo),
		Searcher: orchestrator,
		Logger:   log,
	})

	subscriber, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSub.ProjectID,
		SubscriptionName: cfg.PubSub.Subscription,
		TopicName:        cfg.PubSub.Topic,
		BatchJob:         batchJob,
		Upstreams:        registry,
		Logger:           log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize pubsub handler")
	}

	// Health endpoints for the container platform
	ops := handler.NewOpsHandler(Version, BuildTime, handler.OpsDeps{
		Upstreams: registry,
		Search:    orchestrator,
		Database:  db,
	})
	r := chi.NewRouter()
	r.Get("/health", ops.HealthCheck)
	r.Get("/ready", ops.ReadinessCheck)
	r.Get("/status", ops.SystemStatus)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	receiveDone := make(chan error, 1)
	go func() {
		receiveDone <- subscriber.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down worker")
		cancel()
		// Receive returns once in-flight messages are handled.
		if err := <-receiveDone; err != nil {
			log.Error().Err(err).Msg("pubsub receive failed")
		}
	case err := <-receiveDone:
		log.Error().Err(err).Msg("pubsub receive stopped")
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}
	if err := subscriber.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close pubsub client")
	}

	log.Info().
		Interface("metrics", batchJob.MetricsSnapshot()).
		Msg("worker stopped")
}
