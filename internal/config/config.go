// Package config loads routedesk configuration from layered sources:
// built-in defaults, an optional YAML file and the environment, in that
// order of precedence (lowest first).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/routedesk/routedesk/internal/database"
	"github.com/routedesk/routedesk/internal/validation"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/routedesk/config.yaml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Database  database.Config `koanf:"database"`
	Engine    EngineConfig    `koanf:"engine"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Search    SearchConfig    `koanf:"search"`
	Render    RenderConfig    `koanf:"render"`
	Session   SessionConfig   `koanf:"session"`
	PubSub    PubSubConfig    `koanf:"pubsub"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            string        `koanf:"port" validate:"required,numeric"`
	Env             string        `koanf:"env" validate:"oneof=development staging production"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool `koanf:"require_tls"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	OTLPEndpoint string  `koanf:"otlp_endpoint" validate:"required_if=Enabled true"`
	SampleRatio  float64 `koanf:"sample_ratio" validate:"gte=0,lte=1"`
}

// EngineConfig points at the external route search engine.
type EngineConfig struct {
	BaseURL string        `koanf:"base_url" validate:"required,url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// CatalogConfig configures the in-memory catalog used when the database
// is disabled.
type CatalogConfig struct {
	SeedPath string `koanf:"seed_path"`
}

// SearchConfig sizes the search pool.
type SearchConfig struct {
	Workers int `koanf:"workers" validate:"min=1,max=64"`
}

// RenderConfig sizes the render queue.
type RenderConfig struct {
	QueueSize int `koanf:"queue_size" validate:"min=1"`
}

// SessionConfig configures result sessions.
type SessionConfig struct {
	Timeout       time.Duration `koanf:"timeout" validate:"gt=0"`
	Retention     time.Duration `koanf:"retention" validate:"gt=0"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	MapTimeout    time.Duration `koanf:"map_timeout" validate:"gt=0"`
}

// RateLimitConfig caps request rates per minute. Search and standard
// limits are per client address; the session limit is per session id.
type RateLimitConfig struct {
	SearchPerMinute   int `koanf:"search_per_minute" validate:"min=1"`
	SessionPerMinute  int `koanf:"session_per_minute" validate:"min=1"`
	StandardPerMinute int `koanf:"standard_per_minute" validate:"min=1"`
}

// PubSubConfig configures the asynchronous search worker.
type PubSubConfig struct {
	ProjectID    string `koanf:"project_id"`
	Subscription string `koanf:"subscription"`
	Topic        string `koanf:"topic"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Env:             "development",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second, // searches can take a while
			ShutdownTimeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "",
			SampleRatio:  1,
		},
		Database: database.DefaultConfig(),
		Engine: EngineConfig{
			BaseURL: "http://localhost:9000",
			Timeout: 60 * time.Second,
		},
		Catalog: CatalogConfig{
			SeedPath: "data/catalog.json",
		},
		Search: SearchConfig{
			Workers: 4,
		},
		Render: RenderConfig{
			QueueSize: 16,
		},
		Session: SessionConfig{
			Timeout:       15 * time.Second,
			Retention:     10 * time.Minute,
			SweepInterval: time.Minute,
			MapTimeout:    2 * time.Minute,
		},
		PubSub: PubSubConfig{
			Subscription: "route-search-jobs",
			Topic:        "route-search-results",
		},
		RateLimit: RateLimitConfig{
			SearchPerMinute:   30,
			SessionPerMinute:  20,
			StandardPerMinute: 100,
		},
	}
}

// Load builds the configuration from defaults, the config file (if any)
// and environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return err
	}
	if c.PubSub.ProjectID != "" && c.PubSub.Subscription == "" {
		return fmt.Errorf("pubsub.subscription is required when pubsub.project_id is set")
	}
	if !c.Database.Enabled && c.Catalog.SeedPath == "" {
		return fmt.Errorf("catalog.seed_path is required when the database is disabled")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

var envMappings = map[string]string{
	"app_port":                    "server.port",
	"app_env":                     "server.env",
	"server_read_timeout":         "server.read_timeout",
	"server_write_timeout":        "server.write_timeout",
	"server_shutdown_timeout":     "server.shutdown_timeout",
	"require_tls":                 "server.require_tls",
	"otel_enabled":                "telemetry.enabled",
	"otel_exporter_otlp_endpoint": "telemetry.otlp_endpoint",
	"otel_traces_sampler_arg":     "telemetry.sample_ratio",
	"db_enabled":                  "database.enabled",
	"db_host":                     "database.host",
	"db_port":                     "database.port",
	"db_user":                     "database.user",
	"db_password":                 "database.password",
	"db_name":                     "database.name",
	"db_ssl_mode":                 "database.ssl_mode",
	"db_max_open_conns":           "database.max_open_conns",
	"db_max_idle_conns":           "database.max_idle_conns",
	"db_conn_max_lifetime":        "database.conn_max_lifetime",
	"db_connect_attempts":         "database.connect_attempts",
	"engine_base_url":             "engine.base_url",
	"engine_api_key":              "engine.api_key",
	"engine_timeout":              "engine.timeout",
	"catalog_seed_path":           "catalog.seed_path",
	"search_workers":              "search.workers",
	"render_queue_size":           "render.queue_size",
	"session_timeout":             "session.timeout",
	"session_retention":           "session.retention",
	"session_sweep_interval":      "session.sweep_interval",
	"session_map_timeout":         "session.map_timeout",
	"pubsub_project_id":           "pubsub.project_id",
	"pubsub_subscription":         "pubsub.subscription",
	"pubsub_topic":                "pubsub.topic",
	"rate_limit_search":           "rate_limit.search_per_minute",
	"rate_limit_session":          "rate_limit.session_per_minute",
	"rate_limit_standard":         "rate_limit.standard_per_minute",
}

// envTransformFunc maps known environment variables to config paths.
// Unknown variables map to "" and are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
