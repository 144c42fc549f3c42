// Package database opens the PostgreSQL pool behind the airport and
// aircraft catalog. The catalog is reference data, so sessions are opened
// read-only.
package database

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Config holds database connection configuration.
type Config struct {
	// Enabled selects the Postgres catalog. When false the catalog is
	// loaded from a seed file instead.
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host" validate:"required_if=Enabled true"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	Database        string        `koanf:"name" validate:"required_if=Enabled true"`
	SSLMode         string        `koanf:"ssl_mode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"min=1,max=1000"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"min=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	// ConnectAttempts bounds how often Connect tries before giving up, so
	// a binary started alongside its database can wait for it.
	ConnectAttempts int `koanf:"connect_attempts" validate:"min=1,max=20"`
}

// DefaultConfig returns local development defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		User:            "routedesk",
		Password:        "localdev",
		Database:        "routedesk",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectAttempts: 5,
	}
}

// ConnectionString returns the PostgreSQL URL for the catalog database.
func (c Config) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// PoolConfig builds the pgx pool settings. Every connection is tagged with
// applicationName and defaults to read-only transactions.
func (c Config) PoolConfig(applicationName string) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(c.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(c.MaxOpenConns) //nolint:gosec // MaxOpenConns is bounded by config validation
	poolConfig.MinConns = int32(c.MaxIdleConns) //nolint:gosec // MaxIdleConns is bounded by config validation
	poolConfig.MaxConnLifetime = c.ConnMaxLifetime

	params := poolConfig.ConnConfig.RuntimeParams
	params["default_transaction_read_only"] = "on"
	if applicationName != "" {
		params["application_name"] = applicationName
	}
	return poolConfig, nil
}

// Connect opens the pool and waits until the database answers a ping,
// retrying with exponential backoff up to cfg.ConnectAttempts times.
func Connect(ctx context.Context, cfg Config, applicationName string, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := cfg.PoolConfig(applicationName)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	err = backoff.RetryNotify(
		func() error { return pool.Ping(ctx) },
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx), //nolint:gosec // attempts >= 1
		func(err error, wait time.Duration) {
			log.Warn().Err(err).Str("host", cfg.Host).Dur("retry_in", wait).Msg("catalog database not ready")
		},
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
