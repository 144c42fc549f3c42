// Package worker runs route searches submitted over Pub/Sub, outside the
// interactive request path.
package worker

import (
	"time"

	"github.com/routedesk/routedesk/internal/search"
)

// Query is one search of a batch, in the same shape the HTTP API accepts.
type Query struct {
	Origins         string `json:"origins"`
	Aircraft        string `json:"aircraft"`
	Constraint      string `json:"constraint,omitempty"`
	TripsPerDay     string `json:"tripsPerDay,omitempty"`
	ConfigAlgorithm string `json:"configAlgorithm,omitempty"`
	GameMode        string `json:"gameMode,omitempty"`
}

// Raw converts the query for the resolver.
func (q Query) Raw() search.RawQuery {
	return search.RawQuery{
		Origins:         q.Origins,
		Aircraft:        q.Aircraft,
		Constraint:      q.Constraint,
		TripsPerDay:     q.TripsPerDay,
		ConfigAlgorithm: q.ConfigAlgorithm,
		GameMode:        q.GameMode,
	}
}

// BatchConfig holds configuration for the batch search job.
type BatchConfig struct {
	// Concurrency is the number of queries submitted at once. The search
	// pool still bounds how many run.
	// Default: 3
	Concurrency int

	// Timeout bounds waiting for a search slot, per query.
	// Default: 2 minutes
	Timeout time.Duration

	// MaxQueries caps the size of one batch; extra queries are rejected.
	// Default: 50
	MaxQueries int

	// TopRoutes is the number of routes kept per query in the summary.
	// Default: 3
	TopRoutes int

	// HealthProbe is resolved by the health_check job to prove the
	// catalog answers.
	HealthProbe Query
}

// DefaultBatchConfig returns the default batch configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Concurrency: 3,
		Timeout:     2 * time.Minute,
		MaxQueries:  50,
		TopRoutes:   3,
		HealthProbe: Query{Origins: "HKG", Aircraft: "b744"},
	}
}

func (c BatchConfig) withDefaults() BatchConfig {
	d := DefaultBatchConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxQueries <= 0 {
		c.MaxQueries = d.MaxQueries
	}
	if c.TopRoutes <= 0 {
		c.TopRoutes = d.TopRoutes
	}
	if c.HealthProbe.Origins == "" {
		c.HealthProbe = d.HealthProbe
	}
	return c
}
