// Package resilience wraps outbound HTTP calls with a circuit breaker,
// bounded retries and a health registry feeding the ops status endpoint.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes when a circuit opens and how long it stays open.
type BreakerConfig struct {
	// Name identifies the circuit in logs and the registry.
	Name string

	// HalfOpenProbes is the number of calls let through while half-open.
	// Default: 1
	HalfOpenProbes uint32

	// OpenFor is how long the circuit rejects calls before probing again.
	// Default: 30 seconds
	OpenFor time.Duration

	// Window clears the counts periodically while closed (0 keeps them).
	// Default: 5 minutes
	Window time.Duration

	// ConsecutiveFailures opens the circuit outright.
	// Default: 3
	ConsecutiveFailures uint32

	// MinRequests and FailureRatio open the circuit on a sustained error
	// rate once enough calls were seen.
	// Default: 5 requests, 0.5
	MinRequests  uint32
	FailureRatio float64

	Logger zerolog.Logger
}

// DefaultBreakerConfig returns the breaker settings used for the route engine.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		HalfOpenProbes:      1,
		OpenFor:             30 * time.Second,
		Window:              5 * time.Minute,
		ConsecutiveFailures: 3,
		MinRequests:         5,
		FailureRatio:        0.5,
		Logger:              zerolog.Nop(),
	}
}

// ReadyToTrip reports whether the counts warrant opening the circuit.
func (c BreakerConfig) ReadyToTrip(counts gobreaker.Counts) bool {
	if c.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= c.ConsecutiveFailures {
		return true
	}
	if counts.Requests == 0 || counts.Requests < c.MinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
}

// countsAsSuccess keeps caller cancellations from opening the circuit.
func countsAsSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

func newBreaker[T any](cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	logger := cfg.Logger
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.HalfOpenProbes,
		Interval:     cfg.Window,
		Timeout:      cfg.OpenFor,
		ReadyToTrip:  cfg.ReadyToTrip,
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			ev := logger.Info()
			if to == gobreaker.StateOpen {
				ev = logger.Warn()
			}
			ev.Str("upstream", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit state changed")
		},
	})
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig(c.Name)
	if c.HalfOpenProbes == 0 {
		c.HalfOpenProbes = d.HalfOpenProbes
	}
	if c.OpenFor <= 0 {
		c.OpenFor = d.OpenFor
	}
	if c.MinRequests == 0 {
		c.MinRequests = d.MinRequests
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = d.FailureRatio
	}
	return c
}
