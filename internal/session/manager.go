package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/routedesk/routedesk/internal/render"
	"github.com/routedesk/routedesk/internal/search"
)

const instrumentationName = "github.com/routedesk/routedesk/internal/session"

// ErrNotFound is returned for unknown or swept session ids.
var ErrNotFound = errors.New("session not found")

const (
	// DefaultRetention is how long an expired session stays retrievable.
	DefaultRetention = 10 * time.Minute

	// DefaultSweepInterval is how often expired sessions are swept.
	DefaultSweepInterval = time.Minute

	// DefaultMapTimeout bounds queueing and rendering of a routes map.
	DefaultMapTimeout = 2 * time.Minute
)

// ManagerConfig holds configuration for creating a Manager.
type ManagerConfig struct {
	// Timeout is the session dwell timeout.
	// Default: 15s
	Timeout time.Duration

	// Retention keeps expired sessions (and their maps) retrievable.
	// Default: 10m
	Retention time.Duration

	// SweepInterval is the period of the expired-session sweep.
	// Default: 1m
	SweepInterval time.Duration

	// MapTimeout bounds the background routes map render.
	// Default: 2m
	MapTimeout time.Duration

	// Renderer renders maps and hub comparisons (optional; without it
	// neither is produced).
	Renderer Submitter

	Logger zerolog.Logger
}

// Manager owns the sessions of the process.
type Manager struct {
	timeout    time.Duration
	retention  time.Duration
	mapTimeout time.Duration
	renderer   Submitter
	logger     zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	created metric.Int64Counter
	expired metric.Int64Counter
}

// NewManager creates a manager and starts its sweeper.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	mapTimeout := cfg.MapTimeout
	if mapTimeout <= 0 {
		mapTimeout = DefaultMapTimeout
	}

	meter := otel.Meter(instrumentationName)
	created, err := meter.Int64Counter(
		"routedesk.sessions.created",
		metric.WithDescription("Total number of result sessions created"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}
	expired, err := meter.Int64Counter(
		"routedesk.sessions.expired",
		metric.WithDescription("Total number of result sessions expired"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		timeout:    timeout,
		retention:  retention,
		mapTimeout: mapTimeout,
		renderer:   cfg.Renderer,
		logger:     cfg.Logger.With().Str("component", "session").Logger(),
		sessions:   make(map[string]*Session),
		done:       make(chan struct{}),
		created:    created,
		expired:    expired,
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.sweepLoop(interval)
	}()

	return m, nil
}

// Create registers a session for a completed search. The routes map is
// rendered in the background once the first page has been produced.
func (m *Manager) Create(result *search.Result) *Session {
	s := New(uuid.NewString(), result, Config{
		Timeout:  m.timeout,
		Renderer: m.renderer,
		OnExpire: func(*Session) {
			m.expired.Add(context.Background(), 1)
		},
		Logger: m.logger,
	})

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.created.Add(context.Background(), 1)
	m.logger.Debug().
		Str("session_id", s.ID()).
		Int("routes", result.Results.Len()).
		Msg("session created")

	if m.renderer != nil {
		s.setMapPending()
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.renderMap(s)
		}()
	}

	return s
}

func (m *Manager) renderMap(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), m.mapTimeout)
	defer cancel()

	pdf, err := m.renderer.Submit(ctx, render.NewRoutesMapJob(s.Result()))
	if err != nil {
		m.logger.Error().Err(err).Str("session_id", s.ID()).Msg("routes map render failed")
	}
	s.setMap(pdf, err)
}

// Get returns a session by id. Expired sessions are returned until swept.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Len returns the number of retained sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Active returns the number of sessions still accepting actions.
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, s := range m.sessions {
		if _, expired := s.ExpiredAt(); !expired {
			n++
		}
	}
	return n
}

// Sweep drops sessions that expired more than the retention window
// before now. It returns the number removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if at, expired := s.ExpiredAt(); expired && now.Sub(at) >= m.retention {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(time.Now()); n > 0 {
				m.logger.Debug().Int("removed", n).Msg("swept expired sessions")
			}
		case <-m.done:
			return
		}
	}
}

// Close stops the sweeper, expires every session and waits for pending
// map renders.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})

	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.Expire()
	}
	m.wg.Wait()
}
