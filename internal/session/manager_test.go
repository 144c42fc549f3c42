package session

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/routedesk/internal/render"
)

func newTestManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	m, err := NewManager(cfg)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestManager_CreateAndGet(t *testing.T) {
	m := newTestManager(t, ManagerConfig{Timeout: time.Hour})

	s := m.Create(testResult(5, false))
	require.NotEmpty(t, s.ID())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1, m.Active())

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	status, _ := s.Map()
	assert.Equal(t, MapNone, status, "no renderer, no map")
}

func TestManager_RendersMapInBackground(t *testing.T) {
	sub := &fakeSubmitter{out: []byte("%PDF-map")}
	m := newTestManager(t, ManagerConfig{Timeout: time.Hour, Renderer: sub})

	s := m.Create(testResult(5, false))

	require.Eventually(t, func() bool {
		status, _ := s.Map()
		return status == MapReady
	}, time.Second, 5*time.Millisecond)

	_, pdf := s.Map()
	assert.Equal(t, []byte("%PDF-map"), pdf)
	assert.Equal(t, "routes_HKG_b744_2!.pdf", s.MapFilename())

	jobs := sub.submitted()
	require.Len(t, jobs, 1)
	assert.Equal(t, render.KindRoutesMap, jobs[0].Kind)
}

func TestManager_MapFailure(t *testing.T) {
	sub := &fakeSubmitter{err: assert.AnError}
	m := newTestManager(t, ManagerConfig{Timeout: time.Hour, Renderer: sub})

	s := m.Create(testResult(5, false))

	require.Eventually(t, func() bool {
		status, _ := s.Map()
		return status == MapFailed
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateActive, s.State(), "the search result survives a failed map")
}

func TestManager_Sweep(t *testing.T) {
	m := newTestManager(t, ManagerConfig{Timeout: time.Hour, Retention: time.Minute})

	expired := m.Create(testResult(2, false))
	active := m.Create(testResult(2, false))
	expired.Expire()

	assert.Equal(t, 1, m.Active())
	assert.Equal(t, 0, m.Sweep(time.Now()), "expired sessions are retained for a while")

	assert.Equal(t, 1, m.Sweep(time.Now().Add(2*time.Minute)))
	_, err := m.Get(expired.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Get(active.ID())
	assert.NoError(t, err)
}

func TestManager_CloseExpiresSessions(t *testing.T) {
	m, err := NewManager(ManagerConfig{Timeout: time.Hour, Logger: zerolog.Nop()})
	require.NoError(t, err)

	s := m.Create(testResult(2, false))
	m.Close()

	assert.Equal(t, StateExpired, s.State())
	assert.Equal(t, 0, m.Active())
}
