package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/routedesk/internal/catalog"
)

type fakeEngine struct {
	mu       sync.Mutex
	calls    int
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	release  chan struct{}
	started  chan struct{}
	result   []Candidate
	err      error
	panicMsg string
	ctxErr   error
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Search(ctx context.Context, _ Request) ([]Candidate, error) {
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		m := e.maxSeen.Load()
		if n <= m || e.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.started != nil {
		e.started <- struct{}{}
	}
	if e.release != nil {
		<-e.release
	}
	e.mu.Lock()
	e.ctxErr = ctx.Err()
	e.mu.Unlock()

	if e.panicMsg != "" {
		panic(e.panicMsg)
	}
	return e.result, e.err
}

func newTestOrchestrator(t *testing.T, engine Engine, workers int) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(OrchestratorConfig{Engine: engine, Workers: workers, Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(o.Close)
	return o
}

func candidate(originID int64, profitPerTrip float64, tpd, numAC int) Candidate {
	return Candidate{
		Origin:        catalog.Airport{ID: originID, IATA: "O" + string(rune('A'+originID))},
		Destination:   catalog.Airport{ID: 100 + originID, IATA: "DST"},
		ProfitPerTrip: profitPerTrip,
		TripsPerDayAC: tpd,
		NumAircraft:   numAC,
	}
}

func TestNewOrchestrator_RequiresEngine(t *testing.T) {
	_, err := NewOrchestrator(OrchestratorConfig{})
	assert.Error(t, err)
}

func TestNewOrchestrator_DefaultWorkers(t *testing.T) {
	o := newTestOrchestrator(t, &fakeEngine{}, 0)
	assert.Equal(t, DefaultWorkers, o.Workers())
}

func TestExecute_PackagesEngineOrder(t *testing.T) {
	engine := &fakeEngine{result: []Candidate{
		candidate(1, 100, 2, 1), // 200/day, 1 aircraft
		candidate(1, 500, 1, 3), // 500/day, 3 aircraft
		candidate(1, 10, 1, 0),  // 10/day, counted as 1 aircraft
	}}
	o := newTestOrchestrator(t, engine, 2)

	res, err := o.Execute(context.Background(), Request{SortBy: SortPerTrip})
	require.NoError(t, err)

	require.Equal(t, 3, res.Results.Len())
	assert.InDelta(t, 100, res.Results.At(0).ProfitPerTrip, 1e-9, "engine order kept")
	assert.InDelta(t, 500, res.Results.At(1).ProfitPerTrip, 1e-9)
	assert.Equal(t, SortPerTrip, res.Results.SortBy())

	assert.Equal(t, 3, res.Summary.Count)
	assert.InDelta(t, 200+500*3+10, res.Summary.Top10, 1e-9)
	assert.InDelta(t, res.Summary.Top10, res.Summary.Top30, 1e-9)
	assert.GreaterOrEqual(t, res.Elapsed, time.Duration(0))
}

func TestExecute_EngineError(t *testing.T) {
	engine := &fakeEngine{err: ErrEngineUnavailable}
	o := newTestOrchestrator(t, engine, 1)

	res, err := o.Execute(context.Background(), Request{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrSearchEngine)
	assert.ErrorIs(t, err, ErrEngineUnavailable)

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, "fake", engErr.Engine)
}

func TestExecute_EnginePanicIsContained(t *testing.T) {
	engine := &fakeEngine{panicMsg: "boom"}
	o := newTestOrchestrator(t, engine, 1)

	_, err := o.Execute(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrSearchEngine)

	engine.panicMsg = ""
	_, err = o.Execute(context.Background(), Request{})
	assert.NoError(t, err, "worker survives a panicking search")
}

func TestExecute_BoundedPool(t *testing.T) {
	engine := &fakeEngine{release: make(chan struct{}), started: make(chan struct{}, 8)}
	o := newTestOrchestrator(t, engine, 2)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = o.Execute(context.Background(), Request{})
		}()
	}

	<-engine.started
	<-engine.started
	assert.Equal(t, 2, o.Busy())

	for i := 0; i < 4; i++ {
		engine.release <- struct{}{}
	}
	wg.Wait()

	assert.Equal(t, int32(2), engine.maxSeen.Load())
	assert.Equal(t, 4, engine.calls)
}

func TestExecute_CancelWhileWaitingForSlot(t *testing.T) {
	engine := &fakeEngine{release: make(chan struct{}), started: make(chan struct{}, 1)}
	o := newTestOrchestrator(t, engine, 1)

	go func() { _, _ = o.Execute(context.Background(), Request{}) }()
	<-engine.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := o.Execute(ctx, Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(engine.release)
}

func TestExecute_EngineCallNotCancelled(t *testing.T) {
	engine := &fakeEngine{release: make(chan struct{}), started: make(chan struct{}, 1)}
	o := newTestOrchestrator(t, engine, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.Execute(ctx, Request{})
		done <- err
	}()

	<-engine.started
	cancel()
	close(engine.release)

	require.NoError(t, <-done, "an accepted search runs to completion")
	engine.mu.Lock()
	defer engine.mu.Unlock()
	assert.NoError(t, engine.ctxErr)
}

func TestExecute_AfterClose(t *testing.T) {
	o, err := NewOrchestrator(OrchestratorConfig{Engine: &fakeEngine{}, Workers: 1, Logger: zerolog.Nop()})
	require.NoError(t, err)
	o.Close()
	o.Close()

	_, err = o.Execute(context.Background(), Request{})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestSamplesFromCandidates(t *testing.T) {
	req := Request{Origins: []catalog.Airport{
		{ID: 1, IATA: "HKG", HubCost: 10},
		{ID: 2, IATA: "LHR", HubCost: 20},
		{ID: 3, IATA: "JFK", HubCost: 30},
	}}
	rs := NewResultSet([]Candidate{
		candidate(1, 100, 1, 2),
		candidate(2, 50, 2, 1),
		candidate(1, 30, 1, 1),
		candidate(9, 999, 1, 1),
	}, SortPerTrip)

	samples := SamplesFromCandidates(req, rs)
	require.Len(t, samples, 3)
	assert.Equal(t, "HKG", samples[0].HubID)
	assert.Equal(t, []float64{100, 100, 30}, samples[0].PerAircraftDailyProfit)
	assert.Equal(t, []float64{100}, samples[1].PerAircraftDailyProfit)
	assert.Empty(t, samples[2].PerAircraftDailyProfit)
	assert.InDelta(t, 30, samples[2].HubCost, 1e-9)
}

func TestResultSet_SliceClamps(t *testing.T) {
	rs := NewResultSet([]Candidate{candidate(1, 1, 1, 1), candidate(1, 2, 1, 1)}, SortPerTrip)

	assert.Len(t, rs.Slice(0, 3), 2)
	assert.Len(t, rs.Slice(1, 2), 1)
	assert.Nil(t, rs.Slice(2, 5))
	assert.Nil(t, rs.Slice(-1, 0))

	all := rs.Candidates()
	all[0].ProfitPerTrip = 42
	assert.InDelta(t, 1, rs.At(0).ProfitPerTrip, 1e-9, "copies do not alias")
}
