package search

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/routedesk/routedesk/internal/hubcompare"
)

const instrumentationName = "github.com/routedesk/routedesk/internal/search"

// DefaultWorkers is the default size of the search pool.
const DefaultWorkers = 4

// OrchestratorConfig holds configuration for creating an Orchestrator.
type OrchestratorConfig struct {
	// Engine runs the actual search (required).
	Engine Engine

	// Workers is the number of searches that may run at once.
	// Default: 4
	Workers int

	Logger zerolog.Logger
}

// Summary holds the aggregates shown under a result page.
type Summary struct {
	Count  int
	Top10  float64
	Top30  float64
	SortBy SortBy
}

// Result is a completed search.
type Result struct {
	Request Request
	Results ResultSet
	Elapsed time.Duration
	Summary Summary
}

// Orchestrator runs searches on a fixed pool of workers.
// Each search occupies one worker until the engine returns.
type Orchestrator struct {
	engine  Engine
	workers int
	logger  zerolog.Logger

	jobs      chan *job
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	busy      atomic.Int32

	tracer   trace.Tracer
	duration metric.Float64Histogram
	total    metric.Int64Counter
}

type job struct {
	ctx    context.Context
	req    Request
	result chan jobResult
}

type jobResult struct {
	candidates []Candidate
	err        error
	elapsed    time.Duration
}

// NewOrchestrator starts the worker pool.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("search: engine is required")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	meter := otel.Meter(instrumentationName)
	duration, err := meter.Float64Histogram(
		"routedesk.search.duration",
		metric.WithDescription("Wall-clock duration of route searches in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	total, err := meter.Int64Counter(
		"routedesk.search.total",
		metric.WithDescription("Total number of route searches"),
		metric.WithUnit("{search}"),
	)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		engine:   cfg.Engine,
		workers:  workers,
		logger:   cfg.Logger.With().Str("component", "search").Logger(),
		jobs:     make(chan *job),
		done:     make(chan struct{}),
		tracer:   otel.Tracer(instrumentationName),
		duration: duration,
		total:    total,
	}

	for i := 0; i < workers; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.worker()
		}()
	}

	return o, nil
}

func (o *Orchestrator) worker() {
	for {
		select {
		case j := <-o.jobs:
			o.busy.Add(1)
			j.result <- o.run(j)
			o.busy.Add(-1)
		case <-o.done:
			return
		}
	}
}

func (o *Orchestrator) run(j *job) (res jobResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = jobResult{err: fmt.Errorf("engine panic: %v", r)}
		}
		res.elapsed = time.Since(start)
	}()

	// The engine call is not interruptible; only the slot wait honours cancellation.
	candidates, err := o.engine.Search(context.WithoutCancel(j.ctx), j.req)
	return jobResult{candidates: candidates, err: err}
}

// Execute runs one search. It blocks until a worker is free (or ctx is done)
// and then until the engine returns, regardless of ctx.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "search.Execute",
		trace.WithAttributes(
			attribute.String("search.engine", o.engine.Name()),
			attribute.Int("search.origins", len(req.Origins)),
			attribute.String("search.aircraft", req.Aircraft.ShortName),
			attribute.String("search.sort_by", string(req.SortBy)),
		),
	)
	defer span.End()

	j := &job{ctx: ctx, req: req, result: make(chan jobResult, 1)}

	select {
	case o.jobs <- j:
	case <-ctx.Done():
		span.SetStatus(codes.Error, "cancelled waiting for a search slot")
		return nil, ctx.Err()
	case <-o.done:
		return nil, ErrClosed
	}

	res := <-j.result

	outcome := "ok"
	if res.err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("engine", o.engine.Name()),
		attribute.String("outcome", outcome),
	)
	o.duration.Record(ctx, res.elapsed.Seconds(), attrs)
	o.total.Add(ctx, 1, attrs)

	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, "engine failed")
		o.logger.Error().
			Err(res.err).
			Dur("elapsed", res.elapsed).
			Int("origins", len(req.Origins)).
			Str("aircraft", req.Aircraft.ShortName).
			Msg("route search failed")
		return nil, &EngineError{Engine: o.engine.Name(), Err: res.err}
	}

	rs := NewResultSet(res.candidates, req.SortBy)
	fleet := FleetProfits(rs)
	result := &Result{
		Request: req,
		Results: rs,
		Elapsed: res.elapsed,
		Summary: Summary{
			Count:  rs.Len(),
			Top10:  hubcompare.TopSum(fleet, 10),
			Top30:  hubcompare.TopSum(fleet, 30),
			SortBy: req.SortBy,
		},
	}

	span.SetAttributes(attribute.Int("search.results", rs.Len()))
	o.logger.Info().
		Dur("elapsed", res.elapsed).
		Int("results", rs.Len()).
		Int("origins", len(req.Origins)).
		Str("aircraft", req.Aircraft.ShortName).
		Str("constraint", req.Constraint.String()).
		Str("sort_by", string(req.SortBy)).
		Msg("route search completed")

	return result, nil
}

// Busy returns the number of workers currently running a search.
func (o *Orchestrator) Busy() int {
	return int(o.busy.Load())
}

// Workers returns the pool size.
func (o *Orchestrator) Workers() int {
	return o.workers
}

// Close stops accepting searches and waits for running ones to finish.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.done)
	})
	o.wg.Wait()
}

// FleetProfits flattens candidates into one daily profit entry per
// required aircraft, keeping engine order.
func FleetProfits(rs ResultSet) []float64 {
	var out []float64
	for _, c := range rs.candidates {
		p := c.ProfitPerDayPerAC()
		for i := 0; i < c.Aircraft(); i++ {
			out = append(out, p)
		}
	}
	return out
}

// SamplesFromCandidates groups the fleet profits by origin, one sample per
// requested origin in request order.
func SamplesFromCandidates(req Request, rs ResultSet) []hubcompare.Sample {
	samples := make([]hubcompare.Sample, len(req.Origins))
	index := make(map[int64]int, len(req.Origins))
	for i, o := range req.Origins {
		samples[i] = hubcompare.Sample{HubID: o.Code(), HubCost: o.HubCost}
		index[o.ID] = i
	}

	for _, c := range rs.candidates {
		i, ok := index[c.Origin.ID]
		if !ok {
			continue
		}
		p := c.ProfitPerDayPerAC()
		for n := 0; n < c.Aircraft(); n++ {
			samples[i].PerAircraftDailyProfit = append(samples[i].PerAircraftDailyProfit, p)
		}
	}
	return samples
}
