package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/routedesk/routedesk/internal/search"
)

// Outcome of one query in a batch.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

// ErrBatchTooLarge is returned when a batch exceeds MaxQueries.
var ErrBatchTooLarge = errors.New("batch too large")

// Resolver validates raw queries. *search.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, q search.RawQuery) (search.Request, error)
}

// Searcher runs resolved searches. *search.Orchestrator implements it.
type Searcher interface {
	Execute(ctx context.Context, req search.Request) (*search.Result, error)
}

// BatchJob runs a list of queries through the search pool.
type BatchJob struct {
	config   BatchConfig
	resolver Resolver
	searcher Searcher
	logger   zerolog.Logger

	metrics *BatchMetrics
}

// BatchMetrics tracks batch job statistics.
type BatchMetrics struct {
	mu sync.RWMutex

	TotalBatches  int64
	Succeeded     int64
	Invalid       int64
	Failed        int64
	LastBatchAt   time.Time
	LastDuration  time.Duration
	TotalDuration time.Duration
}

// BatchJobConfig holds configuration for creating a BatchJob.
type BatchJobConfig struct {
	Config   BatchConfig
	Resolver Resolver
	Searcher Searcher
	Logger   zerolog.Logger
}

// NewBatchJob creates a new batch job processor.
func NewBatchJob(cfg BatchJobConfig) *BatchJob {
	return &BatchJob{
		config:   cfg.Config.withDefaults(),
		resolver: cfg.Resolver,
		searcher: cfg.Searcher,
		logger:   cfg.Logger.With().Str("component", "batch").Logger(),
		metrics:  &BatchMetrics{},
	}
}

// RouteSummary is one route of a query summary.
type RouteSummary struct {
	Origin            string  `json:"origin"`
	Destination       string  `json:"destination"`
	Stopover          string  `json:"stopover,omitempty"`
	DistanceKM        float64 `json:"distanceKm"`
	FlightTimeH       float64 `json:"flightTimeH"`
	ProfitPerTrip     float64 `json:"profitPerTrip"`
	ProfitPerDayPerAC float64 `json:"profitPerDayPerAc"`
	TripsPerDay       int     `json:"tripsPerDay"`
	Aircraft          int     `json:"aircraft"`
}

// QueryResult is the outcome of one query.
type QueryResult struct {
	Query     Query          `json:"query"`
	Outcome   string         `json:"outcome"`
	Error     string         `json:"error,omitempty"`
	Count     int            `json:"count"`
	Top10     float64        `json:"top10"`
	Top30     float64        `json:"top30"`
	SortBy    string         `json:"sortBy,omitempty"`
	ElapsedMS float64        `json:"elapsedMs"`
	Routes    []RouteSummary `json:"routes,omitempty"`
}

// BatchResult contains the result of a batch.
type BatchResult struct {
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"-"`
	Succeeded int           `json:"succeeded"`
	Invalid   int           `json:"invalid"`
	Failed    int           `json:"failed"`
	Results   []QueryResult `json:"results"`
}

// Run executes every query and returns the results in query order. Invalid
// queries are reported, not retried.
func (j *BatchJob) Run(ctx context.Context, queries []Query) (*BatchResult, error) {
	if len(queries) > j.config.MaxQueries {
		return nil, fmt.Errorf("%w: %d queries, limit %d", ErrBatchTooLarge, len(queries), j.config.MaxQueries)
	}

	startTime := time.Now()
	result := &BatchResult{
		StartTime: startTime,
		Results:   make([]QueryResult, len(queries)),
	}

	j.logger.Info().
		Int("queries", len(queries)).
		Int("concurrency", j.config.Concurrency).
		Msg("starting batch search")

	indexes := make(chan int, len(queries))
	for i := range queries {
		indexes <- i
	}
	close(indexes)

	var wg sync.WaitGroup
	for w := 0; w < j.config.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				// Each slot is written by exactly one goroutine.
				result.Results[i] = j.runQuery(ctx, queries[i])
			}
		}()
	}
	wg.Wait()

	for _, qr := range result.Results {
		switch qr.Outcome {
		case OutcomeOK:
			result.Succeeded++
		case OutcomeInvalid:
			result.Invalid++
		default:
			result.Failed++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("succeeded", result.Succeeded).
		Int("invalid", result.Invalid).
		Int("failed", result.Failed).
		Msg("batch search completed")

	return result, nil
}

func (j *BatchJob) runQuery(ctx context.Context, q Query) QueryResult {
	out := QueryResult{Query: q}

	if err := ctx.Err(); err != nil {
		out.Outcome = OutcomeFailed
		out.Error = err.Error()
		return out
	}

	req, err := j.resolver.Resolve(ctx, q.Raw())
	if err != nil {
		var inputErr *search.InputError
		if errors.As(err, &inputErr) {
			out.Outcome = OutcomeInvalid
			out.Error = inputErr.Message
			return out
		}
		out.Outcome = OutcomeFailed
		out.Error = err.Error()
		return out
	}

	queryCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	res, err := j.searcher.Execute(queryCtx, req)
	if err != nil {
		j.logger.Warn().Err(err).Str("origins", q.Origins).Str("aircraft", q.Aircraft).Msg("batch query failed")
		out.Outcome = OutcomeFailed
		out.Error = err.Error()
		return out
	}

	out.Outcome = OutcomeOK
	out.Count = res.Summary.Count
	out.Top10 = res.Summary.Top10
	out.Top30 = res.Summary.Top30
	out.SortBy = string(res.Summary.SortBy)
	out.ElapsedMS = float64(res.Elapsed.Microseconds()) / 1000
	out.Routes = summarizeRoutes(res.Results.Slice(0, j.config.TopRoutes))
	return out
}

func summarizeRoutes(cands []search.Candidate) []RouteSummary {
	routes := make([]RouteSummary, 0, len(cands))
	for _, c := range cands {
		rs := RouteSummary{
			Origin:            c.Origin.Code(),
			Destination:       c.Destination.Code(),
			DistanceKM:        c.FullDistanceKM,
			FlightTimeH:       c.FlightTimeH,
			ProfitPerTrip:     c.ProfitPerTrip,
			ProfitPerDayPerAC: c.ProfitPerDayPerAC(),
			TripsPerDay:       c.TripsPerDayAC,
			Aircraft:          c.Aircraft(),
		}
		if c.Stopover != nil {
			rs.Stopover = c.Stopover.Code()
		}
		routes = append(routes, rs)
	}
	return routes
}

// Probe resolves the configured health probe. Unknown airports or aircraft
// still prove the catalog answered.
func (j *BatchJob) Probe(ctx context.Context) error {
	_, err := j.resolver.Resolve(ctx, j.config.HealthProbe.Raw())
	var inputErr *search.InputError
	if err != nil && !errors.As(err, &inputErr) {
		return err
	}
	return nil
}

func (j *BatchJob) updateMetrics(result *BatchResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalBatches++
	j.metrics.Succeeded += int64(result.Succeeded)
	j.metrics.Invalid += int64(result.Invalid)
	j.metrics.Failed += int64(result.Failed)
	j.metrics.LastBatchAt = result.EndTime
	j.metrics.LastDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *BatchJob) GetMetrics() BatchMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return BatchMetrics{
		TotalBatches:  j.metrics.TotalBatches,
		Succeeded:     j.metrics.Succeeded,
		Invalid:       j.metrics.Invalid,
		Failed:        j.metrics.Failed,
		LastBatchAt:   j.metrics.LastBatchAt,
		LastDuration:  j.metrics.LastDuration,
		TotalDuration: j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *BatchJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_batches":  m.TotalBatches,
		"succeeded":      m.Succeeded,
		"invalid":        m.Invalid,
		"failed":         m.Failed,
		"last_batch_at":  m.LastBatchAt,
		"last_duration":  m.LastDuration.String(),
		"total_duration": m.TotalDuration.String(),
	}
}
