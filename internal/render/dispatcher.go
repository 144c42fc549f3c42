package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/routedesk/routedesk/internal/render"

// DefaultQueueSize is the default number of jobs that may wait for the renderer.
const DefaultQueueSize = 16

// DispatcherConfig holds configuration for creating a Dispatcher.
type DispatcherConfig struct {
	// Renderer draws the jobs (optional, defaults to a PDFRenderer).
	Renderer Renderer

	// QueueSize bounds the number of waiting jobs.
	// Default: 16
	QueueSize int

	Logger zerolog.Logger
}

// Dispatcher serialises render jobs onto a single worker goroutine that
// owns the Renderer. Jobs run in submission order.
type Dispatcher struct {
	renderer Renderer
	logger   zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	jobs    chan *task
	stopped chan struct{}

	tracer   trace.Tracer
	duration metric.Float64Histogram
}

type task struct {
	job    Job
	result chan taskResult
}

type taskResult struct {
	data []byte
	err  error
}

// NewDispatcher starts the render worker.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	renderer := cfg.Renderer
	if renderer == nil {
		renderer = NewPDFRenderer()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	duration, err := otel.Meter(instrumentationName).Float64Histogram(
		"routedesk.render.duration",
		metric.WithDescription("Duration of chart rendering in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		renderer: renderer,
		logger:   cfg.Logger.With().Str("component", "render").Logger(),
		jobs:     make(chan *task, queueSize),
		stopped:  make(chan struct{}),
		tracer:   otel.Tracer(instrumentationName),
		duration: duration,
	}
	go d.worker()

	return d, nil
}

func (d *Dispatcher) worker() {
	defer close(d.stopped)
	for t := range d.jobs {
		t.result <- d.run(t.job)
	}
}

func (d *Dispatcher) run(job Job) (res taskResult) {
	start := time.Now()
	_, span := d.tracer.Start(context.Background(), "render.Job",
		trace.WithAttributes(attribute.String("render.kind", string(job.Kind))),
	)
	defer func() {
		if r := recover(); r != nil {
			res = taskResult{err: fmt.Errorf("renderer panic: %v", r)}
		}
		elapsed := time.Since(start)

		outcome := "ok"
		if res.err != nil {
			outcome = "error"
			res.err = &RenderError{Kind: job.Kind, Err: res.err}
			span.RecordError(res.err)
			span.SetStatus(codes.Error, "render failed")
			d.logger.Error().Err(res.err).Str("kind", string(job.Kind)).Dur("elapsed", elapsed).Msg("render failed")
		} else {
			span.SetAttributes(attribute.Int("render.bytes", len(res.data)))
			d.logger.Debug().Str("kind", string(job.Kind)).Int("bytes", len(res.data)).Dur("elapsed", elapsed).Msg("render completed")
		}
		d.duration.Record(context.Background(), elapsed.Seconds(), metric.WithAttributes(
			attribute.String("kind", string(job.Kind)),
			attribute.String("outcome", outcome),
		))
		span.End()
	}()

	data, err := d.renderer.Render(job)
	return taskResult{data: data, err: err}
}

// Submit queues a job and waits for its output. ctx bounds both the wait
// for a queue slot and the wait for the result; once queued, the job is
// rendered even if the caller gives up.
func (d *Dispatcher) Submit(ctx context.Context, job Job) ([]byte, error) {
	t := &task{job: job, result: make(chan taskResult, 1)}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return nil, ErrClosed
	}
	select {
	case d.jobs <- t:
	case <-ctx.Done():
		d.mu.RUnlock()
		return nil, ctx.Err()
	}
	d.mu.RUnlock()

	select {
	case res := <-t.result:
		return res.data, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// QueueDepth returns the number of jobs waiting for the renderer.
func (d *Dispatcher) QueueDepth() int {
	return len(d.jobs)
}

// Close stops accepting jobs, renders the ones already queued and waits
// for the worker to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	<-d.stopped
}
