package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/routedesk/routedesk/internal/api/middleware"

// Metrics records HTTP server instruments plus a per-operation counter, so
// dashboards can tell searches, page fetches, exports, hub comparisons and
// map polls apart without parsing routes.
type Metrics struct {
	requestDuration  metric.Float64Histogram
	requestTotal     metric.Int64Counter
	requestsInFlight metric.Int64UpDownCounter
	responseSize     metric.Int64Histogram
	operations       metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.requestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Duration of HTTP server requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60),
	); err != nil {
		return nil, fmt.Errorf("request duration: %w", err)
	}

	if m.requestTotal, err = meter.Int64Counter(
		"http.server.request.total",
		metric.WithDescription("Total number of HTTP server requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("request total: %w", err)
	}

	if m.requestsInFlight, err = meter.Int64UpDownCounter(
		"http.server.requests_in_flight",
		metric.WithDescription("Number of HTTP requests currently being processed"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("requests in flight: %w", err)
	}

	if m.responseSize, err = meter.Int64Histogram(
		"http.server.response.size",
		metric.WithDescription("Size of HTTP server responses in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, fmt.Errorf("response size: %w", err)
	}

	if m.operations, err = meter.Int64Counter(
		"routedesk.api.operations",
		metric.WithDescription("API operations by name and status class"),
		metric.WithUnit("{operation}"),
	); err != nil {
		return nil, fmt.Errorf("operations: %w", err)
	}

	return m, nil
}

// Middleware returns an HTTP middleware that records metrics for each
// request, labelled by route pattern rather than raw path.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			// The route is unknown until the router has matched, so the
			// in-flight gauge is labelled by method only.
			inFlight := metric.WithAttributes(attribute.String("http.method", r.Method))
			m.requestsInFlight.Add(ctx, 1, inFlight)
			defer m.requestsInFlight.Add(ctx, -1, inFlight)

			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r)

			route := routePattern(r)
			attrs := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.status_code", strconv.Itoa(wrapped.statusCode)),
				attribute.Bool("error", wrapped.statusCode >= http.StatusBadRequest),
			)

			m.requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
			m.requestTotal.Add(ctx, 1, attrs)
			m.responseSize.Record(ctx, wrapped.written, attrs)
			m.operations.Add(ctx, 1, metric.WithAttributes(
				attribute.String("operation", operationName(route)),
				attribute.String("status_class", statusClass(wrapped.statusCode)),
			))
		})
	}
}

const sessionRoute = "/v1/sessions/{sessionID}"

// operationName maps a route pattern to a low-cardinality operation label:
// "search", "session.get", "session.more", "session.export",
// "session.compare-hubs", "session.map", "ops" or "other".
func operationName(route string) string {
	switch {
	case strings.HasSuffix(route, ":search"):
		return "search"
	case strings.HasPrefix(route, sessionRoute):
		action := strings.Trim(strings.TrimPrefix(route, sessionRoute), "/")
		if action == "" {
			return "session.get"
		}
		return "session." + action
	case strings.HasPrefix(route, "/v1/ops/"):
		return "ops"
	}
	return "other"
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
