package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/routedesk/routedesk/internal/api/middleware"
)

// withManualReader installs a meter provider backed by a manual reader for
// the duration of the test.
func withManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	prev := otel.GetMeterProvider()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		otel.SetMeterProvider(prev)
	})
	return reader
}

// sumByAttr totals an int64 counter grouped by one attribute.
func sumByAttr(t *testing.T, reader *sdkmetric.ManualReader, name, key string) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key(key))
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}

func newAPIRouter(t *testing.T) http.Handler {
	t.Helper()
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Post("/v1/routes:search", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.Route("/v1/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", okHandler)
		r.Post("/more", okHandler)
		r.Get("/map", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
		r.Post("/export", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusGone)
		})
	})
	r.Get("/v1/ops/health", okHandler)
	return r
}

func TestMetrics_Middleware_PassesThrough(t *testing.T) {
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	handler := metrics.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("routes"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unrouted", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "routes", rec.Body.String())
}

func TestMetrics_Middleware_LabelsByRoutePattern(t *testing.T) {
	reader := withManualReader(t)
	r := newAPIRouter(t)

	for _, id := range []string{"a1", "b2", "c3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/sessions/"+id+"/", http.NoBody))
	}

	routes := sumByAttr(t, reader, "http.server.request.total", "http.route")
	assert.Equal(t, map[string]int64{"/v1/sessions/{sessionID}/": 3}, routes)
}

func TestMetrics_Middleware_CountsOperations(t *testing.T) {
	reader := withManualReader(t)
	r := newAPIRouter(t)

	calls := []struct{ method, path string }{
		{http.MethodPost, "/v1/routes:search"},
		{http.MethodPost, "/v1/routes:search"},
		{http.MethodPost, "/v1/sessions/s1/more"},
		{http.MethodGet, "/v1/sessions/s1/map"},
		{http.MethodPost, "/v1/sessions/s1/export"},
		{http.MethodGet, "/v1/ops/health"},
		{http.MethodGet, "/nowhere"},
	}
	for _, c := range calls {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(c.method, c.path, http.NoBody))
	}

	ops := sumByAttr(t, reader, "routedesk.api.operations", "operation")
	assert.Equal(t, map[string]int64{
		"search":         2,
		"session.more":   1,
		"session.map":    1,
		"session.export": 1,
		"ops":            1,
		"other":          1,
	}, ops)

	classes := sumByAttr(t, reader, "routedesk.api.operations", "status_class")
	assert.Equal(t, map[string]int64{"2xx": 5, "4xx": 2}, classes)
}
