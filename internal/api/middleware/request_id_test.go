package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/routedesk/internal/api/middleware"
)

func serveWithID(t *testing.T, incoming string) (ctxID, headerID string) {
	t.Helper()
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/searches", nil)
	if incoming != "" {
		req.Header.Set(middleware.RequestIDHeader, incoming)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return ctxID, w.Header().Get(middleware.RequestIDHeader)
}

func TestRequestID_GeneratesID(t *testing.T) {
	ctxID, headerID := serveWithID(t, "")

	assert.True(t, strings.HasPrefix(ctxID, "req_"))
	assert.Len(t, ctxID, len("req_")+32)
	assert.Equal(t, ctxID, headerID)
}

func TestRequestID_IncomingHeader(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "plain", incoming: "batch-7f3a.0012", keep: true},
		{name: "underscore", incoming: "upstream_req_42", keep: true},
		{name: "too long", incoming: strings.Repeat("a", 65), keep: false},
		{name: "whitespace", incoming: "id with spaces", keep: false},
		{name: "newline", incoming: "abc\ninjected", keep: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctxID, headerID := serveWithID(t, tt.incoming)
			assert.Equal(t, ctxID, headerID)
			if tt.keep {
				assert.Equal(t, tt.incoming, ctxID)
			} else {
				assert.NotEqual(t, tt.incoming, ctxID)
				assert.True(t, strings.HasPrefix(ctxID, "req_"))
			}
		})
	}
}

func TestRequestID_ContextLoggerCarriesID(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("searching")
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/abc", nil)
	req.Header.Set(middleware.RequestIDHeader, "trace-1")
	req = req.WithContext(base.WithContext(req.Context()))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotEmpty(t, buf.String())
	assert.Contains(t, buf.String(), `"request_id":"trace-1"`)
}

func TestGetRequestID_MissingContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

func TestRequestID_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		_, id := serveWithID(t, "")
		require.NotEmpty(t, id)
		assert.False(t, seen[id], "duplicate request ID generated: %s", id)
		seen[id] = true
	}
}

func TestContextLogger_WithRequestID(t *testing.T) {
	var buf bytes.Buffer
	chain := middleware.ContextLogger(zerolog.New(&buf))(middleware.RequestID(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			zerolog.Ctx(r.Context()).Warn().Msg("engine slow")
		}),
	))

	w := httptest.NewRecorder()
	chain.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ops/status", nil))

	assert.Contains(t, buf.String(), `"message":"engine slow"`)
	assert.Contains(t, buf.String(), w.Header().Get(middleware.RequestIDHeader))
}
