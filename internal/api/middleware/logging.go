package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ContextLogger attaches log to the request context so zerolog.Ctx works in
// handlers. Install it before RequestID.
func ContextLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(log.WithContext(r.Context())))
		})
	}
}

// Logger returns a middleware that logs one line per request. Server
// errors log at error level and throttled requests at warn; liveness and
// readiness probes drop to debug so they do not drown the access log.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newStatusRecorder(w)

			next.ServeHTTP(wrapped, r)

			route := routePattern(r)
			event := accessEvent(log, route, wrapped.statusCode)
			if event == nil {
				return
			}

			if spanCtx := trace.SpanContextFromContext(r.Context()); spanCtx.IsValid() {
				event = event.
					Str("trace_id", spanCtx.TraceID().String()).
					Str("span_id", spanCtx.SpanID().String())
			}
			if sessionID := chi.URLParam(r, "sessionID"); sessionID != "" {
				event = event.Str("session_id", sessionID)
			}

			event.
				Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Str("operation", operationName(route)).
				Int("status", wrapped.statusCode).
				Int64("bytes", wrapped.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}

// accessEvent picks the level for a finished request. It returns nil when
// that level is disabled.
func accessEvent(log zerolog.Logger, route string, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return log.Error()
	case status == http.StatusTooManyRequests:
		return log.Warn()
	case isProbe(route) && status < http.StatusBadRequest:
		return log.Debug()
	}
	return log.Info()
}

func isProbe(route string) bool {
	return route == "/v1/ops/health" || route == "/v1/ops/ready" || route == "/health" || route == "/ready"
}
