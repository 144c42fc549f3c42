package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/routedesk/routedesk/internal/api/models"
)

const rateWindow = time.Minute

// Limits are the per-minute request caps of the API.
type Limits struct {
	// Search caps route searches per client address. Each one holds an
	// engine worker until it returns.
	Search int
	// Session caps actions on one result session, whichever address they
	// come from.
	Session int
	// Standard caps the remaining limited endpoints per client address.
	Standard int
}

// DefaultLimits returns 30 searches, 20 session actions and 100 standard
// requests per minute.
func DefaultLimits() Limits {
	return Limits{Search: 30, Session: 20, Standard: 100}
}

// RateLimiters are the limiter middlewares built from Limits. Each holds
// its own counters.
type RateLimiters struct {
	Search   func(http.Handler) http.Handler
	Session  func(http.Handler) http.Handler
	Standard func(http.Handler) http.Handler
}

// NewRateLimiters builds the limiters. Non-positive limits fall back to
// DefaultLimits.
func NewRateLimiters(l Limits) RateLimiters {
	d := DefaultLimits()
	if l.Search <= 0 {
		l.Search = d.Search
	}
	if l.Session <= 0 {
		l.Session = d.Session
	}
	if l.Standard <= 0 {
		l.Standard = d.Standard
	}

	return RateLimiters{
		Search:   limiter("search", l.Search, httprate.KeyByRealIP),
		Session:  limiter("session", l.Session, keyBySessionOrIP),
		Standard: limiter("request", l.Standard, httprate.KeyByRealIP),
	}
}

func limiter(scope string, perMinute int, key httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(
		perMinute,
		rateWindow,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeRateLimited(w, r, scope, perMinute)
		}),
	)
}

// keyBySessionOrIP shares one budget across every address acting on the
// same {sessionID}; requests outside a session route use the client address.
func keyBySessionOrIP(r *http.Request) (string, error) {
	if sessionID := chi.URLParam(r, "sessionID"); sessionID != "" {
		return "session:" + sessionID, nil
	}
	return httprate.KeyByRealIP(r)
}

func writeRateLimited(w http.ResponseWriter, r *http.Request, scope string, perMinute int) {
	if w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", strconv.Itoa(int(rateWindow.Seconds())))
	}

	problem := models.NewTooManyRequests(
		GetRequestID(r.Context()),
		fmt.Sprintf("Rate limit exceeded: %d %s requests per minute. Please try again later.", perMinute, scope),
	)
	problem.Instance = r.URL.Path
	problem.Write(w)
}
