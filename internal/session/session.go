// Package session implements the interactive lifecycle of a search result:
// paging, exports and hub comparison, all withdrawn after a dwell timeout.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/routedesk/routedesk/internal/hubcompare"
	"github.com/routedesk/routedesk/internal/render"
	"github.com/routedesk/routedesk/internal/search"
)

const (
	// DefaultTimeout is the dwell time after the last accepted action.
	DefaultTimeout = 15 * time.Second

	// PageSize is the number of candidates shown per page.
	PageSize = 3
)

// Session-state errors. Callers treat them as no-ops.
var (
	// ErrExpired is returned for any action after the session expired.
	ErrExpired = errors.New("session expired")
	// ErrDisabled is returned when the affordance is not (or no longer) available.
	ErrDisabled = errors.New("action disabled")
)

// State is the lifecycle state of a session.
type State string

const (
	StateActive  State = "ACTIVE"
	StateExpired State = "EXPIRED"
)

// Submitter renders chart jobs. *render.Dispatcher implements it.
type Submitter interface {
	Submit(ctx context.Context, job render.Job) ([]byte, error)
}

// Page is a slice of the result set.
type Page struct {
	From    int
	To      int
	Total   int
	Routes  []search.Candidate
	HasMore bool
}

// Affordances lists the actions a session currently accepts.
type Affordances struct {
	RevealMore  bool `json:"revealMore"`
	ExportCSV   bool `json:"exportCsv"`
	ExportJSON  bool `json:"exportJson"`
	CompareHubs bool `json:"compareHubs"`
}

// Expiry describes how a session ended.
type Expiry struct {
	At time.Time
	// BackToTop is set when the cursor had moved past the first page, so
	// the first page is worth linking back to.
	BackToTop bool
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID          string
	State       State
	Cursor      int
	Total       int
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Affordances Affordances
	Expiry      *Expiry
}

// Config holds configuration for creating a Session.
type Config struct {
	// Timeout is the dwell timeout (optional, defaults to 15s).
	Timeout time.Duration

	// Renderer renders the hub comparison (required for CompareHubs).
	Renderer Submitter

	// OnExpire is called without the session lock once the session expires.
	OnExpire func(s *Session)

	Logger zerolog.Logger
}

// Session is the interactive state of one search result. Actions are
// serialised by the session's own lock; sessions share nothing.
type Session struct {
	id        string
	result    *search.Result
	createdAt time.Time
	timeout   time.Duration
	renderer  Submitter
	onExpire  func(*Session)
	logger    zerolog.Logger

	mu         sync.Mutex
	state      State
	cursor     int
	expiresAt  time.Time
	generation uint64
	timer      *time.Timer
	exported   map[Format]bool
	compared   bool
	expiry     *Expiry

	// expiredAt mirrors expiry.At for readers that must not wait on mu.
	expiredAt atomic.Pointer[time.Time]

	mapMu  sync.Mutex
	mapArt mapArtifact
}

// New creates an active session whose first page has already been shown.
func New(id string, result *search.Result, cfg Config) *Session {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s := &Session{
		id:        id,
		result:    result,
		createdAt: time.Now(),
		timeout:   timeout,
		renderer:  cfg.Renderer,
		onExpire:  cfg.OnExpire,
		logger:    cfg.Logger.With().Str("session_id", id).Logger(),
		state:     StateActive,
		cursor:    PageSize,
		exported:  make(map[Format]bool, 2),
		mapArt:    mapArtifact{status: MapNone},
	}

	s.mu.Lock()
	s.armLocked()
	s.mu.Unlock()

	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Result returns the search result the session pages through.
func (s *Session) Result() *search.Result {
	return s.result
}

// FirstPage returns the candidates shown with the search response.
func (s *Session) FirstPage() Page {
	rs := s.result.Results
	routes := rs.Slice(0, PageSize)
	return Page{
		From:    0,
		To:      len(routes),
		Total:   rs.Len(),
		Routes:  routes,
		HasMore: rs.Len() > PageSize,
	}
}

// Snapshot returns the current state and affordances.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:          s.id,
		State:       s.state,
		Cursor:      s.cursor,
		Total:       s.result.Results.Len(),
		CreatedAt:   s.createdAt,
		ExpiresAt:   s.expiresAt,
		Affordances: s.affordancesLocked(),
	}
	if s.expiry != nil {
		e := *s.expiry
		snap.Expiry = &e
	}
	return snap
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ExpiredAt returns when the session expired, without waiting for a
// running action.
func (s *Session) ExpiredAt() (time.Time, bool) {
	if t := s.expiredAt.Load(); t != nil {
		return *t, true
	}
	return time.Time{}, false
}

func (s *Session) affordancesLocked() Affordances {
	if s.state != StateActive {
		return Affordances{}
	}
	return Affordances{
		RevealMore:  s.cursor < s.result.Results.Len(),
		ExportCSV:   !s.exported[FormatCSV],
		ExportJSON:  !s.exported[FormatJSON],
		CompareHubs: s.result.Request.MultiOrigin() && !s.compared && s.renderer != nil,
	}
}

// RevealMore returns the next page and advances the cursor by PageSize.
// It is disabled once the cursor reaches the end of the result set.
func (s *Session) RevealMore() (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return Page{}, ErrExpired
	}
	rs := s.result.Results
	if s.cursor >= rs.Len() {
		return Page{}, ErrDisabled
	}

	from := s.cursor
	routes := rs.Slice(from, from+PageSize)
	s.cursor += PageSize
	s.armLocked()

	s.logger.Debug().Int("from", from).Int("cursor", s.cursor).Msg("revealed more routes")

	return Page{
		From:    from,
		To:      from + len(routes),
		Total:   rs.Len(),
		Routes:  routes,
		HasMore: s.cursor < rs.Len(),
	}, nil
}

// Export serialises the full result set. Each format can be exported once;
// the cursor is not touched.
func (s *Session) Export(f Format) (Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return Export{}, ErrExpired
	}
	if s.exported[f] {
		return Export{}, ErrDisabled
	}

	out, err := buildExport(f, s.result)
	if err != nil {
		return Export{}, err
	}
	s.exported[f] = true
	s.armLocked()

	s.logger.Info().Str("format", string(f)).Int("bytes", len(out.Data)).Msg("exported routes")
	return out, nil
}

// HubComparison is the output of CompareHubs.
type HubComparison struct {
	Filename string
	Report   hubcompare.Report
	PDF      []byte
}

// CompareHubs ranks the origins and renders the comparison chart. It is
// only available for multi-origin searches and only once. The session
// stays locked until the renderer returns.
func (s *Session) CompareHubs(ctx context.Context) (HubComparison, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateActive {
		return HubComparison{}, ErrExpired
	}
	if !s.result.Request.MultiOrigin() || s.compared || s.renderer == nil {
		return HubComparison{}, ErrDisabled
	}
	s.compared = true
	defer s.armLocked()

	req := s.result.Request
	report := hubcompare.Rank(search.SamplesFromCandidates(req, s.result.Results))

	title := fmt.Sprintf("Hub comparison: %s", FileSuffix(req))
	pdf, err := s.renderer.Submit(ctx, render.NewHubComparisonJob(title, report))
	if err != nil {
		s.logger.Error().Err(err).Msg("hub comparison render failed")
		return HubComparison{}, err
	}

	s.logger.Info().Int("hubs", len(report.Rows)).Msg("compared hubs")
	return HubComparison{
		Filename: fmt.Sprintf("hub_comparison_%s.pdf", FileSuffix(req)),
		Report:   report,
		PDF:      pdf,
	}, nil
}

// Expire ends the session immediately.
func (s *Session) Expire() {
	s.mu.Lock()
	expired := s.expireLocked()
	s.mu.Unlock()

	if expired && s.onExpire != nil {
		s.onExpire(s)
	}
}

// armLocked restarts the dwell timer. Timers from earlier generations
// find a newer generation and do nothing.
func (s *Session) armLocked() {
	s.generation++
	gen := s.generation
	s.expiresAt = time.Now().Add(s.timeout)

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.timeout, func() {
		s.onTimeout(gen)
	})
}

func (s *Session) onTimeout(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	expired := s.expireLocked()
	s.mu.Unlock()

	if expired {
		s.logger.Debug().Msg("session expired")
		if s.onExpire != nil {
			s.onExpire(s)
		}
	}
}

func (s *Session) expireLocked() bool {
	if s.state != StateActive {
		return false
	}
	s.state = StateExpired
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
	}
	now := time.Now()
	s.expiry = &Expiry{
		At:        now,
		BackToTop: s.cursor > PageSize,
	}
	s.expiredAt.Store(&now)
	return true
}
