package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/routedesk/routedesk/internal/api/middleware"
	"github.com/routedesk/routedesk/internal/api/models"
	"github.com/routedesk/routedesk/internal/api/response"
	"github.com/routedesk/routedesk/internal/session"
)

// SessionFinder looks sessions up by id.
type SessionFinder interface {
	Get(id string) (*session.Session, error)
}

// SessionHandler handles the actions offered on a search result.
// Actions on an expired session, or on an affordance that is no longer
// offered, answer 200 with accepted=false.
type SessionHandler struct {
	sessions SessionFinder
	logger   zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions SessionFinder, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger.With().Str("handler", "session").Logger(),
	}
}

// lookup resolves the {sessionID} parameter, writing a 404 when unknown.
func (h *SessionHandler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		response.NotFound(w, r, "session not found or no longer retained")
		return nil, false
	}
	return s, true
}

// Get handles GET /v1/sessions/{sessionID}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, toSessionView(s))
}

// More handles POST /v1/sessions/{sessionID}/more.
func (h *SessionHandler) More(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	page, err := s.RevealMore()
	if err != nil {
		h.reject(w, r, s, err)
		return
	}

	snap := s.Snapshot()
	response.JSON(w, r, http.StatusOK, models.PageResponse{
		Accepted:    true,
		SessionID:   s.ID(),
		Routes:      toRouteViews(page.Routes, page.From, s.Result().Request.MultiOrigin()),
		Page:        toPageMeta(page),
		Affordances: toAffordances(snap.Affordances),
		ExpiresAt:   models.Timestamp(snap.ExpiresAt),
	})
}

// Export handles POST /v1/sessions/{sessionID}/export?format=csv|json.
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	format, err := session.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		response.BadRequest(w, r, "format must be csv or json", []models.FieldError{{
			Field:   "format",
			Message: err.Error(),
			Code:    "oneof",
		}})
		return
	}

	out, err := s.Export(format)
	if err != nil {
		if isSessionState(err) {
			h.reject(w, r, s, err)
			return
		}
		h.logger.Error().
			Err(err).
			Str("session_id", s.ID()).
			Str("format", string(format)).
			Msg("export failed")
		response.InternalError(w, r, "export failed")
		return
	}

	response.File(w, r, out.ContentType, out.Filename, out.Data)
}

// CompareHubs handles POST /v1/sessions/{sessionID}/compare-hubs.
func (h *SessionHandler) CompareHubs(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	cmp, err := s.CompareHubs(r.Context())
	if err != nil {
		if isSessionState(err) {
			h.reject(w, r, s, err)
			return
		}
		response.RenderError(w, r, "the hub comparison chart could not be rendered")
		return
	}

	response.File(w, r, "application/pdf", cmp.Filename, cmp.PDF)
}

// Map handles GET /v1/sessions/{sessionID}/map. The map stays available
// after the session expires, for as long as the session is retained.
func (h *SessionHandler) Map(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}

	status, pdf := s.Map()
	switch status {
	case session.MapReady:
		response.File(w, r, "application/pdf", s.MapFilename(), pdf)
	case session.MapPending:
		w.Header().Set("Retry-After", "2")
		response.Accepted(w, r, r.URL.Path, models.MapPending{Status: string(status)})
	case session.MapFailed:
		response.RenderError(w, r, "the routes map could not be rendered")
	default:
		response.NotFound(w, r, "no routes map is produced for this session")
	}
}

func isSessionState(err error) bool {
	return errors.Is(err, session.ErrExpired) || errors.Is(err, session.ErrDisabled)
}

// reject answers a no-op action with the current state.
func (h *SessionHandler) reject(w http.ResponseWriter, r *http.Request, s *session.Session, err error) {
	reason := "disabled"
	if errors.Is(err, session.ErrExpired) {
		reason = "expired"
	}

	snap := s.Snapshot()
	h.logger.Debug().
		Str("session_id", s.ID()).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("reason", reason).
		Msg("session action ignored")

	response.JSON(w, r, http.StatusOK, models.ActionRejected{
		Accepted:    false,
		State:       string(snap.State),
		Reason:      reason,
		Affordances: toAffordances(snap.Affordances),
		Expiry:      toExpiry(snap.Expiry),
	})
}
