package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/routedesk/routedesk/internal/api/middleware"
	"github.com/routedesk/routedesk/internal/api/models"
	"github.com/routedesk/routedesk/internal/api/response"
	"github.com/routedesk/routedesk/internal/search"
	"github.com/routedesk/routedesk/internal/session"
	"github.com/routedesk/routedesk/internal/validation"
)

const (
	// maxSearchBody bounds the search request body.
	maxSearchBody = 64 << 10

	// busyRetryAfter is the wait suggested when every search worker stayed busy.
	busyRetryAfter = 5 * time.Second
)

// QueryResolver turns raw user input into a search request.
type QueryResolver interface {
	Resolve(ctx context.Context, q search.RawQuery) (search.Request, error)
}

// Searcher runs resolved searches.
type Searcher interface {
	Execute(ctx context.Context, req search.Request) (*search.Result, error)
}

// SessionCreator registers the session for a completed search.
type SessionCreator interface {
	Create(result *search.Result) *session.Session
}

// SearchHandler handles route searches.
type SearchHandler struct {
	resolver QueryResolver
	searcher Searcher
	sessions SessionCreator
	logger   zerolog.Logger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(resolver QueryResolver, searcher Searcher, sessions SessionCreator, logger zerolog.Logger) *SearchHandler {
	return &SearchHandler{
		resolver: resolver,
		searcher: searcher,
		sessions: sessions,
		logger:   logger.With().Str("handler", "search").Logger(),
	}
}

// Search handles POST /v1/routes:search.
// Input errors are reported before any search runs. A non-empty result
// opens a session and answers 201 with its first page.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var input models.SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSearchBody)).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if err := validation.Struct(&input); err != nil {
		response.BadRequest(w, r, "invalid search request", fieldErrors(err))
		return
	}

	req, err := h.resolver.Resolve(r.Context(), search.RawQuery{
		Origins:         strings.Join(input.Origins, ","),
		Aircraft:        input.Aircraft,
		Constraint:      input.Constraint,
		TripsPerDay:     input.TripsPerDay,
		ConfigAlgorithm: input.ConfigAlgorithm,
		GameMode:        input.GameMode,
	})
	if err != nil {
		var inputErr *search.InputError
		if errors.As(err, &inputErr) {
			response.BadRequest(w, r, inputErr.Message, []models.FieldError{{
				Field:   inputErr.Field,
				Message: inputErr.Message,
				Code:    string(inputErr.Kind),
			}})
			return
		}
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("catalog lookup failed")
		response.ServiceUnavailable(w, r, "the airport and aircraft catalog is unavailable")
		return
	}

	result, err := h.searcher.Execute(r.Context(), req)
	if err != nil {
		h.writeSearchError(w, r, err)
		return
	}

	advisories := toAdvisories(search.Advisories(req))
	multi := req.MultiOrigin()

	resp := models.SearchResponse{
		Title:      searchTitle(req),
		Query:      toQueryEcho(req),
		Footer:     toFooter(result),
		Advisories: advisories,
		Routes:     []models.RouteView{},
	}

	if result.Results.Len() == 0 {
		resp.Message = noRoutesMessage
		response.JSON(w, r, http.StatusOK, resp)
		return
	}

	s := h.sessions.Create(result)
	page := s.FirstPage()
	snap := s.Snapshot()
	links := sessionLinks(s.ID(), multi)

	resp.SessionID = s.ID()
	resp.Routes = toRouteViews(page.Routes, page.From, multi)
	resp.Page = toPageMeta(page)
	resp.Affordances = toAffordances(snap.Affordances)
	resp.ExpiresAt = models.TimestampPtr(&snap.ExpiresAt)
	resp.Links = &links

	response.Created(w, r, links.Self, resp)
}

func (h *SearchHandler) writeSearchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, search.ErrSearchEngine):
		response.SearchEngineError(w, r, "the route search engine failed; try again shortly")
	case errors.Is(err, search.ErrClosed):
		response.ServiceUnavailable(w, r, "the service is shutting down")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.Busy(w, r, "no search capacity became available in time", busyRetryAfter)
	default:
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("route search failed")
		response.InternalError(w, r, "route search failed")
	}
}

// fieldErrors converts validator output to problem field errors.
func fieldErrors(err error) []models.FieldError {
	var verr *validation.Error
	if !errors.As(err, &verr) {
		return []models.FieldError{{Field: "body", Message: err.Error()}}
	}
	out := make([]models.FieldError, len(verr.Fields))
	for i, f := range verr.Fields {
		out[i] = models.FieldError{Field: f.Field, Message: f.Message, Code: f.Tag}
	}
	return out
}
