package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/routedesk/routedesk/internal/catalog"
	"github.com/routedesk/routedesk/internal/constraint"
)

// InputErrorKind classifies a rejected search query.
type InputErrorKind string

const (
	InputNoOrigins        InputErrorKind = "NO_ORIGINS"
	InputTooManyOrigins   InputErrorKind = "TOO_MANY_ORIGINS"
	InputAirportNotFound  InputErrorKind = "AIRPORT_NOT_FOUND"
	InputAircraftNotFound InputErrorKind = "AIRCRAFT_NOT_FOUND"
	InputConstraint       InputErrorKind = "CONSTRAINT_SYNTAX"
	InputTripsPerDay      InputErrorKind = "TRIPS_PER_DAY_SYNTAX"
	InputAlgorithm        InputErrorKind = "ALGORITHM_SYNTAX"
	InputGameMode         InputErrorKind = "GAME_MODE"
)

// InputError is a user-facing validation failure detected before any search runs.
type InputError struct {
	Kind    InputErrorKind
	Field   string
	Message string
	Err     error
}

func (e *InputError) Error() string {
	return e.Message
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// RawQuery is the unparsed search request as the user typed it.
type RawQuery struct {
	Origins         string
	Aircraft        string
	Constraint      string
	TripsPerDay     string
	ConfigAlgorithm string
	GameMode        string
}

// DefaultGameMode applies when the query does not name one.
const DefaultGameMode = catalog.ModeEasy

// Resolver validates raw queries and resolves them against the catalog.
type Resolver struct {
	catalog catalog.Repository
}

// NewResolver creates a Resolver over the given catalog.
func NewResolver(repo catalog.Repository) *Resolver {
	return &Resolver{catalog: repo}
}

// Resolve turns a RawQuery into a Request. Every user error is reported as
// *InputError; other errors come from the catalog backend.
func (r *Resolver) Resolve(ctx context.Context, q RawQuery) (Request, error) {
	mode, err := parseGameMode(q.GameMode)
	if err != nil {
		return Request{}, err
	}

	codes, err := constraint.SplitOrigins(q.Origins)
	if err != nil {
		if errors.Is(err, constraint.ErrTooManyOrigins) {
			return Request{}, &InputError{Kind: InputTooManyOrigins, Field: "origins", Message: err.Error(), Err: err}
		}
		return Request{}, &InputError{Kind: InputNoOrigins, Field: "origins", Message: "at least one origin is required", Err: err}
	}

	origins := make([]catalog.Airport, 0, len(codes))
	seen := make(map[int64]bool, len(codes))
	for _, code := range codes {
		ap, err := r.catalog.SearchAirport(ctx, code)
		if err != nil {
			if errors.Is(err, catalog.ErrAirportNotFound) {
				return Request{}, &InputError{
					Kind:    InputAirportNotFound,
					Field:   "origins",
					Message: fmt.Sprintf("airport %q not found", code),
					Err:     err,
				}
			}
			return Request{}, fmt.Errorf("resolve airport %q: %w", code, err)
		}
		if seen[ap.ID] {
			continue
		}
		seen[ap.ID] = true
		origins = append(origins, ap)
	}

	ac, err := r.catalog.SearchAircraft(ctx, q.Aircraft)
	if err != nil {
		if errors.Is(err, catalog.ErrAircraftNotFound) {
			return Request{}, &InputError{
				Kind:    InputAircraftNotFound,
				Field:   "aircraft",
				Message: fmt.Sprintf("aircraft %q not found", q.Aircraft),
				Err:     err,
			}
		}
		return Request{}, fmt.Errorf("resolve aircraft %q: %w", q.Aircraft, err)
	}

	rng, err := constraint.Parse(q.Constraint)
	if err != nil {
		return Request{}, &InputError{Kind: InputConstraint, Field: "constraint", Message: err.Error(), Err: err}
	}

	tpd, err := constraint.ParseTripsPerDay(q.TripsPerDay)
	if err != nil {
		return Request{}, &InputError{Kind: InputTripsPerDay, Field: "tripsPerDay", Message: err.Error(), Err: err}
	}

	algo, err := constraint.ParseConfigAlgorithm(q.ConfigAlgorithm, ac.IsCargo())
	if err != nil {
		return Request{}, &InputError{Kind: InputAlgorithm, Field: "configAlgorithm", Message: err.Error(), Err: err}
	}

	return Request{
		Origins:         origins,
		Aircraft:        ac,
		Constraint:      rng,
		TripsPerDay:     tpd,
		ConfigAlgorithm: algo,
		SortBy:          SortFor(rng),
		GameMode:        mode,
	}, nil
}

func parseGameMode(s string) (catalog.GameMode, error) {
	switch catalog.GameMode(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return DefaultGameMode, nil
	case catalog.ModeEasy:
		return catalog.ModeEasy, nil
	case catalog.ModeRealism:
		return catalog.ModeRealism, nil
	default:
		return "", &InputError{
			Kind:    InputGameMode,
			Field:   "gameMode",
			Message: fmt.Sprintf("game mode %q must be EASY or REALISM", s),
		}
	}
}
