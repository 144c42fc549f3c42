package search

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for engine calls.
var (
	// ErrSearchEngine wraps every failure raised while running a search.
	ErrSearchEngine = errors.New("search engine failed")
	// ErrEngineUnavailable indicates the engine is down or its circuit is open.
	ErrEngineUnavailable = errors.New("search engine unavailable")
	// ErrEngineRejected indicates the engine refused the request as invalid.
	ErrEngineRejected = errors.New("search engine rejected request")
	// ErrClosed is returned when submitting to a closed orchestrator.
	ErrClosed = errors.New("orchestrator closed")
)

// Engine is the external route search algorithm.
// Search returns candidates already ranked by req.SortBy.
type Engine interface {
	Search(ctx context.Context, req Request) ([]Candidate, error)
	Name() string
}

// EngineError reports a failed search. No partial result accompanies it.
type EngineError struct {
	Engine string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrSearchEngine, e.Engine, e.Err)
}

func (e *EngineError) Unwrap() []error {
	return []error{ErrSearchEngine, e.Err}
}
