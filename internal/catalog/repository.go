package catalog

import "context"

// Repository resolves user queries to reference data.
type Repository interface {
	// SearchAirport resolves an IATA/ICAO code, numeric id or name.
	// Returns ErrAirportNotFound when nothing matches.
	SearchAirport(ctx context.Context, query string) (Airport, error)

	// SearchAircraft resolves a short name, numeric id or full name.
	// Returns ErrAircraftNotFound when nothing matches.
	SearchAircraft(ctx context.Context, query string) (Aircraft, error)
}
