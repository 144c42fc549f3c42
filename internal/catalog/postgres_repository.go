package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL catalog repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// SearchAirport resolves an airport by id, IATA/ICAO code or exact name.
func (r *PostgresRepository) SearchAirport(ctx context.Context, query string) (Airport, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return Airport{}, ErrAirportNotFound
	}

	const columns = `id, iata, icao, name, country, lat, lng, runway_m, hub_cost`

	if id, err := strconv.ParseInt(q, 10, 64); err == nil {
		a, err := r.scanAirport(ctx, `SELECT `+columns+` FROM airports WHERE id = $1`, id)
		if !errors.Is(err, ErrAirportNotFound) {
			return a, err
		}
	}

	a, err := r.scanAirport(ctx, `
		SELECT `+columns+`
		FROM airports
		WHERE iata = upper($1) OR icao = upper($1) OR lower(name) = lower($1)
		ORDER BY (iata = upper($1)) DESC, (icao = upper($1)) DESC
		LIMIT 1
	`, q)
	if errors.Is(err, ErrAirportNotFound) {
		return Airport{}, fmt.Errorf("%w: %q", ErrAirportNotFound, query)
	}
	return a, err
}

func (r *PostgresRepository) scanAirport(ctx context.Context, query string, args ...interface{}) (Airport, error) {
	var a Airport
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.IATA,
		&a.ICAO,
		&a.Name,
		&a.Country,
		&a.Location.Lat,
		&a.Location.Long,
		&a.RunwayM,
		&a.HubCost,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Airport{}, ErrAirportNotFound
		}
		return Airport{}, fmt.Errorf("query airport: %w", err)
	}
	return a, nil
}

// SearchAircraft resolves an aircraft by id, short name or exact name.
func (r *PostgresRepository) SearchAircraft(ctx context.Context, query string) (Aircraft, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return Aircraft{}, ErrAircraftNotFound
	}

	const columns = `id, shortname, name, manufacturer, type, speed_kmh, range_km, capacity, runway_m`

	if id, err := strconv.ParseInt(q, 10, 64); err == nil {
		a, err := r.scanAircraft(ctx, `SELECT `+columns+` FROM aircraft WHERE id = $1`, id)
		if !errors.Is(err, ErrAircraftNotFound) {
			return a, err
		}
	}

	a, err := r.scanAircraft(ctx, `
		SELECT `+columns+`
		FROM aircraft
		WHERE lower(shortname) = lower($1) OR lower(name) = lower($1)
		ORDER BY (lower(shortname) = lower($1)) DESC
		LIMIT 1
	`, q)
	if errors.Is(err, ErrAircraftNotFound) {
		return Aircraft{}, fmt.Errorf("%w: %q", ErrAircraftNotFound, query)
	}
	return a, err
}

func (r *PostgresRepository) scanAircraft(ctx context.Context, query string, args ...interface{}) (Aircraft, error) {
	var (
		a    Aircraft
		kind string
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&a.ID,
		&a.ShortName,
		&a.Name,
		&a.Manufacturer,
		&kind,
		&a.SpeedKMH,
		&a.RangeKM,
		&a.Capacity,
		&a.RunwayM,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Aircraft{}, ErrAircraftNotFound
		}
		return Aircraft{}, fmt.Errorf("query aircraft: %w", err)
	}
	a.Type = AircraftType(strings.ToUpper(kind))
	return a, nil
}
