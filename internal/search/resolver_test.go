package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/skypies/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/routedesk/internal/catalog"
	"github.com/routedesk/routedesk/internal/constraint"
)

func testCatalog() *catalog.InMemoryRepository {
	airports := make([]catalog.Airport, 0, 30)
	for i := 0; i < 30; i++ {
		airports = append(airports, catalog.Airport{
			ID:       int64(i + 1),
			IATA:     fmt.Sprintf("A%02d", i),
			Location: geo.Latlong{Lat: float64(i), Long: float64(i)},
		})
	}
	aircraft := []catalog.Aircraft{
		{ID: 1, ShortName: "b744", Name: "B747-400", Type: catalog.AircraftPax, SpeedKMH: 907},
		{ID: 2, ShortName: "b748f", Name: "B747-8F", Type: catalog.AircraftCargo, SpeedKMH: 908},
	}
	return catalog.NewInMemoryRepository(airports, aircraft)
}

func originList(n int) string {
	codes := make([]string, n)
	for i := range codes {
		codes[i] = fmt.Sprintf("A%02d", i)
	}
	return strings.Join(codes, ",")
}

func TestResolve_Defaults(t *testing.T) {
	r := NewResolver(testCatalog())

	req, err := r.Resolve(context.Background(), RawQuery{Origins: "a00", Aircraft: "b744"})
	require.NoError(t, err)

	require.Len(t, req.Origins, 1)
	assert.Equal(t, "A00", req.Origins[0].IATA)
	assert.Equal(t, "b744", req.Aircraft.ShortName)
	assert.True(t, req.Constraint.IsZero())
	assert.Equal(t, constraint.DefaultTripsPerDay(), req.TripsPerDay)
	assert.Equal(t, constraint.AlgorithmAuto, req.ConfigAlgorithm)
	assert.Equal(t, SortPerTrip, req.SortBy)
	assert.Equal(t, DefaultGameMode, req.GameMode)
	assert.False(t, req.MultiOrigin())
}

func TestResolve_FullQuery(t *testing.T) {
	r := NewResolver(testCatalog())

	req, err := r.Resolve(context.Background(), RawQuery{
		Origins:         "A00, A01, A00",
		Aircraft:        "B747-8F",
		Constraint:      "..12:00",
		TripsPerDay:     "2!",
		ConfigAlgorithm: "h",
		GameMode:        "realism",
	})
	require.NoError(t, err)

	assert.Len(t, req.Origins, 2, "duplicate origins collapse")
	assert.True(t, req.MultiOrigin())
	assert.Equal(t, SortPerACPerDay, req.SortBy)
	assert.Equal(t, constraint.TripsPerDayStrict, req.TripsPerDay.Mode)
	assert.Equal(t, constraint.ConfigAlgorithm("H"), req.ConfigAlgorithm)
	assert.Equal(t, catalog.ModeRealism, req.GameMode)
}

func TestResolve_OriginCap(t *testing.T) {
	r := NewResolver(testCatalog())

	req, err := r.Resolve(context.Background(), RawQuery{Origins: originList(24), Aircraft: "b744"})
	require.NoError(t, err)
	assert.Len(t, req.Origins, 24)

	_, err = r.Resolve(context.Background(), RawQuery{Origins: originList(25), Aircraft: "b744"})
	var inErr *InputError
	require.ErrorAs(t, err, &inErr)
	assert.Equal(t, InputTooManyOrigins, inErr.Kind)
	assert.ErrorIs(t, err, constraint.ErrTooManyOrigins)
}

func TestResolve_InputErrors(t *testing.T) {
	tests := []struct {
		name  string
		query RawQuery
		kind  InputErrorKind
		field string
	}{
		{"no origins", RawQuery{Origins: " ", Aircraft: "b744"}, InputNoOrigins, "origins"},
		{"unknown airport", RawQuery{Origins: "A00,ZZZ", Aircraft: "b744"}, InputAirportNotFound, "origins"},
		{"unknown aircraft", RawQuery{Origins: "A00", Aircraft: "concorde"}, InputAircraftNotFound, "aircraft"},
		{"bad constraint", RawQuery{Origins: "A00", Aircraft: "b744", Constraint: "far"}, InputConstraint, "constraint"},
		{"bad tpd", RawQuery{Origins: "A00", Aircraft: "b744", TripsPerDay: "0"}, InputTripsPerDay, "tripsPerDay"},
		{"cargo algorithm on pax", RawQuery{Origins: "A00", Aircraft: "b744", ConfigAlgorithm: "L"}, InputAlgorithm, "configAlgorithm"},
		{"bad game mode", RawQuery{Origins: "A00", Aircraft: "b744", GameMode: "hard"}, InputGameMode, "gameMode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver(testCatalog()).Resolve(context.Background(), tt.query)
			require.Error(t, err)

			var inErr *InputError
			require.True(t, errors.As(err, &inErr))
			assert.Equal(t, tt.kind, inErr.Kind)
			assert.Equal(t, tt.field, inErr.Field)
			assert.NotEmpty(t, inErr.Error())
		})
	}
}

type brokenCatalog struct{}

func (brokenCatalog) SearchAirport(context.Context, string) (catalog.Airport, error) {
	return catalog.Airport{}, errors.New("connection refused")
}

func (brokenCatalog) SearchAircraft(context.Context, string) (catalog.Aircraft, error) {
	return catalog.Aircraft{}, errors.New("connection refused")
}

func TestResolve_BackendErrorIsNotInputError(t *testing.T) {
	_, err := NewResolver(brokenCatalog{}).Resolve(context.Background(), RawQuery{Origins: "A00", Aircraft: "b744"})
	require.Error(t, err)

	var inErr *InputError
	assert.False(t, errors.As(err, &inErr))
}
