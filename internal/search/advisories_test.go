package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/routedesk/internal/catalog"
	"github.com/routedesk/routedesk/internal/constraint"
	"github.com/routedesk/routedesk/internal/feasibility"
)

func TestAdvisories_ImpossibleScheduleAndRunway(t *testing.T) {
	maxH := 10.0
	req := Request{
		Origins:     []catalog.Airport{{ID: 1, IATA: "HKG", RunwayM: 1500}},
		Aircraft:    catalog.Aircraft{Name: "B747-400", SpeedKMH: 900, RunwayM: 3000},
		Constraint:  constraint.Range{MaxFlightTimeH: &maxH},
		TripsPerDay: constraint.TripsPerDay{Value: 3, Mode: constraint.TripsPerDayStrict, Explicit: true},
		GameMode:    catalog.ModeRealism,
	}

	advs := Advisories(req)
	require.Len(t, advs, 2)
	assert.Equal(t, feasibility.KindImpossible, advs[0].Kind)
	assert.Equal(t, feasibility.KindRunway, advs[1].Kind)
}

func TestAdvisories_NoneWithoutUpperBound(t *testing.T) {
	req := Request{
		Origins:     []catalog.Airport{{ID: 1, IATA: "HKG"}},
		Aircraft:    catalog.Aircraft{SpeedKMH: 900},
		TripsPerDay: constraint.DefaultTripsPerDay(),
		GameMode:    catalog.ModeEasy,
	}

	assert.Empty(t, Advisories(req))
}

func TestAdvisories_UnscheduledForLowerBoundOnly(t *testing.T) {
	rng, err := constraint.Parse("12:00..")
	require.NoError(t, err)

	req := Request{
		Origins:     []catalog.Airport{{ID: 1, IATA: "HKG"}},
		Aircraft:    catalog.Aircraft{SpeedKMH: 900},
		Constraint:  rng,
		TripsPerDay: constraint.DefaultTripsPerDay(),
		GameMode:    catalog.ModeEasy,
	}

	advs := Advisories(req)
	require.Len(t, advs, 1)
	assert.Equal(t, feasibility.KindUnscheduled, advs[0].Kind)
	assert.Nil(t, advs[0].SuggestedTripsPerDay)
}
