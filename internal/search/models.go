// Package search runs route searches against the external engine on a
// bounded worker pool and packages the engine's ordered output.
package search

import (
	"github.com/routedesk/routedesk/internal/catalog"
	"github.com/routedesk/routedesk/internal/constraint"
)

// SortBy is the ranking key the engine applied.
type SortBy string

const (
	// SortPerTrip ranks by profit per trip.
	SortPerTrip SortBy = "PER_TRIP"
	// SortPerACPerDay ranks by profit per aircraft per day.
	SortPerACPerDay SortBy = "PER_AC_PER_DAY"
)

// Label is the footer wording for the sort key.
func (s SortBy) Label() string {
	if s == SortPerACPerDay {
		return "$ per ac per day"
	}
	return "$ per trip"
}

// SortFor derives the sort key: a constrained search ranks by daily
// profit per aircraft, an unconstrained one by profit per trip.
func SortFor(c constraint.Range) SortBy {
	if c.IsZero() {
		return SortPerTrip
	}
	return SortPerACPerDay
}

// Request is one validated route search.
// It is built once by Resolver and never modified afterwards.
type Request struct {
	Origins         []catalog.Airport
	Aircraft        catalog.Aircraft
	Constraint      constraint.Range
	TripsPerDay     constraint.TripsPerDay
	ConfigAlgorithm constraint.ConfigAlgorithm
	SortBy          SortBy
	GameMode        catalog.GameMode
}

// MultiOrigin reports whether more than one origin was requested.
func (r Request) MultiOrigin() bool {
	return len(r.Origins) > 1
}

// Config is a cabin or cargo hold layout.
// Passenger aircraft use Y/J/F; cargo aircraft use L/H in percent.
type Config struct {
	Y int `json:"y,omitempty"`
	J int `json:"j,omitempty"`
	F int `json:"f,omitempty"`
	L int `json:"l,omitempty"`
	H int `json:"h,omitempty"`
}

// Demand is the daily demand on a route.
type Demand struct {
	Y int `json:"y,omitempty"`
	J int `json:"j,omitempty"`
	F int `json:"f,omitempty"`
	L int `json:"l,omitempty"`
	H int `json:"h,omitempty"`
}

// Ticket holds per-class ticket prices.
type Ticket struct {
	Y float64 `json:"y,omitempty"`
	J float64 `json:"j,omitempty"`
	F float64 `json:"f,omitempty"`
	L float64 `json:"l,omitempty"`
	H float64 `json:"h,omitempty"`
}

// Candidate is one destination reachable from one origin.
// Candidates come from the engine and are read-only downstream.
type Candidate struct {
	Origin      catalog.Airport
	Destination catalog.Airport
	Stopover    *catalog.Airport

	DirectDistanceKM float64
	FullDistanceKM   float64
	FlightTimeH      float64

	Demand Demand
	Config Config
	Ticket Ticket

	Contribution   float64
	TripsPerDayAC  int
	NumAircraft    int
	ProfitPerTrip  float64
	IncomePerTrip  float64
	FuelPerTrip    float64
	CO2PerTrip     float64
	RepairCostTrip float64
}

// ProfitPerDayPerAC is the daily profit one aircraft makes on the route.
func (c Candidate) ProfitPerDayPerAC() float64 {
	return c.ProfitPerTrip * float64(c.TripsPerDayAC)
}

// Aircraft returns the number of aircraft the route needs, at least one.
func (c Candidate) Aircraft() int {
	if c.NumAircraft < 1 {
		return 1
	}
	return c.NumAircraft
}

// ResultSet is the engine-ordered list of candidates.
// Its order is fixed at creation and never re-sorted.
type ResultSet struct {
	candidates []Candidate
	sortBy     SortBy
}

// NewResultSet wraps engine output without reordering it.
func NewResultSet(candidates []Candidate, sortBy SortBy) ResultSet {
	return ResultSet{
		candidates: append([]Candidate(nil), candidates...),
		sortBy:     sortBy,
	}
}

// Len returns the number of candidates.
func (rs ResultSet) Len() int {
	return len(rs.candidates)
}

// At returns the i-th candidate.
func (rs ResultSet) At(i int) Candidate {
	return rs.candidates[i]
}

// Slice returns candidates [from, to), clamped to the set bounds.
func (rs ResultSet) Slice(from, to int) []Candidate {
	if from < 0 {
		from = 0
	}
	if to > len(rs.candidates) {
		to = len(rs.candidates)
	}
	if from >= to {
		return nil
	}
	return append([]Candidate(nil), rs.candidates[from:to]...)
}

// Candidates returns a copy of all candidates.
func (rs ResultSet) Candidates() []Candidate {
	return append([]Candidate(nil), rs.candidates...)
}

// SortBy returns the ranking key the set was produced with.
func (rs ResultSet) SortBy() SortBy {
	return rs.sortBy
}
