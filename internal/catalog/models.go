// Package catalog provides airport and aircraft reference data lookups.
package catalog

import (
	"errors"

	"github.com/skypies/geo"
)

// Sentinel errors for catalog lookups.
var (
	// ErrAirportNotFound indicates no airport matched the query.
	ErrAirportNotFound = errors.New("airport not found")
	// ErrAircraftNotFound indicates no aircraft matched the query.
	ErrAircraftNotFound = errors.New("aircraft not found")
)

// GameMode is the ruleset a search is evaluated under.
type GameMode string

const (
	// ModeEasy runs aircraft at increased cruise speed with relaxed runway checks.
	ModeEasy GameMode = "EASY"
	// ModeRealism enforces runway lengths and real cruise speeds.
	ModeRealism GameMode = "REALISM"
)

// AircraftType distinguishes what an aircraft carries.
type AircraftType string

const (
	// AircraftPax carries passengers in Y/J/F classes.
	AircraftPax AircraftType = "PAX"
	// AircraftCargo carries light and heavy freight.
	AircraftCargo AircraftType = "CARGO"
	// AircraftVIP carries passengers with VIP pricing.
	AircraftVIP AircraftType = "VIP"
)

// Airport is a searchable origin or destination.
type Airport struct {
	ID       int64
	IATA     string
	ICAO     string
	Name     string
	Country  string
	Location geo.Latlong
	RunwayM  int
	// HubCost is the one-off cost of opening a hub at this airport.
	HubCost float64
}

// Code returns the IATA code, falling back to ICAO.
func (a Airport) Code() string {
	if a.IATA != "" {
		return a.IATA
	}
	return a.ICAO
}

// DistanceKM is the great-circle distance to another airport.
func (a Airport) DistanceKM(to Airport) float64 {
	return a.Location.DistKM(to.Location)
}

// Aircraft is an aircraft model available for route searches.
type Aircraft struct {
	ID           int64
	ShortName    string
	Name         string
	Manufacturer string
	Type         AircraftType
	SpeedKMH     float64
	RangeKM      float64
	Capacity     int
	RunwayM      int
}

// IsCargo reports whether the aircraft carries freight.
func (a Aircraft) IsCargo() bool {
	return a.Type == AircraftCargo
}
