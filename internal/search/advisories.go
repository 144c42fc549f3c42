package search

import "github.com/routedesk/routedesk/internal/feasibility"

// Advisories collects the schedule and runway advisories for a request.
// They are informational only and never alter the request.
func Advisories(req Request) []feasibility.Advisory {
	out := feasibility.Analyze(feasibility.Input{
		AircraftSpeedKMH: req.Aircraft.SpeedKMH,
		GameMode:         req.GameMode,
		TripsPerDay:      req.TripsPerDay.Value,
		MaxDistanceKM:    req.Constraint.MaxDistanceKM,
		MaxFlightTimeH:   req.Constraint.MaxFlightTimeH,
		TPDExplicit:      req.TripsPerDay.Explicit,
		ConstraintSet:    !req.Constraint.IsZero(),
	})
	return append(out, feasibility.RunwayAdvisories(req.Aircraft, req.Origins, req.GameMode)...)
}
