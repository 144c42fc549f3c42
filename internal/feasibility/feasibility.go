// Package feasibility checks whether a requested trips-per-day schedule fits
// into a 24 hour day given the constraint's upper bound.
package feasibility

import (
	"fmt"
	"math"

	"github.com/routedesk/routedesk/internal/catalog"
	"github.com/routedesk/routedesk/internal/constraint"
)

const (
	hoursPerDay = 24.0

	// efficientUtilisation is the fraction of a day below which a schedule is flagged.
	efficientUtilisation = 0.9

	// easySpeedFactor adjusts the aircraft speed in EASY mode.
	easySpeedFactor = 1.5
)

// Kind classifies an advisory.
type Kind string

const (
	// KindImpossible flags schedules needing more than 24 hours per day.
	KindImpossible Kind = "IMPOSSIBLE"
	// KindInefficient flags schedules that leave aircraft idle for most of a day.
	KindInefficient Kind = "INEFFICIENT"
	// KindUnscheduled flags a constraint given without an explicit trips-per-day.
	KindUnscheduled Kind = "UNSCHEDULED"
	// KindRunway flags origins whose runway is too short for the aircraft.
	KindRunway Kind = "RUNWAY"
)

// Advisory is an informational message attached to a search response.
// Advisories never change the search parameters.
type Advisory struct {
	Kind        Kind
	Title       string
	Description string
	// Equivalent describes the upper bound as both flight time and distance.
	Equivalent string

	SuggestedTripsPerDay *int
	SuggestedFlightTimeH *float64
	SuggestedDistanceKM  *float64
}

// Input holds everything the analysis depends on.
type Input struct {
	AircraftSpeedKMH float64
	GameMode         catalog.GameMode
	TripsPerDay      int
	MaxDistanceKM    *float64
	MaxFlightTimeH   *float64
	TPDExplicit      bool
	// ConstraintSet reports whether any bound was supplied, lower bounds included.
	ConstraintSet bool
}

// Analyze returns zero or more advisories about the requested schedule.
// The schedule checks need an upper bound; the unscheduled note only needs
// some constraint and an automatic trips-per-day.
func Analyze(in Input) []Advisory {
	speed := in.AircraftSpeedKMH
	if in.GameMode == catalog.ModeEasy {
		speed /= easySpeedFactor
	}

	eqTime, ok := equivalentTime(in, speed)
	if !ok {
		if !in.TPDExplicit && in.ConstraintSet {
			return []Advisory{unscheduled(0, "")}
		}
		return nil
	}

	tpd := in.TripsPerDay
	if tpd < 1 {
		tpd = 1
	}

	total := eqTime * float64(tpd)
	suggestedTPD := int(math.Floor(hoursPerDay / eqTime))
	suggestedTime := hoursPerDay / float64(tpd)
	suggestedDistance := speed * suggestedTime
	equivalent := describeEquivalent(eqTime, speed)

	var out []Advisory

	if in.TPDExplicit && total > hoursPerDay {
		out = append(out, Advisory{
			Kind:  KindImpossible,
			Title: "Impossible schedule",
			Description: fmt.Sprintf(
				"%d trips per day of up to %s each need %s of flying, more than 24 hours.",
				tpd, constraint.FormatHours(eqTime), constraint.FormatHours(total)),
			Equivalent:           equivalent,
			SuggestedTripsPerDay: positive(suggestedTPD),
			SuggestedFlightTimeH: &suggestedTime,
			SuggestedDistanceKM:  distanceIfKnown(speed, suggestedDistance),
		})
	}

	if in.TPDExplicit && total < hoursPerDay*efficientUtilisation {
		adv := Advisory{
			Kind:  KindInefficient,
			Title: "Inefficient schedule",
			Description: fmt.Sprintf(
				"%d trips per day of up to %s each only use %s of the day.",
				tpd, constraint.FormatHours(eqTime), constraint.FormatHours(total)),
			Equivalent:           equivalent,
			SuggestedFlightTimeH: &suggestedTime,
			SuggestedDistanceKM:  distanceIfKnown(speed, suggestedDistance),
		}
		if suggestedTPD != tpd {
			adv.SuggestedTripsPerDay = positive(suggestedTPD)
		}
		out = append(out, adv)
	}

	if !in.TPDExplicit && in.ConstraintSet {
		out = append(out, unscheduled(suggestedTPD, equivalent))
	}

	return out
}

// equivalentTime derives the flight time of the upper bound, preferring a
// given flight time over a distance.
func equivalentTime(in Input, speed float64) (float64, bool) {
	var eqTime float64
	switch {
	case in.MaxFlightTimeH != nil:
		eqTime = *in.MaxFlightTimeH
	case in.MaxDistanceKM != nil && speed > 0:
		eqTime = *in.MaxDistanceKM / speed
	default:
		return 0, false
	}
	return eqTime, eqTime > 0
}

// unscheduled leaves the suggestion and equivalent empty when suggestedTPD
// is zero and equivalent is blank.
func unscheduled(suggestedTPD int, equivalent string) Advisory {
	return Advisory{
		Kind:  KindUnscheduled,
		Title: "Trips per day not set",
		Description: "Automatic trips per day favours short, high-frequency routes. " +
			"Set trips per day explicitly to fill the schedule for this constraint.",
		Equivalent:           equivalent,
		SuggestedTripsPerDay: positive(suggestedTPD),
	}
}

func describeEquivalent(eqTime, speed float64) string {
	if speed <= 0 {
		return fmt.Sprintf("max flight time %s", constraint.FormatHours(eqTime))
	}
	return fmt.Sprintf("max flight time %s (about %.0f km)", constraint.FormatHours(eqTime), eqTime*speed)
}

func positive(n int) *int {
	if n < 1 {
		return nil
	}
	return &n
}

func distanceIfKnown(speed, distance float64) *float64 {
	if speed <= 0 {
		return nil
	}
	return &distance
}

// RunwayAdvisories warns in REALISM mode about origins whose runway is
// shorter than the aircraft requires.
func RunwayAdvisories(aircraft catalog.Aircraft, origins []catalog.Airport, mode catalog.GameMode) []Advisory {
	if mode != catalog.ModeRealism || aircraft.RunwayM <= 0 {
		return nil
	}

	var out []Advisory
	for _, o := range origins {
		if o.RunwayM >= aircraft.RunwayM {
			continue
		}
		out = append(out, Advisory{
			Kind:  KindRunway,
			Title: "Runway too short",
			Description: fmt.Sprintf(
				"%s has a %d m runway but the %s needs %d m in realism mode.",
				o.Code(), o.RunwayM, aircraft.Name, aircraft.RunwayM),
		})
	}
	return out
}
