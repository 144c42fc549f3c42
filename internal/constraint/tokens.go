package constraint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/routedesk/routedesk/internal/validation"
)

// MaxOrigins caps the number of origins in a single search.
const MaxOrigins = 24

// TripsPerDayMode controls how the engine treats the trips-per-day value.
type TripsPerDayMode string

const (
	// TripsPerDayAuto lets the engine pick the schedule.
	TripsPerDayAuto TripsPerDayMode = "AUTO"
	// TripsPerDayStrict fixes the value and forbids splitting demand across aircraft.
	TripsPerDayStrict TripsPerDayMode = "STRICT"
	// TripsPerDayStrictAllowMultipleAC fixes the value but lets the engine assign several aircraft.
	TripsPerDayStrictAllowMultipleAC TripsPerDayMode = "STRICT_ALLOW_MULTIPLE_AC"
)

// TripsPerDay is a parsed trips-per-day-per-aircraft token.
type TripsPerDay struct {
	Value    int
	Mode     TripsPerDayMode
	Explicit bool
}

// DefaultTripsPerDay is used when the token is absent or "auto".
func DefaultTripsPerDay() TripsPerDay {
	return TripsPerDay{Value: 1, Mode: TripsPerDayAuto}
}

// String renders the token form ("auto", "3" or "3!").
func (t TripsPerDay) String() string {
	switch t.Mode {
	case TripsPerDayStrict:
		return strconv.Itoa(t.Value) + "!"
	case TripsPerDayStrictAllowMultipleAC:
		return strconv.Itoa(t.Value)
	default:
		return "auto"
	}
}

// ParseTripsPerDay parses "auto", "N" or "N!".
func ParseTripsPerDay(token string) (TripsPerDay, error) {
	s := strings.ToLower(strings.TrimSpace(token))
	if s == "" || s == "auto" {
		return DefaultTripsPerDay(), nil
	}

	mode := TripsPerDayStrictAllowMultipleAC
	if strings.HasSuffix(s, "!") {
		mode = TripsPerDayStrict
		s = strings.TrimSuffix(s, "!")
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return TripsPerDay{}, fmt.Errorf("%w: %q is not auto, a number or a number followed by !", ErrTripsPerDaySyntax, token)
	}
	if err := validation.Var("trips per day", n, "gte=1,lte=100"); err != nil {
		return TripsPerDay{}, fmt.Errorf("%w: %s", ErrTripsPerDaySyntax, err)
	}

	return TripsPerDay{Value: n, Mode: mode, Explicit: true}, nil
}

// ConfigAlgorithm selects how the engine distributes seats or cargo space.
type ConfigAlgorithm string

// AlgorithmAuto lets the engine choose.
const AlgorithmAuto ConfigAlgorithm = "AUTO"

var (
	paxAlgorithms   = []ConfigAlgorithm{AlgorithmAuto, "FJY", "FYJ", "JFY", "JYF", "YJF", "YFJ"}
	cargoAlgorithms = []ConfigAlgorithm{AlgorithmAuto, "L", "H"}
)

// ParseConfigAlgorithm validates an algorithm token against the aircraft kind.
// An empty token means AUTO.
func ParseConfigAlgorithm(token string, cargo bool) (ConfigAlgorithm, error) {
	s := ConfigAlgorithm(strings.ToUpper(strings.TrimSpace(token)))
	if s == "" {
		return AlgorithmAuto, nil
	}

	allowed := paxAlgorithms
	kind := "passenger"
	if cargo {
		allowed = cargoAlgorithms
		kind = "cargo"
	}
	for _, a := range allowed {
		if a == s {
			return a, nil
		}
	}

	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return "", fmt.Errorf("%w: %q is not valid for %s aircraft (expected one of %s)",
		ErrAlgorithmSyntax, token, kind, strings.Join(names, ", "))
}

// TooManyOriginsError is returned when more than MaxOrigins origins are given.
type TooManyOriginsError struct {
	Count int
}

func (e *TooManyOriginsError) Error() string {
	return fmt.Sprintf("%d origins given, at most %d are allowed", e.Count, MaxOrigins)
}

func (e *TooManyOriginsError) Unwrap() error {
	return ErrTooManyOrigins
}

// SplitOrigins splits a comma-separated origin list, dropping blank entries.
func SplitOrigins(text string) ([]string, error) {
	parts := strings.Split(text, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}

	if len(origins) == 0 {
		return nil, ErrNoOrigins
	}
	if len(origins) > MaxOrigins {
		return nil, &TooManyOriginsError{Count: len(origins)}
	}
	return origins, nil
}
