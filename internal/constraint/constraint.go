// Package constraint parses the free-form tokens of a route search request:
// distance/flight-time ranges, trips-per-day tokens, configuration algorithm
// tokens and origin lists.
package constraint

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/routedesk/routedesk/internal/validation"
)

// Sentinel errors for token parsing.
var (
	// ErrConstraintSyntax indicates a bound that is neither a distance nor a duration.
	ErrConstraintSyntax = errors.New("invalid constraint")
	// ErrTripsPerDaySyntax indicates a malformed trips-per-day token.
	ErrTripsPerDaySyntax = errors.New("invalid trips per day")
	// ErrAlgorithmSyntax indicates an unknown configuration algorithm token.
	ErrAlgorithmSyntax = errors.New("invalid configuration algorithm")
	// ErrTooManyOrigins indicates the origin list exceeds MaxOrigins.
	ErrTooManyOrigins = errors.New("too many origins")
	// ErrNoOrigins indicates the origin list is empty.
	ErrNoOrigins = errors.New("no origins given")
)

const (
	// MaxDistanceKM is the sanity ceiling for distance bounds.
	MaxDistanceKM = 50000.0

	// MaxFlightTime is the exclusive ceiling for duration bounds.
	MaxFlightTime = 72 * time.Hour

	distanceTag = "gt=0,lte=50000"
	separator   = ".."
)

// SyntaxError describes why a constraint string could not be parsed.
type SyntaxError struct {
	Input  string
	Bound  string
	Reason string
}

func (e *SyntaxError) Error() string {
	if e.Bound == "" {
		return fmt.Sprintf("constraint %q: %s", e.Input, e.Reason)
	}
	return fmt.Sprintf("constraint %q: bound %q: %s", e.Input, e.Bound, e.Reason)
}

func (e *SyntaxError) Unwrap() error {
	return ErrConstraintSyntax
}

// Range is a lower/upper bound on route distance or flight time.
// Each position holds either a distance or a flight time, never both.
type Range struct {
	MinDistanceKM  *float64
	MaxDistanceKM  *float64
	MinFlightTimeH *float64
	MaxFlightTimeH *float64
}

// IsZero reports whether no bound is set.
func (r Range) IsZero() bool {
	return r.MinDistanceKM == nil && r.MaxDistanceKM == nil &&
		r.MinFlightTimeH == nil && r.MaxFlightTimeH == nil
}

// HasUpperBound reports whether a maximum distance or flight time is set.
func (r Range) HasUpperBound() bool {
	return r.MaxDistanceKM != nil || r.MaxFlightTimeH != nil
}

// Equal compares two ranges by value.
func (r Range) Equal(o Range) bool {
	return eqPtr(r.MinDistanceKM, o.MinDistanceKM) &&
		eqPtr(r.MaxDistanceKM, o.MaxDistanceKM) &&
		eqPtr(r.MinFlightTimeH, o.MinFlightTimeH) &&
		eqPtr(r.MaxFlightTimeH, o.MaxFlightTimeH)
}

// String renders the canonical form, which Parse accepts back.
func (r Range) String() string {
	if r.IsZero() {
		return "none"
	}

	left := formatBound(r.MinDistanceKM, r.MinFlightTimeH)
	right := formatBound(r.MaxDistanceKM, r.MaxFlightTimeH)
	if left == "" {
		return separator + right
	}
	return left + separator + right
}

func formatBound(distance, hours *float64) string {
	switch {
	case distance != nil:
		return strconv.FormatFloat(*distance, 'f', -1, 64)
	case hours != nil:
		return FormatHours(*hours)
	default:
		return ""
	}
}

// FormatHours renders a flight time as HH:MM, HH:MM:SS, or an ISO-8601
// duration when it has sub-second precision.
func FormatHours(h float64) string {
	secs := h * 3600
	whole := math.Round(secs)
	if math.Abs(secs-whole) > 1e-6 {
		return "pt" + strconv.FormatFloat(secs, 'f', -1, 64) + "s"
	}

	total := int64(whole)
	hh, mm, ss := total/3600, (total%3600)/60, total%60
	if ss == 0 {
		return fmt.Sprintf("%02d:%02d", hh, mm)
	}
	return fmt.Sprintf("%02d:%02d:%02d", hh, mm, ss)
}

// Parse turns a permissive range expression into a Range.
//
// Accepted forms: "none", "..", "<upper>", "<lower>..", "..<upper>" and
// "<lower>..<upper>", where each bound is a distance in kilometers or a
// flight time (HH:MM, HH:MM:SS, "Nd HH:MM", ISO-8601 "P1DT2H" or a Go
// duration such as "12h30m").
func Parse(text string) (Range, error) {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" || s == "none" {
		return Range{}, nil
	}

	left, right := "", s
	if l, r, ok := strings.Cut(s, separator); ok {
		left, right = strings.TrimSpace(l), strings.TrimSpace(r)
	}
	if left == "" && right == "" {
		return Range{}, nil
	}

	var out Range
	if left != "" {
		dist, hours, err := parseBound(left)
		if err != nil {
			return Range{}, &SyntaxError{Input: text, Bound: left, Reason: err.Error()}
		}
		out.MinDistanceKM, out.MinFlightTimeH = dist, hours
	}
	if right != "" {
		dist, hours, err := parseBound(right)
		if err != nil {
			return Range{}, &SyntaxError{Input: text, Bound: right, Reason: err.Error()}
		}
		out.MaxDistanceKM, out.MaxFlightTimeH = dist, hours
	}

	if out.MinDistanceKM != nil && out.MaxDistanceKM != nil && *out.MinDistanceKM > *out.MaxDistanceKM {
		return Range{}, &SyntaxError{Input: text, Reason: "minimum distance exceeds maximum distance"}
	}
	if out.MinFlightTimeH != nil && out.MaxFlightTimeH != nil && *out.MinFlightTimeH > *out.MaxFlightTimeH {
		return Range{}, &SyntaxError{Input: text, Reason: "minimum flight time exceeds maximum flight time"}
	}

	return out, nil
}

// parseBound tries the distance interpretation first, then the duration one.
func parseBound(s string) (distance, hours *float64, err error) {
	if v, perr := strconv.ParseFloat(s, 64); perr == nil {
		if verr := validation.Var("distance", v, distanceTag); verr != nil {
			return nil, nil, verr
		}
		return &v, nil, nil
	}

	d, ok := parseDuration(s)
	if !ok {
		return nil, nil, errors.New("not a distance or a duration")
	}
	if d <= 0 || d >= MaxFlightTime {
		return nil, nil, fmt.Errorf("flight time must be between 0h and %s", FormatHours(MaxFlightTime.Hours()))
	}

	h := d.Hours()
	return nil, &h, nil
}

var (
	clockPattern = regexp.MustCompile(`^(?:(\d+)\s*d(?:ays?)?\s*,?\s*)?(\d{1,2}):(\d{2})(?::(\d{2}(?:\.\d+)?))?$`)
	isoPattern   = regexp.MustCompile(`^p(?:(\d+(?:\.\d+)?)d)?(?:t(?:(\d+(?:\.\d+)?)h)?(?:(\d+(?:\.\d+)?)m)?(?:(\d+(?:\.\d+)?)s)?)?$`)
)

func parseDuration(s string) (time.Duration, bool) {
	if m := clockPattern.FindStringSubmatch(s); m != nil {
		minutes, _ := strconv.Atoi(m[3])
		if minutes >= 60 {
			return 0, false
		}
		secs := 0.0
		if m[4] != "" {
			secs, _ = strconv.ParseFloat(m[4], 64)
			if secs >= 60 {
				return 0, false
			}
		}
		return fromSeconds(component(m[1])*86400 + component(m[2])*3600 + float64(minutes)*60 + secs), true
	}

	if m := isoPattern.FindStringSubmatch(s); m != nil {
		if m[1] == "" && m[2] == "" && m[3] == "" && m[4] == "" {
			return 0, false
		}
		return fromSeconds(component(m[1])*86400 + component(m[2])*3600 + component(m[3])*60 + component(m[4])), true
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, true
	}
	return 0, false
}

func component(s string) float64 {
	if s == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func fromSeconds(secs float64) time.Duration {
	return time.Duration(math.Round(secs * float64(time.Second)))
}

func eqPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
