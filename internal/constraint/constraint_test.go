package constraint

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func assertBound(t *testing.T, want, got *float64, name string) {
	t.Helper()
	if want == nil {
		assert.Nil(t, got, name)
		return
	}
	require.NotNil(t, got, name)
	assert.InDelta(t, *want, *got, 1e-9, name)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Range
	}{
		{"none", "none", Range{}},
		{"empty", "   ", Range{}},
		{"upper distance only", "16000", Range{MaxDistanceKM: f(16000)}},
		{"distance range", "8000..16000", Range{MinDistanceKM: f(8000), MaxDistanceKM: f(16000)}},
		{"flight time range", "08:00..12:00", Range{MinFlightTimeH: f(8), MaxFlightTimeH: f(12)}},
		{"open upper flight time", "12:00..", Range{MinFlightTimeH: f(12)}},
		{"open lower distance", "..5000", Range{MaxDistanceKM: f(5000)}},
		{"uppercase and padding", "  NONE ", Range{}},
		{"only separator", "..", Range{}},
		{"separator with padding", " .. ", Range{}},
		{"seconds", "01:30:36", Range{MaxFlightTimeH: f(1.51)}},
		{"day prefix", "1d, 02:00", Range{MaxFlightTimeH: f(26)}},
		{"day prefix without comma", "2 days 00:30", Range{MaxFlightTimeH: f(48.5)}},
		{"iso duration", "PT4H30M", Range{MaxFlightTimeH: f(4.5)}},
		{"iso duration with days", "p1dt6h", Range{MaxFlightTimeH: f(30)}},
		{"go duration", "..12h30m", Range{MaxFlightTimeH: f(12.5)}},
		{"mixed units", "1000..10:00", Range{MinDistanceKM: f(1000), MaxFlightTimeH: f(10)}},
		{"fractional distance", "..1234.5", Range{MaxDistanceKM: f(1234.5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assertBound(t, tt.want.MinDistanceKM, got.MinDistanceKM, "min distance")
			assertBound(t, tt.want.MaxDistanceKM, got.MaxDistanceKM, "max distance")
			assertBound(t, tt.want.MinFlightTimeH, got.MinFlightTimeH, "min flight time")
			assertBound(t, tt.want.MaxFlightTimeH, got.MaxFlightTimeH, "max flight time")
		})
	}
}

func TestParse_UpperOnlyEqualsOpenLower(t *testing.T) {
	for _, n := range []string{"1", "250", "16000", "49999.5"} {
		a, err := Parse(n)
		require.NoError(t, err)
		b, err := Parse(".." + n)
		require.NoError(t, err)
		assert.True(t, a.Equal(b), n)
		assert.Nil(t, a.MinDistanceKM)
		assert.Nil(t, a.MinFlightTimeH)
		assert.Nil(t, a.MaxFlightTimeH)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"garbage", "far"},
		{"zero distance", "0"},
		{"negative distance", "-100"},
		{"distance above ceiling", "50001"},
		{"zero duration", "00:00"},
		{"duration at ceiling", "72:00"},
		{"duration above ceiling", "3d, 01:00"},
		{"bad minutes", "10:75"},
		{"empty iso", "pt"},
		{"min above max distance", "16000..8000"},
		{"min above max time", "12:00..08:00"},
		{"bad right bound", "1000..abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConstraintSyntax))

			var serr *SyntaxError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, tt.input, serr.Input)
		})
	}
}

func TestRange_StringRoundTrip(t *testing.T) {
	inputs := []string{
		"none", "16000", "8000..16000", "08:00..12:00", "12:00..",
		"..5000", "01:30:36", "1d, 02:00", "1000..10:00", "PT0.5S",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			r, err := Parse(in)
			require.NoError(t, err)

			again, err := Parse(r.String())
			require.NoError(t, err)
			assert.True(t, r.Equal(again), "%q -> %q", in, r.String())
			assert.Equal(t, r.String(), again.String())
		})
	}
}

func TestRange_StringCanonical(t *testing.T) {
	assert.Equal(t, "none", Range{}.String())
	assert.Equal(t, "8000..16000", Range{MinDistanceKM: f(8000), MaxDistanceKM: f(16000)}.String())
	assert.Equal(t, "08:00..12:00", Range{MinFlightTimeH: f(8), MaxFlightTimeH: f(12)}.String())
	assert.Equal(t, "12:00..", Range{MinFlightTimeH: f(12)}.String())
	assert.Equal(t, "..16000", Range{MaxDistanceKM: f(16000)}.String())
}

func TestRange_Predicates(t *testing.T) {
	assert.True(t, Range{}.IsZero())
	assert.False(t, Range{}.HasUpperBound())

	r := Range{MinFlightTimeH: f(3)}
	assert.False(t, r.IsZero())
	assert.False(t, r.HasUpperBound())
	assert.True(t, Range{MaxDistanceKM: f(3)}.HasUpperBound())
}

func TestFormatHours(t *testing.T) {
	assert.Equal(t, "10:40", FormatHours(10+40.0/60))
	assert.Equal(t, "00:00:30", FormatHours(30.0/3600))
	assert.Equal(t, "48:00", FormatHours(48))
}

func TestParseTripsPerDay(t *testing.T) {
	tests := []struct {
		token string
		want  TripsPerDay
	}{
		{"", TripsPerDay{Value: 1, Mode: TripsPerDayAuto}},
		{"auto", TripsPerDay{Value: 1, Mode: TripsPerDayAuto}},
		{" AUTO ", TripsPerDay{Value: 1, Mode: TripsPerDayAuto}},
		{"3", TripsPerDay{Value: 3, Mode: TripsPerDayStrictAllowMultipleAC, Explicit: true}},
		{"3!", TripsPerDay{Value: 3, Mode: TripsPerDayStrict, Explicit: true}},
		{"100", TripsPerDay{Value: 100, Mode: TripsPerDayStrictAllowMultipleAC, Explicit: true}},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseTripsPerDay(tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTripsPerDay_Errors(t *testing.T) {
	for _, token := range []string{"0", "101", "-2", "x", "3!!", "!", "2.5"} {
		t.Run(token, func(t *testing.T) {
			_, err := ParseTripsPerDay(token)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTripsPerDaySyntax)
		})
	}
}

func TestTripsPerDay_String(t *testing.T) {
	assert.Equal(t, "auto", DefaultTripsPerDay().String())
	assert.Equal(t, "3!", TripsPerDay{Value: 3, Mode: TripsPerDayStrict}.String())
	assert.Equal(t, "4", TripsPerDay{Value: 4, Mode: TripsPerDayStrictAllowMultipleAC}.String())
}

func TestParseConfigAlgorithm(t *testing.T) {
	got, err := ParseConfigAlgorithm("", false)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmAuto, got)

	got, err = ParseConfigAlgorithm("fjy", false)
	require.NoError(t, err)
	assert.Equal(t, ConfigAlgorithm("FJY"), got)

	got, err = ParseConfigAlgorithm("l", true)
	require.NoError(t, err)
	assert.Equal(t, ConfigAlgorithm("L"), got)

	_, err = ParseConfigAlgorithm("L", false)
	assert.ErrorIs(t, err, ErrAlgorithmSyntax)

	_, err = ParseConfigAlgorithm("FJY", true)
	assert.ErrorIs(t, err, ErrAlgorithmSyntax)
}

func TestSplitOrigins(t *testing.T) {
	got, err := SplitOrigins(" HKG, lhr ,,JFK ")
	require.NoError(t, err)
	assert.Equal(t, []string{"HKG", "lhr", "JFK"}, got)

	_, err = SplitOrigins(" , ")
	assert.ErrorIs(t, err, ErrNoOrigins)
}

func TestSplitOrigins_Cap(t *testing.T) {
	origins := make([]string, MaxOrigins)
	for i := range origins {
		origins[i] = "A" + strings.Repeat("A", i%3)
	}

	got, err := SplitOrigins(strings.Join(origins, ","))
	require.NoError(t, err)
	assert.Len(t, got, MaxOrigins)

	_, err = SplitOrigins(strings.Join(append(origins, "ZZZ"), ","))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyOrigins)

	var tooMany *TooManyOriginsError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, MaxOrigins+1, tooMany.Count)
}
