package engineclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/skypies/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routedesk/routedesk/internal/catalog"
	"github.com/routedesk/routedesk/internal/constraint"
	"github.com/routedesk/routedesk/internal/search"
)

func testRequest() search.Request {
	maxDist := 16000.0
	return search.Request{
		Origins: []catalog.Airport{{
			ID: 3500, IATA: "HKG", ICAO: "VHHH",
			Location: geo.Latlong{Lat: 22.308, Long: 113.918},
		}},
		Aircraft:        catalog.Aircraft{ID: 1, ShortName: "b744", Type: catalog.AircraftPax, SpeedKMH: 907},
		Constraint:      constraint.Range{MaxDistanceKM: &maxDist},
		TripsPerDay:     constraint.TripsPerDay{Value: 2, Mode: constraint.TripsPerDayStrict, Explicit: true},
		ConfigAlgorithm: constraint.AlgorithmAuto,
		SortBy:          search.SortPerACPerDay,
		GameMode:        catalog.ModeRealism,
	}
}

func TestClient_Search_Success(t *testing.T) {
	respBody, err := os.ReadFile("testdata/search_response.json")
	require.NoError(t, err)

	gotCh := make(chan searchRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/routes/search", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got searchRequest
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		gotCh <- got

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(respBody)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:    server.URL + "/",
		APIKey:     "secret",
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})

	candidates, err := client.Search(context.Background(), testRequest())
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	first := candidates[0]
	assert.Equal(t, "HKG", first.Origin.IATA, "origin resolved from the request")
	assert.Equal(t, "LHR", first.Destination.IATA)
	assert.InDelta(t, 51.47, first.Destination.Location.Lat, 1e-9)
	assert.Nil(t, first.Stopover)
	assert.Equal(t, 3, first.NumAircraft)
	assert.Equal(t, 300, first.Config.Y)
	assert.InDelta(t, 812345.5*2, first.ProfitPerDayPerAC(), 1e-6)

	require.NotNil(t, candidates[1].Stopover)
	assert.Equal(t, "DRW", candidates[1].Stopover.IATA)

	got := <-gotCh
	assert.Equal(t, "PER_AC_PER_DAY", got.SortBy)
	assert.Equal(t, "STRICT", got.TripsPerDay.Mode)
	require.NotNil(t, got.Constraint.MaxDistance)
	assert.InDelta(t, 16000, *got.Constraint.MaxDistance, 1e-9)
	assert.Nil(t, got.Constraint.MinDistance)
	assert.Equal(t, "REALISM", got.GameMode)
}

func TestClient_Search_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"bad request", http.StatusBadRequest, `{"error":{"code":"BAD_AIRCRAFT","message":"unknown aircraft"}}`, search.ErrEngineRejected},
		{"unprocessable", http.StatusUnprocessableEntity, `not json`, search.ErrEngineRejected},
		{"server error", http.StatusInternalServerError, `{}`, search.ErrEngineUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{}`, search.ErrEngineUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: server.Client(), Logger: zerolog.Nop()})
			_, err := client.Search(context.Background(), testRequest())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_Search_RejectedMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_AIRCRAFT","message":"unknown aircraft"}}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: server.Client(), Logger: zerolog.Nop()})
	_, err := client.Search(context.Background(), testRequest())
	assert.Contains(t, err.Error(), "unknown aircraft")
}

func TestClient_Search_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(ClientConfig{BaseURL: url, HTTPClient: http.DefaultClient, Logger: zerolog.Nop()})
	_, err := client.Search(context.Background(), testRequest())
	assert.ErrorIs(t, err, search.ErrEngineUnavailable)
}

func TestClient_Search_UnknownOrigin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"routes":[{"origin_id":42,"destination":{"id":1}}]}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, HTTPClient: server.Client(), Logger: zerolog.Nop()})
	_, err := client.Search(context.Background(), testRequest())
	assert.ErrorIs(t, err, search.ErrEngineRejected)
}

func TestClient_Name(t *testing.T) {
	assert.Equal(t, EngineName, NewClient(ClientConfig{BaseURL: "http://localhost"}).Name())
}
