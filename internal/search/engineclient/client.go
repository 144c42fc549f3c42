// Package engineclient implements search.Engine against a remote route
// search engine over HTTP.
package engineclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/skypies/geo"

	"github.com/routedesk/routedesk/internal/catalog"
	"github.com/routedesk/routedesk/internal/provider/resilience"
	"github.com/routedesk/routedesk/internal/search"
)

const (
	// EngineName identifies the engine in logs, metrics and the health registry.
	EngineName = "route-engine"

	// DefaultTimeout bounds one HTTP attempt.
	DefaultTimeout = 60 * time.Second

	searchPath = "/v1/routes/search"
)

// HTTPDoer executes HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the engine client.
type ClientConfig struct {
	// BaseURL is the engine base URL (required).
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// HTTPClient overrides the resilient default (optional).
	HTTPClient HTTPDoer

	// Timeout is the per-attempt timeout (optional, defaults to 60s).
	Timeout time.Duration

	// Registry receives call outcomes for ops status (optional).
	Registry *resilience.Registry

	Logger zerolog.Logger
}

// Client calls the route search engine.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new engine client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(EngineName)
		clientCfg.Timeout = timeout
		clientCfg.MaxRetries = 1
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the engine name.
func (c *Client) Name() string {
	return EngineName
}

// Search sends the request and returns the engine-ranked candidates.
func (c *Client) Search(ctx context.Context, req search.Request) ([]search.Candidate, error) {
	body, err := json.Marshal(toWire(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug().
		Int("origins", len(req.Origins)).
		Str("aircraft", req.Aircraft.ShortName).
		Str("sort_by", string(req.SortBy)).
		Msg("requesting route search from engine")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", search.ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, respBody)
	}

	var out searchResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	candidates, err := fromWire(req, out.Routes)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Int("routes", len(candidates)).Msg("received routes from engine")
	return candidates, nil
}

func handleErrorResponse(statusCode int, body []byte) error {
	msg := fmt.Sprintf("engine returned status %d", statusCode)
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		msg = er.Error.Message
	}

	switch {
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", search.ErrEngineRejected, msg)
	default:
		return fmt.Errorf("%w: %s", search.ErrEngineUnavailable, msg)
	}
}

func airportToWire(a catalog.Airport) airportJSON {
	return airportJSON{
		ID:      a.ID,
		IATA:    a.IATA,
		ICAO:    a.ICAO,
		Name:    a.Name,
		Country: a.Country,
		Lat:     a.Location.Lat,
		Lng:     a.Location.Long,
		RunwayM: a.RunwayM,
		HubCost: a.HubCost,
	}
}

func airportFromWire(a airportJSON) catalog.Airport {
	return catalog.Airport{
		ID:       a.ID,
		IATA:     a.IATA,
		ICAO:     a.ICAO,
		Name:     a.Name,
		Country:  a.Country,
		Location: geo.Latlong{Lat: a.Lat, Long: a.Lng},
		RunwayM:  a.RunwayM,
		HubCost:  a.HubCost,
	}
}

func toWire(req search.Request) searchRequest {
	origins := make([]airportJSON, len(req.Origins))
	for i, o := range req.Origins {
		origins[i] = airportToWire(o)
	}

	return searchRequest{
		Origins: origins,
		Aircraft: aircraftJSON{
			ID:        req.Aircraft.ID,
			ShortName: req.Aircraft.ShortName,
			Type:      string(req.Aircraft.Type),
			SpeedKMH:  req.Aircraft.SpeedKMH,
			RangeKM:   req.Aircraft.RangeKM,
			Capacity:  req.Aircraft.Capacity,
			RunwayM:   req.Aircraft.RunwayM,
		},
		Constraint: constraintJSON{
			MinDistance:   req.Constraint.MinDistanceKM,
			MaxDistance:   req.Constraint.MaxDistanceKM,
			MinFlightTime: req.Constraint.MinFlightTimeH,
			MaxFlightTime: req.Constraint.MaxFlightTimeH,
		},
		TripsPerDay: tripsPerDayJSON{
			Value: req.TripsPerDay.Value,
			Mode:  string(req.TripsPerDay.Mode),
		},
		ConfigAlgorithm: string(req.ConfigAlgorithm),
		SortBy:          string(req.SortBy),
		GameMode:        string(req.GameMode),
	}
}

func fromWire(req search.Request, routes []routeJSON) ([]search.Candidate, error) {
	origins := make(map[int64]catalog.Airport, len(req.Origins))
	for _, o := range req.Origins {
		origins[o.ID] = o
	}

	out := make([]search.Candidate, 0, len(routes))
	for i, r := range routes {
		origin, ok := origins[r.OriginID]
		if !ok {
			return nil, fmt.Errorf("%w: route %d has unknown origin %d", search.ErrEngineRejected, i, r.OriginID)
		}

		c := search.Candidate{
			Origin:           origin,
			Destination:      airportFromWire(r.Destination),
			DirectDistanceKM: r.DirectDistance,
			FullDistanceKM:   r.FullDistance,
			FlightTimeH:      r.FlightTime,
			Demand: search.Demand{
				Y: int(r.Demand.Y), J: int(r.Demand.J), F: int(r.Demand.F),
				L: int(r.Demand.L), H: int(r.Demand.H),
			},
			Config: search.Config{
				Y: int(r.Config.Y), J: int(r.Config.J), F: int(r.Config.F),
				L: int(r.Config.L), H: int(r.Config.H),
			},
			Ticket: search.Ticket{
				Y: r.Ticket.Y, J: r.Ticket.J, F: r.Ticket.F,
				L: r.Ticket.L, H: r.Ticket.H,
			},
			Contribution:   r.Contribution,
			TripsPerDayAC:  r.TripsPerDayPerAC,
			NumAircraft:    r.NumAircraft,
			ProfitPerTrip:  r.ProfitPerTrip,
			IncomePerTrip:  r.IncomePerTrip,
			FuelPerTrip:    r.FuelPerTrip,
			CO2PerTrip:     r.CO2PerTrip,
			RepairCostTrip: r.RepairCostPerTrip,
		}
		if r.Stopover != nil {
			s := airportFromWire(*r.Stopover)
			c.Stopover = &s
		}
		out = append(out, c)
	}
	return out, nil
}
