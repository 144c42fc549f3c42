package catalog

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/skypies/geo"
)

// InMemoryRepository is an in-memory implementation of Repository.
// It backs tests and local runs seeded from a JSON file.
type InMemoryRepository struct {
	mu       sync.RWMutex
	airports []Airport
	aircraft []Aircraft
}

// NewInMemoryRepository creates a repository over the given reference data.
func NewInMemoryRepository(airports []Airport, aircraft []Aircraft) *InMemoryRepository {
	return &InMemoryRepository{
		airports: append([]Airport(nil), airports...),
		aircraft: append([]Aircraft(nil), aircraft...),
	}
}

type seedFile struct {
	Airports []struct {
		ID      int64   `json:"id"`
		IATA    string  `json:"iata"`
		ICAO    string  `json:"icao"`
		Name    string  `json:"name"`
		Country string  `json:"country"`
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
		RunwayM int     `json:"runway_m"`
		HubCost float64 `json:"hub_cost"`
	} `json:"airports"`
	Aircraft []struct {
		ID           int64   `json:"id"`
		ShortName    string  `json:"shortname"`
		Name         string  `json:"name"`
		Manufacturer string  `json:"manufacturer"`
		Type         string  `json:"type"`
		SpeedKMH     float64 `json:"speed"`
		RangeKM      float64 `json:"range"`
		Capacity     int     `json:"capacity"`
		RunwayM      int     `json:"runway_m"`
	} `json:"aircraft"`
}

// LoadSeedFile builds an InMemoryRepository from a JSON seed file.
func LoadSeedFile(path string) (*InMemoryRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	airports := make([]Airport, 0, len(seed.Airports))
	for _, a := range seed.Airports {
		airports = append(airports, Airport{
			ID:       a.ID,
			IATA:     strings.ToUpper(a.IATA),
			ICAO:     strings.ToUpper(a.ICAO),
			Name:     a.Name,
			Country:  a.Country,
			Location: geo.Latlong{Lat: a.Lat, Long: a.Lng},
			RunwayM:  a.RunwayM,
			HubCost:  a.HubCost,
		})
	}

	aircraft := make([]Aircraft, 0, len(seed.Aircraft))
	for _, a := range seed.Aircraft {
		aircraft = append(aircraft, Aircraft{
			ID:           a.ID,
			ShortName:    strings.ToLower(a.ShortName),
			Name:         a.Name,
			Manufacturer: a.Manufacturer,
			Type:         AircraftType(strings.ToUpper(a.Type)),
			SpeedKMH:     a.SpeedKMH,
			RangeKM:      a.RangeKM,
			Capacity:     a.Capacity,
			RunwayM:      a.RunwayM,
		})
	}

	return NewInMemoryRepository(airports, aircraft), nil
}

// SearchAirport matches by id, IATA, ICAO, then case-insensitive name.
func (r *InMemoryRepository) SearchAirport(_ context.Context, query string) (Airport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.TrimSpace(query)
	if q == "" {
		return Airport{}, ErrAirportNotFound
	}

	if id, err := strconv.ParseInt(q, 10, 64); err == nil {
		for _, a := range r.airports {
			if a.ID == id {
				return a, nil
			}
		}
	}

	upper := strings.ToUpper(q)
	for _, a := range r.airports {
		if a.IATA == upper || a.ICAO == upper {
			return a, nil
		}
	}
	for _, a := range r.airports {
		if strings.EqualFold(a.Name, q) {
			return a, nil
		}
	}

	return Airport{}, fmt.Errorf("%w: %q", ErrAirportNotFound, query)
}

// SearchAircraft matches by id, short name, then case-insensitive full name.
func (r *InMemoryRepository) SearchAircraft(_ context.Context, query string) (Aircraft, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.TrimSpace(query)
	if q == "" {
		return Aircraft{}, ErrAircraftNotFound
	}

	if id, err := strconv.ParseInt(q, 10, 64); err == nil {
		for _, a := range r.aircraft {
			if a.ID == id {
				return a, nil
			}
		}
	}

	for _, a := range r.aircraft {
		if strings.EqualFold(a.ShortName, q) {
			return a, nil
		}
	}
	for _, a := range r.aircraft {
		if strings.EqualFold(a.Name, q) {
			return a, nil
		}
	}

	return Aircraft{}, fmt.Errorf("%w: %q", ErrAircraftNotFound, query)
}
