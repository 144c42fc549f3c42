package session

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/routedesk/routedesk/internal/catalog"
	"github.com/routedesk/routedesk/internal/search"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat accepts "csv" or "json", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// Export is a serialised copy of the full result set.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FileSuffix names the files produced for a search, e.g. "HKG-LHR_b744_2!".
func FileSuffix(req search.Request) string {
	codes := make([]string, len(req.Origins))
	for i, o := range req.Origins {
		codes[i] = o.Code()
	}
	return strings.Join([]string{
		strings.Join(codes, "-"),
		req.Aircraft.ShortName,
		req.TripsPerDay.String(),
	}, "_")
}

func buildExport(f Format, res *search.Result) (Export, error) {
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatCSV:
		data, err = exportCSV(res)
	case FormatJSON:
		data, err = exportJSON(res)
	default:
		return Export{}, fmt.Errorf("unsupported export format %q", f)
	}
	if err != nil {
		return Export{}, err
	}

	return Export{
		Filename:    fmt.Sprintf("routes_%s.%s", FileSuffix(res.Request), f),
		ContentType: f.ContentType(),
		Data:        data,
	}, nil
}

// exportCSV writes one row per candidate. Destination coordinates are
// only used for plotting and are left out.
func exportCSV(res *search.Result) ([]byte, error) {
	multi := res.Request.MultiOrigin()
	cargo := res.Request.Aircraft.IsCargo()

	classes := []string{"y", "j", "f"}
	if cargo {
		classes = []string{"l", "h"}
	}

	var header []string
	if multi {
		header = append(header, "origin")
	}
	header = append(header, "destination", "stopover", "direct_distance", "full_distance", "flight_time")
	for _, group := range []string{"demand", "config", "ticket"} {
		for _, c := range classes {
			header = append(header, group+"_"+c)
		}
	}
	header = append(header,
		"contribution", "trips_per_day_per_ac", "num_ac",
		"profit_per_trip", "profit_per_day_per_ac",
		"income_per_trip", "fuel_per_trip", "co2_per_trip", "repair_cost_per_trip",
	)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, c := range res.Results.Candidates() {
		var row []string
		if multi {
			row = append(row, c.Origin.Code())
		}
		stopover := ""
		if c.Stopover != nil {
			stopover = c.Stopover.Code()
		}
		row = append(row,
			c.Destination.Code(),
			stopover,
			formatFloat(c.DirectDistanceKM),
			formatFloat(c.FullDistanceKM),
			formatFloat(c.FlightTimeH),
		)
		if cargo {
			row = append(row,
				strconv.Itoa(c.Demand.L), strconv.Itoa(c.Demand.H),
				strconv.Itoa(c.Config.L), strconv.Itoa(c.Config.H),
				formatFloat(c.Ticket.L), formatFloat(c.Ticket.H),
			)
		} else {
			row = append(row,
				strconv.Itoa(c.Demand.Y), strconv.Itoa(c.Demand.J), strconv.Itoa(c.Demand.F),
				strconv.Itoa(c.Config.Y), strconv.Itoa(c.Config.J), strconv.Itoa(c.Config.F),
				formatFloat(c.Ticket.Y), formatFloat(c.Ticket.J), formatFloat(c.Ticket.F),
			)
		}
		row = append(row,
			formatFloat(c.Contribution),
			strconv.Itoa(c.TripsPerDayAC),
			strconv.Itoa(c.NumAircraft),
			formatFloat(c.ProfitPerTrip),
			formatFloat(c.ProfitPerDayPerAC()),
			formatFloat(c.IncomePerTrip),
			formatFloat(c.FuelPerTrip),
			formatFloat(c.CO2PerTrip),
			formatFloat(c.RepairCostTrip),
		)
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type exportAirport struct {
	ID      int64   `json:"id"`
	IATA    string  `json:"iata"`
	ICAO    string  `json:"icao"`
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type exportRoute struct {
	Origin            *exportAirport `json:"origin,omitempty"`
	Destination       exportAirport  `json:"destination"`
	Stopover          *exportAirport `json:"stopover,omitempty"`
	DirectDistance    float64        `json:"direct_distance"`
	FullDistance      float64        `json:"full_distance"`
	FlightTime        float64        `json:"flight_time"`
	Demand            search.Demand  `json:"demand"`
	Config            search.Config  `json:"config"`
	Ticket            search.Ticket  `json:"ticket"`
	Contribution      float64        `json:"contribution"`
	TripsPerDayPerAC  int            `json:"trips_per_day_per_ac"`
	NumAircraft       int            `json:"num_ac"`
	ProfitPerTrip     float64        `json:"profit_per_trip"`
	ProfitPerDayPerAC float64        `json:"profit_per_day_per_ac"`
	IncomePerTrip     float64        `json:"income_per_trip"`
	FuelPerTrip       float64        `json:"fuel_per_trip"`
	CO2PerTrip        float64        `json:"co2_per_trip"`
	RepairCostPerTrip float64        `json:"repair_cost_per_trip"`
}

func toExportAirport(a catalog.Airport) exportAirport {
	return exportAirport{
		ID:      a.ID,
		IATA:    a.IATA,
		ICAO:    a.ICAO,
		Name:    a.Name,
		Country: a.Country,
		Lat:     a.Location.Lat,
		Lng:     a.Location.Long,
	}
}

// exportJSON writes the candidates as an indented array. The origin is
// only included when the search had several.
func exportJSON(res *search.Result) ([]byte, error) {
	multi := res.Request.MultiOrigin()
	candidates := res.Results.Candidates()

	routes := make([]exportRoute, len(candidates))
	for i, c := range candidates {
		r := exportRoute{
			Destination:       toExportAirport(c.Destination),
			DirectDistance:    c.DirectDistanceKM,
			FullDistance:      c.FullDistanceKM,
			FlightTime:        c.FlightTimeH,
			Demand:            c.Demand,
			Config:            c.Config,
			Ticket:            c.Ticket,
			Contribution:      c.Contribution,
			TripsPerDayPerAC:  c.TripsPerDayAC,
			NumAircraft:       c.NumAircraft,
			ProfitPerTrip:     c.ProfitPerTrip,
			ProfitPerDayPerAC: c.ProfitPerDayPerAC(),
			IncomePerTrip:     c.IncomePerTrip,
			FuelPerTrip:       c.FuelPerTrip,
			CO2PerTrip:        c.CO2PerTrip,
			RepairCostPerTrip: c.RepairCostTrip,
		}
		if multi {
			o := toExportAirport(c.Origin)
			r.Origin = &o
		}
		if c.Stopover != nil {
			s := toExportAirport(*c.Stopover)
			r.Stopover = &s
		}
		routes[i] = r
	}

	return json.MarshalIndent(routes, "", "  ")
}
