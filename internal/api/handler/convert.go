package handler

import (
	"fmt"
	"time"

	"github.com/routedesk/routedesk/internal/api/models"
	"github.com/routedesk/routedesk/internal/catalog"
	"github.com/routedesk/routedesk/internal/feasibility"
	"github.com/routedesk/routedesk/internal/search"
	"github.com/routedesk/routedesk/internal/session"
)

// noRoutesMessage is shown instead of a table when the engine finds nothing.
const noRoutesMessage = "There are no profitable routes found. Try relaxing the constraints or reducing the trips per day."

func searchTitle(req search.Request) string {
	if req.MultiOrigin() {
		return fmt.Sprintf("Routes from %d hubs", len(req.Origins))
	}
	o := req.Origins[0]
	return fmt.Sprintf("%s (%s): %s, %s", o.IATA, o.ICAO, o.Name, o.Country)
}

func toAirportRef(a catalog.Airport) models.AirportRef {
	return models.AirportRef{
		Code:    a.Code(),
		IATA:    a.IATA,
		ICAO:    a.ICAO,
		Name:    a.Name,
		Country: a.Country,
		Lat:     a.Location.Lat,
		Lon:     a.Location.Long,
	}
}

// toRouteViews ranks candidates from offset+1. The origin is only echoed
// when the search had several.
func toRouteViews(candidates []search.Candidate, offset int, multi bool) []models.RouteView {
	views := make([]models.RouteView, len(candidates))
	for i, c := range candidates {
		v := models.RouteView{
			Rank:              offset + i + 1,
			Destination:       toAirportRef(c.Destination),
			DirectDistanceKM:  c.DirectDistanceKM,
			FullDistanceKM:    c.FullDistanceKM,
			FlightTimeH:       c.FlightTimeH,
			Demand:            models.ClassValues(c.Demand),
			Config:            models.ClassValues(c.Config),
			Ticket:            models.ClassPrices(c.Ticket),
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
			o := toAirportRef(c.Origin)
			v.Origin = &o
		}
		if c.Stopover != nil {
			s := toAirportRef(*c.Stopover)
			v.Stopover = &s
		}
		views[i] = v
	}
	return views
}

func toPageMeta(p session.Page) models.PageMeta {
	return models.PageMeta{
		From:    p.From,
		To:      p.To,
		Total:   p.Total,
		HasMore: p.HasMore,
	}
}

func toQueryEcho(req search.Request) models.QueryEcho {
	origins := make([]string, len(req.Origins))
	for i, o := range req.Origins {
		origins[i] = o.Code()
	}
	return models.QueryEcho{
		Origins:         origins,
		Aircraft:        req.Aircraft.ShortName,
		Constraint:      req.Constraint.String(),
		TripsPerDay:     req.TripsPerDay.String(),
		ConfigAlgorithm: string(req.ConfigAlgorithm),
		GameMode:        string(req.GameMode),
		SortBy:          string(req.SortBy),
	}
}

func toFooter(res *search.Result) models.Footer {
	return models.Footer{
		Count:            res.Summary.Count,
		ElapsedMS:        float64(res.Elapsed) / float64(time.Millisecond),
		SortBy:           string(res.Summary.SortBy),
		SortLabel:        res.Summary.SortBy.Label(),
		Top10DailyProfit: res.Summary.Top10,
		Top30DailyProfit: res.Summary.Top30,
	}
}

func toAdvisories(in []feasibility.Advisory) []models.Advisory {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.Advisory, len(in))
	for i, a := range in {
		out[i] = models.Advisory{
			Kind:                 string(a.Kind),
			Title:                a.Title,
			Description:          a.Description,
			Equivalent:           a.Equivalent,
			SuggestedTripsPerDay: a.SuggestedTripsPerDay,
			SuggestedFlightTimeH: a.SuggestedFlightTimeH,
			SuggestedDistanceKM:  a.SuggestedDistanceKM,
		}
	}
	return out
}

func toAffordances(a session.Affordances) models.Affordances {
	return models.Affordances(a)
}

func toExpiry(e *session.Expiry) *models.Expiry {
	if e == nil {
		return nil
	}
	return &models.Expiry{At: models.Timestamp(e.At), BackToTop: e.BackToTop}
}

func sessionLinks(id string, multi bool) models.SessionLinks {
	base := "/v1/sessions/" + id
	links := models.SessionLinks{
		Self:   base,
		More:   base + "/more",
		Export: base + "/export",
		Map:    base + "/map",
	}
	if multi {
		links.CompareHubs = base + "/compare-hubs"
	}
	return links
}

func toSessionView(s *session.Session) models.SessionView {
	snap := s.Snapshot()
	status, _ := s.Map()

	view := models.SessionView{
		SessionID:   snap.ID,
		State:       string(snap.State),
		Cursor:      snap.Cursor,
		Total:       snap.Total,
		CreatedAt:   models.Timestamp(snap.CreatedAt),
		Affordances: toAffordances(snap.Affordances),
		Expiry:      toExpiry(snap.Expiry),
		Map:         models.MapInfo{Status: string(status)},
		Links:       sessionLinks(snap.ID, s.Result().Request.MultiOrigin()),
	}
	if snap.State == session.StateActive {
		view.ExpiresAt = models.TimestampPtr(&snap.ExpiresAt)
	}
	if status == session.MapReady {
		view.Map.Filename = s.MapFilename()
	}
	return view
}
