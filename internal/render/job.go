// Package render turns search results and hub comparisons into PDF charts
// on a single dedicated worker.
package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skypies/geo"

	"github.com/routedesk/routedesk/internal/catalog"
	"github.com/routedesk/routedesk/internal/hubcompare"
	"github.com/routedesk/routedesk/internal/search"
)

// Sentinel errors for rendering.
var (
	// ErrRender wraps every failure raised while rendering a job.
	ErrRender = errors.New("render failed")
	// ErrClosed is returned when submitting to a closed dispatcher.
	ErrClosed = errors.New("render dispatcher closed")
	// ErrPayload indicates the job payload does not match its kind.
	ErrPayload = errors.New("payload does not match job kind")
)

// Kind identifies a chart.
type Kind string

const (
	KindRoutesMap     Kind = "ROUTES_MAP"
	KindHubComparison Kind = "HUB_COMPARISON"
)

// Job is one chart to render. Payload is a RoutesMap for KindRoutesMap and
// a HubComparison for KindHubComparison.
type Job struct {
	Kind    Kind
	Payload any
}

// RenderError reports a failed job. The dispatcher keeps running.
type RenderError struct {
	Kind Kind
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrRender, e.Kind, e.Err)
}

func (e *RenderError) Unwrap() []error {
	return []error{ErrRender, e.Err}
}

// RoutePoint is one destination plotted on the routes map.
type RoutePoint struct {
	Code string
	// OriginCode names the hub serving the route.
	OriginCode        string
	Location          geo.Latlong
	Location          geo.Latlong
	DistanceKM        float64
	ProfitPerDayPerAC float64
	TripsPerDay       int
}

// RoutesMap is the payload of a KindRoutesMap job.
type RoutesMap struct {
	Title  string
	Origin catalog.Airport
	// Hubs lists the remaining origins of a multi-origin search.
	Hubs   []catalog.Airport
	Routes []RoutePoint
	// FleetProfits holds one daily profit per required aircraft.
	FleetProfits []float64
}

// HubComparison is the payload of a KindHubComparison job.
type HubComparison struct {
	Title  string
	Report hubcompare.Report
}

// NewRoutesMapJob builds the map job for a completed search. The map is
// centred on the first origin and marks every other origin as a hub.
func NewRoutesMapJob(res *search.Result) Job {
	req := res.Request
	var (
		origin catalog.Airport
		hubs   []catalog.Airport
	)
	if len(req.Origins) > 0 {
		origin = req.Origins[0]
		hubs = append(hubs, req.Origins[1:]...)
	}

	candidates := res.Results.Candidates()
	routes := make([]RoutePoint, len(candidates))
	for i, c := range candidates {
		routes[i] = RoutePoint{
			Code:              c.Destination.Code(),
			OriginCode:        c.Origin.Code(),
			Location:          c.Destination.Location,
			DistanceKM:        c.FullDistanceKM,
			ProfitPerDayPerAC: c.ProfitPerDayPerAC(),
			TripsPerDay:       c.TripsPerDayAC,
		}
	}

	return Job{
		Kind: KindRoutesMap,
		Payload: RoutesMap{
			Title:        fmt.Sprintf("%s, %s: %d routes", originCodes(req.Origins), req.Aircraft.ShortName, len(routes)),
			Origin:       origin,
			Hubs:         hubs,
			Routes:       routes,
			FleetProfits: search.FleetProfits(res.Results),
		},
	}
}

// NewHubComparisonJob builds the hub comparison job for a ranked report.
func NewHubComparisonJob(title string, report hubcompare.Report) Job {
	return Job{
		Kind:    KindHubComparison,
		Payload: HubComparison{Title: title, Report: report},
	}
}

func originCodes(origins []catalog.Airport) string {
	codes := make([]string, len(origins))
	for i, o := range origins {
		codes[i] = o.Code()
	}
	return strings.Join(codes, ",")
}
