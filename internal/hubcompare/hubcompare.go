// Package hubcompare ranks origin hubs by the daily profit of the fleet
// each one can sustain.
package hubcompare

import (
	"sort"
)

// Sample is the fleet-sized profit list of one hub: each route's daily
// profit per aircraft, repeated once per aircraft the route needs.
type Sample struct {
	HubID                  string
	PerAircraftDailyProfit []float64
	HubCost                float64
}

// Metric names a ranked column.
type Metric string

const (
	MetricTop10   Metric = "top10"
	MetricTop30   Metric = "top30"
	MetricTop100  Metric = "top100"
	MetricHubCost Metric = "hub_cost"
)

// Metrics lists the columns in display order.
var Metrics = []Metric{MetricTop10, MetricTop30, MetricTop100, MetricHubCost}

// neutralIntensity is used when a column has no spread to normalize.
const neutralIntensity = 0.5

// Row is one ranked hub.
type Row struct {
	HubID   string
	HubCost float64
	// Profits is sorted in descending order.
	Profits []float64
	Top10   float64
	Top30   float64
	Top100  float64
	// Intensity maps each metric to a favourability in [0, 1].
	Intensity map[Metric]float64
}

// Fleet is the number of aircraft the hub's routes need.
func (r Row) Fleet() int {
	return len(r.Profits)
}

// Value returns the raw value of a metric.
func (r Row) Value(m Metric) float64 {
	switch m {
	case MetricTop10:
		return r.Top10
	case MetricTop30:
		return r.Top30
	case MetricTop100:
		return r.Top100
	case MetricHubCost:
		return r.HubCost
	default:
		return 0
	}
}

// Report is the ranked comparison, best hub first.
type Report struct {
	Rows []Row
}

// Rank sorts each hub's fleet, computes top-k sums and orders hubs by top30.
// Hubs without any aircraft are left out.
func Rank(samples []Sample) Report {
	rows := make([]Row, 0, len(samples))
	for _, s := range samples {
		if len(s.PerAircraftDailyProfit) == 0 {
			continue
		}

		profits := append([]float64(nil), s.PerAircraftDailyProfit...)
		sort.Sort(sort.Reverse(sort.Float64Slice(profits)))

		rows = append(rows, Row{
			HubID:   s.HubID,
			HubCost: s.HubCost,
			Profits: profits,
			Top10:   TopSum(profits, 10),
			Top30:   TopSum(profits, 30),
			Top100:  TopSum(profits, 100),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Top30 > rows[j].Top30
	})

	for i := range rows {
		rows[i].Intensity = make(map[Metric]float64, len(Metrics))
	}
	for _, m := range Metrics {
		values := make([]float64, len(rows))
		for i, r := range rows {
			values[i] = r.Value(m)
			if m == MetricHubCost {
				values[i] = -values[i]
			}
		}
		for i, v := range normalize(values) {
			rows[i].Intensity[m] = v
		}
	}

	return Report{Rows: rows}
}

// TopSum sums the first k values, or all of them when there are fewer.
func TopSum(values []float64, k int) float64 {
	if k > len(values) {
		k = len(values)
	}
	var sum float64
	for _, v := range values[:k] {
		sum += v
	}
	return sum
}

// Cumulative returns the running total of values.
func Cumulative(values []float64) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		out[i] = sum
	}
	return out
}

// AverageTopK returns, for each k in 1..len(values), the mean of the first k values.
func AverageTopK(values []float64) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		out[i] = sum / float64(i+1)
	}
	return out
}

func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	span := hi - lo
	for i, v := range values {
		if span == 0 {
			out[i] = neutralIntensity
			continue
		}
		out[i] = (v - lo) / span
	}
	return out
}
