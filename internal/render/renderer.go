package render

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/jung-kurt/gofpdf"
	"github.com/skypies/geo"

	"github.com/routedesk/routedesk/internal/hubcompare"
)

// Renderer draws one job into a PDF. Implementations are not safe for
// concurrent use; the Dispatcher owns exactly one.
type Renderer interface {
	Render(job Job) ([]byte, error)
}

// A4 landscape, in mm.
const (
	pageW = 297.0
	pageH = 210.0
)

// HistogramBinWidth is the profit bucket size of the routes histogram.
const HistogramBinWidth = 10000.0

// maxHistogramBins widens the bins (in multiples of HistogramBinWidth) when
// the profit spread would otherwise produce unreadable bars.
const maxHistogramBins = 200

type panel struct{ x, y, w, h float64 }

var (
	mapCenterX, mapCenterY, mapRadius = 82.0, 108.0, 72.0

	scatterPanel   = panel{175, 25, 110, 68}
	histogramPanel = panel{175, 122, 110, 62}

	cumulativePanel  = panel{25, 25, 115, 70}
	perAircraftPanel = panel{170, 25, 115, 70}
	averagePanel     = panel{25, 122, 115, 68}
	legendPanel      = panel{170, 122, 115, 68}

	// Low to high daily profit.
	profitGradient = [][]int{
		{0x2C, 0x7B, 0xB6},
		{0x00, 0xA6, 0xCA},
		{0x00, 0xCC, 0xBC},
		{0x90, 0xEB, 0x9D},
		{0xFF, 0xFF, 0x8C},
		{0xF9, 0xD0, 0x57},
		{0xF2, 0x9E, 0x2E},
		{0xE7, 0x6F, 0x51},
		{0xD7, 0x19, 0x1C},
	}

	// Unfavourable to favourable.
	favourabilityGradient = [][]int{
		{0xF4, 0xA5, 0x82},
		{0xFD, 0xDB, 0xC7},
		{0xF7, 0xF7, 0xF7},
		{0xD1, 0xE5, 0xF0},
		{0x92, 0xC5, 0xDE},
	}

	// Categorical colours for hubs and trips per day.
	palette = [][]int{
		{0x1F, 0x77, 0xB4},
		{0xFF, 0x7F, 0x0E},
		{0x2C, 0xA0, 0x2C},
		{0xD6, 0x27, 0x28},
		{0x94, 0x67, 0xBD},
		{0x8C, 0x56, 0x4B},
		{0xE3, 0x77, 0xC2},
		{0x7F, 0x7F, 0x7F},
		{0xBC, 0xBD, 0x22},
		{0x17, 0xBE, 0xCF},
	}
)

// PDFRenderer renders jobs with gofpdf. The static frame of each chart is
// built once as a template and stamped onto every document.
type PDFRenderer struct {
	templates map[Kind]gofpdf.Template
}

// NewPDFRenderer prebuilds the chart templates.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{
		templates: map[Kind]gofpdf.Template{
			KindRoutesMap:     newTemplate(drawRoutesMapFrame),
			KindHubComparison: newTemplate(drawHubComparisonFrame),
		},
	}
}

func newTemplate(draw func(pdf *gofpdf.Fpdf)) gofpdf.Template {
	// "P" keeps the given size as-is; the page itself is landscape.
	return gofpdf.CreateTpl(gofpdf.PointType{}, gofpdf.SizeType{Wd: pageW, Ht: pageH}, "P", "mm", "",
		func(tpl *gofpdf.Tpl) {
			draw(&tpl.Fpdf)
		})
}

// Render draws the job and returns the PDF bytes.
func (r *PDFRenderer) Render(job Job) ([]byte, error) {
	tpl, ok := r.templates[job.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown job kind %q", job.Kind)
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.UseTemplate(tpl)

	switch p := job.Payload.(type) {
	case RoutesMap:
		if job.Kind != KindRoutesMap {
			return nil, ErrPayload
		}
		drawTitle(pdf, p.Title)
		drawRoutesMap(pdf, p)
	case HubComparison:
		if job.Kind != KindHubComparison {
			return nil, ErrPayload
		}
		drawTitle(pdf, p.Title)
		drawHubComparison(pdf, p)
	default:
		return nil, ErrPayload
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(10, 8)
	pdf.CellFormat(pageW-20, 8, title, "", 0, "L", false, 0, "")
}

func drawPanelTitle(pdf *gofpdf.Fpdf, p panel, title string) {
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(p.x, p.y-5)
	pdf.CellFormat(p.w, 4, title, "", 0, "L", false, 0, "")
}

// {{{ routes map

func drawRoutesMapFrame(pdf *gofpdf.Fpdf) {
	pdf.SetDrawColor(0xc0, 0xc0, 0xc0)
	pdf.SetLineWidth(0.1)
	for i := 1; i <= 4; i++ {
		pdf.Circle(mapCenterX, mapCenterY, mapRadius*float64(i)/4, "D")
	}
	pdf.Line(mapCenterX-mapRadius, mapCenterY, mapCenterX+mapRadius, mapCenterY)
	pdf.Line(mapCenterX, mapCenterY-mapRadius, mapCenterX, mapCenterY+mapRadius)

	drawPanelFrame(pdf, scatterPanel.x, scatterPanel.y, scatterPanel.w, scatterPanel.h, 4)
	drawPanelFrame(pdf, histogramPanel.x, histogramPanel.y, histogramPanel.w, histogramPanel.h, 4)
}

func drawRoutesMap(pdf *gofpdf.Fpdf, p RoutesMap) {
	lo, hi := profitRange(p.Routes)
	center := p.Origin.Location

	// Azimuthal equidistant projection around the first origin; the scale
	// covers every destination and every other hub.
	var maxKM float64
	for _, rt := range p.Routes {
		if d := center.DistKM(rt.Location); !math.IsNaN(d) && d > maxKM {
			maxKM = d
		}
	}
	for _, h := range p.Hubs {
		if d := center.DistKM(h.Location); !math.IsNaN(d) && d > maxKM {
			maxKM = d
		}
	}
	if maxKM <= 0 {
		maxKM = 1
	}

	pdf.SetFont("Helvetica", "", 5)
	pdf.SetTextColor(0x80, 0x80, 0x80)
	for i := 1; i <= 4; i++ {
		f := float64(i) / 4
		pdf.Text(mapCenterX+1, mapCenterY-mapRadius*f-0.5, fmt.Sprintf("%.0f km", maxKM*f))
	}

	hubXY := map[string][2]float64{p.Origin.Code(): {mapCenterX, mapCenterY}}
	for _, h := range p.Hubs {
		if x, y, ok := mapPosition(center, h.Location, maxKM); ok {
			hubXY[h.Code()] = [2]float64{x, y}
		}
	}

	// Lowest profit first so the best routes sit on top.
	order := make([]int, len(p.Routes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return p.Routes[order[a]].ProfitPerDayPerAC < p.Routes[order[b]].ProfitPerDayPerAC
	})

	for _, i := range order {
		rt := p.Routes[i]
		x, y, ok := mapPosition(center, rt.Location, maxKM)
		if !ok {
			continue
		}

		rgb := gradientRGB(profitGradient, rt.ProfitPerDayPerAC, lo, hi)
		if hub, ok := hubXY[rt.OriginCode]; ok && len(p.Hubs) > 0 {
			pdf.SetDrawColor(rgb[0], rgb[1], rgb[2])
			pdf.SetLineWidth(0.1)
			pdf.Line(hub[0], hub[1], x, y)
		}
		pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
		pdf.Circle(x, y, 1.1, "F")
		pdf.SetTextColor(0x30, 0x30, 0x30)
		pdf.Text(x+1.4, y+0.8, rt.Code)
	}

	pdf.SetFont("Helvetica", "B", 7)
	pdf.SetFillColor(0, 0, 0)
	pdf.SetTextColor(0, 0, 0)
	pdf.Circle(mapCenterX, mapCenterY, 1.4, "F")
	pdf.Text(mapCenterX+2, mapCenterY+3, p.Origin.Code())
	for _, h := range p.Hubs {
		xy, ok := hubXY[h.Code()]
		if !ok {
			continue
		}
		pdf.Rect(xy[0]-1.2, xy[1]-1.2, 2.4, 2.4, "F")
		pdf.Text(xy[0]+2, xy[1]+3, h.Code())
	}

	drawProfitKey(pdf, lo, hi)
	drawScatter(pdf, p)
	drawHistogram(pdf, p.FleetProfits)
}

// mapPosition places loc on the map panel relative to center, with maxKM at
// the outer ring.
func mapPosition(center, loc geo.Latlong, maxKM float64) (x, y float64, ok bool) {
	d := center.DistKM(loc)
	if math.IsNaN(d) || maxKM <= 0 {
		return 0, 0, false
	}
	if d == 0 {
		return mapCenterX, mapCenterY, true
	}
	b := center.BearingTowards(loc)
	if math.IsNaN(b) {
		return 0, 0, false
	}
	rad := b * math.Pi / 180
	x = mapCenterX + mapRadius*(d/maxKM)*math.Sin(rad)
	y = mapCenterY - mapRadius*(d/maxKM)*math.Cos(rad)
	return x, y, true
}

func drawProfitKey(pdf *gofpdf.Fpdf, lo, hi float64) {
	x, y := 14.0, 194.0
	w := (2*mapRadius - 8) / float64(len(profitGradient))
	step := (hi - lo) / float64(len(profitGradient))

	pdf.SetFont("Helvetica", "", 5)
	pdf.SetTextColor(0x30, 0x30, 0x30)
	for i, rgb := range profitGradient {
		pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
		pdf.Rect(x+float64(i)*w, y, w, 3, "F")
		pdf.SetXY(x+float64(i)*w, y+3.5)
		pdf.CellFormat(w, 2.5, shortMoney(lo+float64(i)*step), "", 0, "L", false, 0, "")
	}
	pdf.SetXY(x, y-4)
	pdf.CellFormat(60, 3, "$ per ac per day", "", 0, "L", false, 0, "")
}

func drawScatter(pdf *gofpdf.Fpdf, p RoutesMap) {
	drawPanelTitle(pdf, scatterPanel, "Distance vs $ per ac per day")

	var maxDist float64
	for _, rt := range p.Routes {
		maxDist = math.Max(maxDist, rt.DistanceKM)
	}
	lo, hi := profitRange(p.Routes)

	g := grid{
		pdf:     pdf,
		OffsetU: scatterPanel.x, OffsetV: scatterPanel.y,
		W: scatterPanel.w, H: scatterPanel.h,
		MinX: 0, MaxX: math.Max(maxDist, 1),
		MinY: math.Min(lo, 0), MaxY: math.Max(hi, 1),
		XTickFmt: "%.0f km", YTickFmt: "%.0f",
		Ticks: 4,
	}
	g.TickLabels()

	tpdIndex := map[int]int{}
	var tpds []int
	for _, rt := range p.Routes {
		if _, ok := tpdIndex[rt.TripsPerDay]; !ok {
			tpdIndex[rt.TripsPerDay] = 0
			tpds = append(tpds, rt.TripsPerDay)
		}
	}
	sort.Ints(tpds)
	for i, t := range tpds {
		tpdIndex[t] = i
	}

	for _, rt := range p.Routes {
		rgb := palette[tpdIndex[rt.TripsPerDay]%len(palette)]
		pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
		g.Dot(rt.DistanceKM, rt.ProfitPerDayPerAC, 0.7)
	}

	// Trips/day legend.
	pdf.SetFont("Helvetica", "", 5)
	x := scatterPanel.x
	y := scatterPanel.y + scatterPanel.h + 6
	for i, t := range tpds {
		if i >= len(palette) {
			break
		}
		rgb := palette[i]
		pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
		pdf.Rect(x, y, 2.5, 2.5, "F")
		pdf.SetTextColor(0x30, 0x30, 0x30)
		pdf.Text(x+3, y+2.2, fmt.Sprintf("%d/d", t))
		x += 11
	}
}

func drawHistogram(pdf *gofpdf.Fpdf, profits []float64) {
	drawPanelTitle(pdf, histogramPanel, "Fleet $ per ac per day")

	start, width, counts := histogram(profits, HistogramBinWidth)
	if len(counts) == 0 {
		return
	}
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}

	g := grid{
		pdf:     pdf,
		OffsetU: histogramPanel.x, OffsetV: histogramPanel.y,
		W: histogramPanel.w, H: histogramPanel.h,
		MinX: start, MaxX: start + float64(len(counts))*width,
		MinY: 0, MaxY: float64(maxCount),
		XTickFmt: "%.0f", YTickFmt: "%.0f",
		Ticks: 4,
	}
	g.TickLabels()

	rgb := palette[0]
	pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
	for i, c := range counts {
		x0 := start + float64(i)*width
		g.Bar(x0, x0+width, float64(c))
	}
}

// histogram buckets values into bins of the given width, aligned to
// multiples of it. Bins are widened when there would be too many.
func histogram(values []float64, width float64) (start, binWidth float64, counts []int) {
	if len(values) == 0 || width <= 0 {
		return 0, width, nil
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	binWidth = width
	start = math.Floor(lo/binWidth) * binWidth
	if n := int((hi-start)/binWidth) + 1; n > maxHistogramBins {
		binWidth = math.Ceil(float64(n)/maxHistogramBins) * width
		start = math.Floor(lo/binWidth) * binWidth
	}

	n := int((hi-start)/binWidth) + 1
	counts = make([]int, n)
	for _, v := range values {
		i := int((v - start) / binWidth)
		if i >= n {
			i = n - 1
		}
		counts[i]++
	}
	return start, binWidth, counts
}

func profitRange(routes []RoutePoint) (lo, hi float64) {
	for i, rt := range routes {
		if i == 0 || rt.ProfitPerDayPerAC < lo {
			lo = rt.ProfitPerDayPerAC
		}
		if i == 0 || rt.ProfitPerDayPerAC > hi {
			hi = rt.ProfitPerDayPerAC
		}
	}
	return lo, hi
}

// }}}
// {{{ hub comparison

func drawHubComparisonFrame(pdf *gofpdf.Fpdf) {
	for _, p := range []panel{cumulativePanel, perAircraftPanel, averagePanel} {
		drawPanelFrame(pdf, p.x, p.y, p.w, p.h, 4)
	}
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.3)
	pdf.Rect(legendPanel.x, legendPanel.y, legendPanel.w, legendPanel.h, "D")
}

func drawHubComparison(pdf *gofpdf.Fpdf, p HubComparison) {
	rows := p.Report.Rows

	maxFleet := 1
	var maxCum, maxProfit float64
	minProfit := 0.0
	for _, r := range rows {
		if r.Fleet() > maxFleet {
			maxFleet = r.Fleet()
		}
		for _, v := range hubcompare.Cumulative(r.Profits) {
			maxCum = math.Max(maxCum, v)
		}
		for _, v := range r.Profits {
			maxProfit = math.Max(maxProfit, v)
			minProfit = math.Min(minProfit, v)
		}
	}

	series := func(pn panel, title string, minY, maxY float64, values func(profits []float64) []float64) {
		drawPanelTitle(pdf, pn, title)
		g := grid{
			pdf:     pdf,
			OffsetU: pn.x, OffsetV: pn.y, W: pn.w, H: pn.h,
			MinX: 1, MaxX: math.Max(float64(maxFleet), 2),
			MinY: minY, MaxY: math.Max(maxY, 1),
			XTickFmt: "%.0f", YTickFmt: "%.0f",
			Ticks: 4,
		}
		g.TickLabels()

		pdf.SetLineWidth(0.35)
		for i, r := range rows {
			ys := values(r.Profits)
			xs := make([]float64, len(ys))
			for k := range xs {
				xs[k] = float64(k + 1)
			}
			rgb := palette[i%len(palette)]
			pdf.SetDrawColor(rgb[0], rgb[1], rgb[2])
			g.Polyline(xs, ys)
		}
	}

	series(cumulativePanel, "Cumulative $ per day by fleet size", 0, maxCum, hubcompare.Cumulative)
	series(perAircraftPanel, "$ per ac per day", minProfit, maxProfit, func(v []float64) []float64 { return v })
	series(averagePanel, "Average $ per ac per day of the top k", minProfit, maxProfit, hubcompare.AverageTopK)

	drawHubLegend(pdf, p)
}

func drawHubLegend(pdf *gofpdf.Fpdf, p HubComparison) {
	rows := p.Report.Rows
	pn := legendPanel

	headers := []string{"hub", "top10", "top30", "top100", "hub cost"}
	colW := (pn.w - 4) / float64(len(headers))
	rowH := 5.0
	if len(rows) > 0 {
		rowH = math.Min(rowH, (pn.h-8)/float64(len(rows)))
	}
	fontSize := math.Min(6, rowH*1.6)

	pdf.SetFont("Helvetica", "B", 6)
	pdf.SetTextColor(0, 0, 0)
	for i, h := range headers {
		pdf.SetXY(pn.x+2+float64(i)*colW, pn.y+1)
		pdf.CellFormat(colW, 4, h, "", 0, "C", false, 0, "")
	}

	pdf.SetFont("Helvetica", "", fontSize)
	for i, r := range rows {
		y := pn.y + 6 + float64(i)*rowH

		rgb := palette[i%len(palette)]
		pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
		pdf.Rect(pn.x+2, y+rowH*0.2, 2, rowH*0.6, "F")
		pdf.SetXY(pn.x+4.5, y)
		pdf.CellFormat(colW-2.5, rowH, r.HubID, "", 0, "L", false, 0, "")

		for m, metric := range hubcompare.Metrics {
			c := gradientRGB(favourabilityGradient, r.Intensity[metric], 0, 1)
			pdf.SetFillColor(c[0], c[1], c[2])
			pdf.SetXY(pn.x+2+float64(m+1)*colW, y)
			pdf.CellFormat(colW, rowH, shortMoney(r.Value(metric)), "", 0, "C", true, 0, "")
		}
	}
}

// }}}

func gradientRGB(colors [][]int, v, lo, hi float64) []int {
	if hi <= lo || math.IsNaN(v) {
		return colors[len(colors)/2]
	}
	f := (v - lo) / (hi - lo)
	i := int(f * float64(len(colors)))
	if i < 0 {
		i = 0
	}
	if i >= len(colors) {
		i = len(colors) - 1
	}
	return colors[i]
}

// shortMoney renders 1234567 as "$1.23M".
func shortMoney(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%s$%.2fB", sign, v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%s$%.2fM", sign, v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%s$%.1fk", sign, v/1e3)
	default:
		return fmt.Sprintf("%s$%.0f", sign, v)
	}
}
