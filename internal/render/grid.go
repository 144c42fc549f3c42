package render

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// grid maps chart values onto a rectangle of the page.
type grid struct {
	pdf *gofpdf.Fpdf

	// Top-left corner and size of the plot area, in mm.
	OffsetU, OffsetV float64
	W, H             float64

	// Value range scaled onto the plot area.
	MinX, MinY, MaxX, MaxY float64

	XTickFmt, YTickFmt string
	Ticks              int
}

// U maps x into page space. The bool reports whether x is outside the range.
func (g grid) U(x float64) (float64, bool) {
	ratio := 0.5
	if g.MaxX != g.MinX {
		ratio = (x - g.MinX) / (g.MaxX - g.MinX)
	}
	return g.OffsetU + ratio*g.W, ratio < 0 || ratio > 1
}

// V maps y into page space; y grows upwards.
func (g grid) V(y float64) (float64, bool) {
	ratio := 0.5
	if g.MaxY != g.MinY {
		ratio = (y - g.MinY) / (g.MaxY - g.MinY)
	}
	return g.OffsetV + g.H - ratio*g.H, ratio < 0 || ratio > 1
}

func (g grid) UV(x, y float64) (float64, float64, bool) {
	u, oobU := g.U(x)
	v, oobV := g.V(y)
	return u, v, oobU || oobV
}

// Polyline draws the series (xs[i], ys[i]) in the current draw colour.
func (g grid) Polyline(xs, ys []float64) {
	if len(xs) == 0 || len(xs) != len(ys) {
		return
	}
	u, v, _ := g.UV(xs[0], ys[0])
	g.pdf.MoveTo(u, v)
	for i := 1; i < len(xs); i++ {
		u, v, _ = g.UV(xs[i], ys[i])
		g.pdf.LineTo(u, v)
	}
	g.pdf.DrawPath("D")
}

// Dot draws a filled circle at (x, y) unless it falls outside the grid.
func (g grid) Dot(x, y, r float64) {
	u, v, oob := g.UV(x, y)
	if oob {
		return
	}
	g.pdf.Circle(u, v, r, "F")
}

// Bar draws a filled bar from MinY up to y spanning [x0, x1].
func (g grid) Bar(x0, x1, y float64) {
	u0, _ := g.U(x0)
	u1, _ := g.U(x1)
	top, _ := g.V(y)
	bottom := g.OffsetV + g.H
	if top >= bottom {
		return
	}
	g.pdf.Rect(u0, top, u1-u0, bottom-top, "F")
}

// TickLabels writes evenly spaced axis labels below and left of the grid.
func (g grid) TickLabels() {
	if g.Ticks <= 0 {
		return
	}
	g.pdf.SetFont("Helvetica", "", 6)
	g.pdf.SetTextColor(0x40, 0x40, 0x40)
	for i := 0; i <= g.Ticks; i++ {
		f := float64(i) / float64(g.Ticks)
		if g.XTickFmt != "" {
			x := g.MinX + f*(g.MaxX-g.MinX)
			u, _ := g.U(x)
			g.pdf.SetXY(u-10, g.OffsetV+g.H+1)
			g.pdf.CellFormat(20, 3, fmt.Sprintf(g.XTickFmt, x), "", 0, "C", false, 0, "")
		}
		if g.YTickFmt != "" {
			y := g.MinY + f*(g.MaxY-g.MinY)
			v, _ := g.V(y)
			g.pdf.SetXY(g.OffsetU-21, v-1.5)
			g.pdf.CellFormat(20, 3, fmt.Sprintf(g.YTickFmt, y), "", 0, "R", false, 0, "")
		}
	}
}

// drawPanelFrame draws a box with dashed interior gridlines. It only uses
// line primitives so it can be baked into a template.
func drawPanelFrame(pdf *gofpdf.Fpdf, x, y, w, h float64, divisions int) {
	pdf.SetDrawColor(0xe0, 0xe0, 0xe0)
	pdf.SetLineWidth(0.05)
	pdf.SetDashPattern([]float64{1, 1}, 0)
	for i := 1; i < divisions; i++ {
		f := float64(i) / float64(divisions)
		pdf.Line(x+f*w, y, x+f*w, y+h)
		pdf.Line(x, y+f*h, x+w, y+f*h)
	}
	pdf.SetDashPattern([]float64{}, 0)

	pdf.SetDrawColor(0x00, 0x00, 0x00)
	pdf.SetLineWidth(0.3)
	pdf.Rect(x, y, w, h, "D")
}
