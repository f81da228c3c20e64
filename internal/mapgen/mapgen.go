// Package mapgen turns a play-through diary into a printable PDF journey
// map: one marker per visited scene along a winding dashed trail, labelled
// with the scene name and the choice that led onward.
package mapgen

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"

	"cyoa/internal/engine"
	"cyoa/internal/game"
)

const (
	pageW      = 595.0
	pageH      = 842.0
	margin     = 40.0
	markerSize = 44.0
	stepX      = 120.0
	stepY      = 96.0
	perRow     = 4
	rowsPerPg  = 7
	titleSize  = 16
	labelSize  = 8
	noteSize   = 6
	maxLabel   = 22
	maxNote    = 34
)

// Mark selects the glyph drawn for a stop.
type Mark int

const (
	MarkPlain Mark = iota
	MarkStart
	MarkLostChance
	MarkRestored
	MarkEnding
)

// Stop is one visited scene.
type Stop struct {
	SceneID string
	Name    string
	// Choice is what the player picked there, empty for the last stop.
	Choice string
	Mark   Mark
}

// Journey is everything drawn on the map.
type Journey struct {
	Title   string
	Stops   []Stop
	Current string
	// Ending is set once the play-through has finished.
	Ending game.EndingKind
}

// FromDiary builds a journey from diary pages, marking stops by the flags
// of the scenes they visited.
func FromDiary(doc *game.Document, pages []engine.DiaryPage, current string, ending game.EndingKind) Journey {
	j := Journey{Title: doc.Title, Current: current, Ending: ending}
	for i, p := range pages {
		st := Stop{SceneID: p.SceneID, Name: p.Name, Choice: strings.Join(p.Choices, " / ")}
		if st.Name == "" {
			st.Name = humanize(p.SceneID)
		}
		sc := doc.Scenes[p.SceneID]
		switch {
		case i == 0:
			st.Mark = MarkStart
		case sc == nil:
		case sc.IsEndingScene:
			st.Mark = MarkEnding
		case sc.RemovesChanceOnEntry:
			st.Mark = MarkLostChance
		case sc.RestoresChanceOnEntry:
			st.Mark = MarkRestored
		}
		j.Stops = append(j.Stops, st)
	}
	return j
}

// Generate renders the journey. An empty journey still produces a page with
// the title and an empty trail.
func Generate(j Journey) ([]byte, error) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	perPage := perRow * rowsPerPg
	pages := pageCount(len(j.Stops))
	for pg := 0; pg < pages; pg++ {
		lo := pg * perPage
		hi := min(lo+perPage, len(j.Stops))
		newPage(pdf, tr(j.Title), pg+1, pages)

		stops := j.Stops[lo:hi]
		pos := trail(len(stops))
		drawTrail(pdf, pos)
		for i, st := range stops {
			x, y := pos[i][0], pos[i][1]
			drawMarker(pdf, x, y, st.Mark, st.SceneID == j.Current && lo+i == len(j.Stops)-1)
			drawLabels(pdf, tr, x, y, st)
		}
		if pg == pages-1 && j.Ending != "" {
			drawOutcome(pdf, j.Ending)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pageCount(stops int) int {
	perPage := perRow * rowsPerPg
	return max(1, (stops+perPage-1)/perPage)
}

func newPage(pdf *gofpdf.Fpdf, title string, n, total int) {
	pdf.AddPage()
	pdf.SetFillColor(245, 235, 210)
	pdf.Rect(0, 0, pageW, pageH, "F")

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(2)
	pdf.Polygon(raggedEdge(margin/2, margin/2, pageW-margin, pageH-margin, 14, 3.5), "D")

	pdf.SetTextColor(80, 50, 30)
	pdf.SetFont("Helvetica", "B", titleSize)
	pdf.SetXY(margin, margin)
	heading := "Journey"
	if title != "" {
		heading = title
	}
	pdf.CellFormat(pageW-2*margin-60, 18, heading, "", 0, "L", false, 0, "")
	if total > 1 {
		pdf.SetFont("Helvetica", "I", labelSize)
		pdf.SetXY(margin, margin+18)
		pdf.CellFormat(120, 10, "page "+strconv.Itoa(n)+" of "+strconv.Itoa(total), "", 0, "L", false, 0, "")
	}
	drawCompass(pdf, pageW-margin-30, margin+26)
}

// trail lays n stops out in a snake so the path zig-zags down the page.
func trail(n int) [][2]float64 {
	pos := make([][2]float64, n)
	x0 := margin + markerSize + 10
	y0 := margin + 100
	for i := range pos {
		row, col := i/perRow, i%perRow
		if row%2 == 1 {
			col = perRow - 1 - col
		}
		pos[i] = [2]float64{x0 + float64(col)*stepX, y0 + float64(row)*stepY}
	}
	return pos
}

func drawTrail(pdf *gofpdf.Fpdf, pos [][2]float64) {
	pdf.SetDrawColor(180, 40, 40)
	pdf.SetLineWidth(2)
	pdf.SetDashPattern([]float64{8, 5}, 0)
	for i := 1; i < len(pos); i++ {
		pdf.Line(pos[i-1][0], pos[i-1][1], pos[i][0], pos[i][1])
	}
	pdf.SetDashPattern([]float64{}, 0)
	pdf.SetLineWidth(1)
}

func drawMarker(pdf *gofpdf.Fpdf, x, y float64, m Mark, here bool) {
	r := markerSize / 2
	pdf.SetFillColor(245, 235, 210)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(1.2)
	pdf.Circle(x, y, r*0.7, "FD")

	switch m {
	case MarkStart:
		pdf.Line(x-r*0.2, y+r*0.4, x-r*0.2, y-r*0.45)
		pdf.Polygon([]gofpdf.PointType{{X: x - r*0.2, Y: y - r*0.45}, {X: x + r*0.35, Y: y - r*0.3}, {X: x - r*0.2, Y: y - r*0.15}}, "D")
	case MarkLostChance:
		pdf.SetDrawColor(180, 40, 40)
		pdf.SetLineWidth(2)
		pdf.Line(x-r*0.35, y-r*0.35, x+r*0.35, y+r*0.35)
		pdf.Line(x-r*0.35, y+r*0.35, x+r*0.35, y-r*0.35)
	case MarkRestored:
		pdf.SetFillColor(200, 60, 60)
		drawHeart(pdf, x, y, r*0.4)
	case MarkEnding:
		pdf.SetFillColor(220, 170, 50)
		pdf.Polygon(star(x, y, r*0.45, r*0.2), "FD")
	default:
		pdf.Circle(x, y, r*0.15, "F")
	}

	if here {
		pdf.SetDrawColor(80, 50, 20)
		pdf.SetLineWidth(2)
		pdf.Circle(x, y, r+3, "D")
	}
	pdf.SetLineWidth(1)
	pdf.SetDrawColor(80, 50, 30)
}

func drawLabels(pdf *gofpdf.Fpdf, tr func(string) string, x, y float64, st Stop) {
	w := stepX - 8
	pdf.SetTextColor(40, 25, 15)
	pdf.SetFont("Helvetica", "B", labelSize)
	pdf.SetXY(x-w/2, y+markerSize/2+2)
	pdf.CellFormat(w, 10, tr(clip(strings.ToUpper(st.Name), maxLabel)), "", 0, "C", false, 0, "")
	if st.Choice != "" {
		pdf.SetFont("Helvetica", "I", noteSize)
		pdf.SetXY(x-w/2, y+markerSize/2+12)
		pdf.CellFormat(w, 8, tr(clip(st.Choice, maxNote)), "", 0, "C", false, 0, "")
	}
}

func drawOutcome(pdf *gofpdf.Fpdf, kind game.EndingKind) {
	text, r, g, b := "THE END - LOST", 150, 30, 30
	if kind == game.EndingPositive {
		text, r, g, b = "THE END - WON", 40, 110, 40
	}
	pdf.SetDrawColor(r, g, b)
	pdf.SetTextColor(r, g, b)
	pdf.SetLineWidth(2)
	w := 160.0
	x, y := pageW-margin-w, pageH-margin-40
	pdf.Rect(x, y, w, 26, "D")
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(x, y+6)
	pdf.CellFormat(w, 14, text, "", 0, "C", false, 0, "")
	pdf.SetLineWidth(1)
}

func drawCompass(pdf *gofpdf.Fpdf, cx, cy float64) {
	const rad = 18.0
	pdf.SetDrawColor(101, 67, 33)
	pdf.Circle(cx, cy, rad, "D")
	for i := 0; i < 4; i++ {
		a := float64(i)*math.Pi/2 - math.Pi/2
		pdf.Line(cx, cy, cx+rad*math.Cos(a), cy+rad*math.Sin(a))
	}
	pdf.SetFont("Helvetica", "B", 7)
	pdf.SetXY(cx-4, cy-rad-9)
	pdf.CellFormat(8, 6, "N", "", 0, "C", false, 0, "")
}

func drawHeart(pdf *gofpdf.Fpdf, x, y, s float64) {
	pdf.Circle(x-s*0.5, y-s*0.2, s*0.55, "F")
	pdf.Circle(x+s*0.5, y-s*0.2, s*0.55, "F")
	pdf.Polygon([]gofpdf.PointType{{X: x - s*1.05, Y: y - s*0.05}, {X: x + s*1.05, Y: y - s*0.05}, {X: x, Y: y + s}}, "F")
}

func star(cx, cy, outer, inner float64) []gofpdf.PointType {
	pts := make([]gofpdf.PointType, 0, 10)
	for i := 0; i < 10; i++ {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		a := float64(i)*math.Pi/5 - math.Pi/2
		pts = append(pts, gofpdf.PointType{X: cx + r*math.Cos(a), Y: cy + r*math.Sin(a)})
	}
	return pts
}

// raggedEdge is a rectangle whose sides wobble like torn parchment.
func raggedEdge(x, y, w, h float64, steps int, amp float64) []gofpdf.PointType {
	pts := make([]gofpdf.PointType, 0, steps*4+1)
	side := func(x0, y0, dx, dy float64, phase float64) {
		for i := 0; i < steps; i++ {
			t := float64(i) / float64(steps)
			wob := amp * math.Sin(float64(i)*0.9+phase)
			pts = append(pts, gofpdf.PointType{X: x0 + t*dx + wob*math.Abs(dy)/max(h, 1), Y: y0 + t*dy + wob*math.Abs(dx)/max(w, 1)})
		}
	}
	side(x, y, w, 0, 0)
	side(x+w, y, 0, h, 1.3)
	side(x+w, y+h, -w, 0, 2.1)
	side(x, y+h, 0, -h, 0.4)
	return pts
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func humanize(id string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.TrimPrefix(id, "scn_"), "_", " "))
}
