package pipeline

import (
	"fmt"
	"image/color"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"sms-decline-analysis/internal/model"
)

var (
	seriesColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	rpsColor    = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	splitColor  = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// overviewSeries returns daily revenue and daily revenue per send, keyed by
// unix seconds of the date.
func overviewSeries(daily []model.DailyAggregate) (revenue, rps plotter.XYs) {
	revenue = make(plotter.XYs, len(daily))
	rps = make(plotter.XYs, len(daily))
	for i, d := range daily {
		x := float64(d.Date.Unix())
		revenue[i] = plotter.XY{X: x, Y: d.Revenue}
		rps[i] = plotter.XY{X: x, Y: d.RevPerSent}
	}
	return revenue, rps
}

// breakdownSeries returns each phone's share of the total revenue change, in
// label order.
func breakdownSeries(phones []model.PhoneGroup) (plotter.Values, []string) {
	values := make(plotter.Values, len(phones))
	labels := make([]string, len(phones))
	for i, g := range phones {
		values[i] = g.SharePct
		labels[i] = g.Label
	}
	return values, labels
}

// RenderOverview draws daily revenue and daily revenue per send, one panel
// each, with the split date marked.
func RenderOverview(path string, rep *model.Report) error {
	if len(rep.Daily) == 0 {
		return fmt.Errorf("no daily aggregates to plot")
	}
	revenue, rps := overviewSeries(rep.Daily)

	top, err := timePanel("Daily SMS revenue", "Revenue", "revenue", revenue, seriesColor, rep)
	if err != nil {
		return err
	}
	bottom, err := timePanel("Revenue per send", "Revenue / send", "revenue per send", rps, rpsColor, rep)
	if err != nil {
		return err
	}
	bottom.X.Label.Text = "Date"

	img := vgimg.New(11*vg.Inch, 7*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadY:      vg.Millimeter * 6,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 4,
	}
	canvases := plot.Align([][]*plot.Plot{{top}, {bottom}}, tiles, dc)
	top.Draw(canvases[0][0])
	bottom.Draw(canvases[1][0])

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(file); err != nil {
		return err
	}
	return file.Close()
}

func timePanel(title, ylabel, legend string, pts plotter.XYs, c color.Color, rep *model.Report) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.X.Tick.Marker = plot.TimeTicks{Format: "Jan 02"}
	p.Add(plotter.NewGrid())

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return nil, err
	}
	line.Color = c
	points.Color = c
	points.Radius = vg.Points(2)
	p.Add(line, points)
	p.Legend.Add(legend, line, points)

	top := 0.0
	for _, pt := range pts {
		if pt.Y > top {
			top = pt.Y
		}
	}
	split := float64(rep.SplitDate.Unix())
	marker, err := plotter.NewLine(plotter.XYs{{X: split, Y: 0}, {X: split, Y: top * 1.05}})
	if err != nil {
		return nil, err
	}
	marker.Color = splitColor
	marker.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
	p.Add(marker)
	p.Legend.Add("split "+rep.SplitDate.Format("2006-01-02"), marker)
	p.Legend.Top = true
	return p, nil
}

// RenderBreakdown draws each phone number's contribution to the revenue change.
func RenderBreakdown(path string, rep *model.Report) error {
	if len(rep.Phones) == 0 {
		return fmt.Errorf("no phone groups to plot")
	}
	values, labels := breakdownSeries(rep.Phones)

	p := plot.New()
	p.Title.Text = "Share of revenue change by phone number"
	p.Y.Label.Text = "Share of revenue change (%)"
	p.Add(plotter.NewGrid())

	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return err
	}
	bars.Color = seriesColor
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)

	width := vg.Length(len(labels))*vg.Points(28) + 2*vg.Inch
	if width < 6*vg.Inch {
		width = 6 * vg.Inch
	}
	return p.Save(width, 4*vg.Inch, path)
}
