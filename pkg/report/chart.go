package report

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/hed1ad/synguard/pkg/synflood"
)

// ErrEmptySeries is returned when there is nothing to chart.
var ErrEmptySeries = errors.New("no SYN packets to chart")

// Chart dimensions.
const (
	ChartWidth  = 12 * vg.Inch
	ChartHeight = 6 * vg.Inch
)

var seriesColors = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
}

// Chart plots SYN packet counts against elapsed minutes on a log y-axis.
// The first series is drawn solid, every further one dashed.
func Chart(series ...synflood.Series) (*plot.Plot, error) {
	var maxCount int
	for _, s := range series {
		for _, pt := range s.Points {
			if pt.Count > maxCount {
				maxCount = pt.Count
			}
		}
	}
	if maxCount == 0 {
		return nil, ErrEmptySeries
	}

	p := plot.New()
	p.Title.Text = "SYN packets over time"
	p.X.Label.Text = "Time (minutes)"
	p.Y.Label.Text = "SYN packet count"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	for i, s := range series {
		if len(s.Points) == 0 {
			continue
		}
		xys := make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			xys[j].X = float64(pt.Minute)
			xys[j].Y = float64(pt.Count)
		}

		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("series %d: %w", s.Resolution, err)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = seriesColors[i%len(seriesColors)]
		if i > 0 {
			line.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		}

		p.Add(line)
		p.Legend.Add(fmt.Sprintf("SYN packets per %d min", s.Resolution), line)
	}

	// counts are at least 1; keep the log range strictly positive and non-empty
	p.Y.Min = 0.5
	p.Y.Max = float64(maxCount) * 2
	p.Legend.Top = true

	return p, nil
}

// SaveChart renders the series to path. The image format follows the
// file extension (png, svg, pdf).
func SaveChart(path string, series ...synflood.Series) error {
	p, err := Chart(series...)
	if err != nil {
		return err
	}
	if err := p.Save(ChartWidth, ChartHeight, path); err != nil {
		return fmt.Errorf("failed to save chart: %w", err)
	}
	return nil
}
