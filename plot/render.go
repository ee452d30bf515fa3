package plot

import (
	"fmt"
	"io"
	"math"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var (
	trendColor    = drawing.ColorFromHex("2563EB")
	positiveColor = drawing.ColorFromHex("22C55E")
	negativeColor = drawing.ColorFromHex("EF4444")
	zeroColor     = drawing.ColorFromHex("9CA3AF")
)

// markerStyle renders points only (no connecting line)
func markerStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    4,
		DotColor:    col,
	}
}

func trendStyle(kind Kind) chart.Style {
	st := chart.Style{
		StrokeColor: trendColor,
		StrokeWidth: 2.5,
		DotColor:    trendColor,
		DotWidth:    2,
	}
	switch kind {
	case Scatter:
		st = markerStyle(trendColor)
	case Area:
		st.FillColor = trendColor.WithAlpha(64)
	}
	return st
}

// timesAndValues splits points into chart axes. A lone point is widened by
// one second so the x range is never empty.
func timesAndValues(points []Point) ([]time.Time, []float64) {
	xs := make([]time.Time, 0, len(points)+1)
	ys := make([]float64, 0, len(points)+1)
	for _, p := range points {
		xs = append(xs, p.Time)
		ys = append(ys, p.Plot)
	}
	if len(points) == 1 {
		xs = append(xs, points[0].Time.Add(time.Second))
		ys = append(ys, points[0].Plot)
	}
	return xs, ys
}

func valueBounds(ys []float64) (float64, float64) {
	lo, hi := ys[0], ys[0]
	for _, y := range ys[1:] {
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}
	return lo, hi
}

func timeBounds(xs []time.Time) (time.Time, time.Time) {
	first, last := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x.Before(first) {
			first = x
		}
		if x.After(last) {
			last = x
		}
	}
	return first, last
}

// Render draws s as a PNG
func Render(w io.Writer, s Series, opts Options) error {
	if len(s.Points) == 0 {
		return ErrNoData
	}
	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		d := DefaultOptions()
		width, height = d.Width, d.Height
	}

	if opts.Kind == Bar {
		return renderBars(w, s, width, height)
	}

	xs, ys := timesAndValues(s.Points)
	series := []chart.Series{
		chart.TimeSeries{Name: "Power Trend", XValues: xs, YValues: ys, Style: trendStyle(opts.Kind)},
	}
	for _, sub := range []struct {
		name   string
		points []Point
		color  drawing.Color
	}{
		{"Positive", s.NonNegative, positiveColor},
		{"Negative", s.Negative, negativeColor},
	} {
		if len(sub.points) == 0 {
			continue
		}
		px, py := timesAndValues(sub.points)
		series = append(series, chart.TimeSeries{Name: sub.name, XValues: px, YValues: py, Style: markerStyle(sub.color)})
	}
	if opts.ZeroLine {
		series = append(series, chart.TimeSeries{
			Name:    "0",
			XValues: []time.Time{xs[0], xs[len(xs)-1]},
			YValues: []float64{0, 0},
			Style: chart.Style{
				StrokeColor:     zeroColor,
				StrokeWidth:     1,
				StrokeDashArray: []float64{5, 5},
			},
		})
	}

	ch := chart.Chart{
		Title:      "Power vs Date Time",
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		XAxis: chart.XAxis{
			Name:           "Date Time",
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02 15:04:05"),
		},
		YAxis:  chart.YAxis{Name: "Power"},
		Series: series,
	}
	lo, hi := valueBounds(ys)
	if opts.ZeroLine {
		lo, hi = math.Min(lo, 0), math.Max(hi, 0)
	}
	if lo == hi {
		// flat data has no y range of its own
		ch.YAxis.Range = &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}
	if first, last := timeBounds(xs); first.Equal(last) {
		// readings appended within the same second share one timestamp
		ch.XAxis.Range = &chart.ContinuousRange{
			Min: chart.TimeToFloat64(first.Add(-time.Second)),
			Max: chart.TimeToFloat64(last.Add(time.Second)),
		}
	}
	ch.Elements = []chart.Renderable{chart.LegendLeft(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

func renderBars(w io.Writer, s Series, width, height int) error {
	bars := make([]chart.Value, 0, len(s.Points))
	for _, p := range s.Points {
		col := positiveColor
		if p.Raw < 0 {
			col = negativeColor
		}
		bars = append(bars, chart.Value{
			Label: p.Time.Format("01-02 15:04:05"),
			Value: p.Plot,
			Style: chart.Style{FillColor: col, StrokeColor: col},
		})
	}
	barWidth := (width - 80) / (2 * len(bars))
	if barWidth < 2 {
		barWidth = 2
	}

	bc := chart.BarChart{
		Title:        "Power vs Date Time",
		Width:        width,
		Height:       height,
		UseBaseValue: true,
		BaseValue:    0,
		BarWidth:     barWidth,
		BarSpacing:   barWidth,
		Background:   chart.Style{Padding: chart.Box{Top: 40}},
		Bars:         bars,
	}
	if err := bc.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render bar chart: %w", err)
	}
	return nil
}
