// Package plot turns table rows into the cleaned, ordered series that the
// charts draw, and renders that series to PNG.
package plot

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"power_dashboard/models"
	"power_dashboard/validate"
)

var (
	ErrInvalidOptions = errors.New("invalid plot options")
	ErrNoData         = errors.New("no rows to plot")
)

// Kind selects how the trend series is drawn
type Kind string

const (
	Line    Kind = "line"
	Area    Kind = "area"
	Scatter Kind = "scatter"
	Bar     Kind = "bar"
)

// ParseKind accepts a case-insensitive kind name
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Line, Area, Scatter, Bar:
		return k, nil
	case "":
		return Line, nil
	default:
		return "", fmt.Errorf("%w: unknown chart kind %q", ErrInvalidOptions, s)
	}
}

// Windows lists the accepted smoothing window sizes
var Windows = []int{3, 5, 7}

// Options are the operator's chart controls
type Options struct {
	Kind       Kind    `json:"kind"`
	SortByTime bool    `json:"sort_by_time"`
	ZeroLine   bool    `json:"zero_line"`
	Smoothing  bool    `json:"smoothing"`
	WindowSize int     `json:"window_size"`
	RangeMin   float64 `json:"range_min"`
	RangeMax   float64 `json:"range_max"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
}

// DefaultOptions mirrors the initial state of the chart controls
func DefaultOptions() Options {
	return Options{
		Kind:       Line,
		SortByTime: true,
		ZeroLine:   true,
		Smoothing:  false,
		WindowSize: 5,
		RangeMin:   validate.PowerMin,
		RangeMax:   validate.PowerMax,
		Width:      1024,
		Height:     480,
	}
}

// Validate checks the window size and display range
func (o Options) Validate() error {
	if o.RangeMin > o.RangeMax {
		return fmt.Errorf("%w: range min %g above max %g", ErrInvalidOptions, o.RangeMin, o.RangeMax)
	}
	for _, w := range Windows {
		if o.WindowSize == w {
			return nil
		}
	}
	return fmt.Errorf("%w: window size %d not in %v", ErrInvalidOptions, o.WindowSize, Windows)
}

// Point is one plotted row
type Point struct {
	Row  int       `json:"row"`
	Time time.Time `json:"time"`
	Plot float64   `json:"plot"`
	Raw  float64   `json:"raw"`
}

// Series is the prepared chart input. Points feeds the trend line;
// NonNegative and Negative are marker subsets of Points in the same order.
type Series struct {
	Points      []Point `json:"points"`
	NonNegative []Point `json:"non_negative"`
	Negative    []Point `json:"negative"`
}

// Prepare coerces, orders, filters and optionally smooths rows. Rows whose
// timestamp or value fails to coerce are dropped.
func Prepare(rows []models.Reading, opts Options) Series {
	points := make([]Point, 0, len(rows))
	for i, r := range rows {
		ts, ok := validate.CoerceTime(r.DateTime)
		if !ok {
			continue
		}
		v, ok := validate.CoerceNumeric(r.Power)
		if !ok {
			continue
		}
		points = append(points, Point{Row: i, Time: ts, Plot: v, Raw: v})
	}

	if opts.SortByTime {
		sort.SliceStable(points, func(i, j int) bool {
			return points[i].Time.Before(points[j].Time)
		})
	}

	filtered := points[:0]
	for _, p := range points {
		if validate.InRange(p.Raw, opts.RangeMin, opts.RangeMax) {
			filtered = append(filtered, p)
		}
	}
	points = filtered

	if opts.Smoothing && len(points) > 0 {
		raw := make([]float64, len(points))
		for i, p := range points {
			raw[i] = p.Raw
		}
		for i, v := range MovingAverage(raw, opts.WindowSize) {
			points[i].Plot = v
		}
	}

	s := Series{Points: points}
	for _, p := range points {
		if p.Raw >= 0 {
			s.NonNegative = append(s.NonNegative, p)
		} else {
			s.Negative = append(s.Negative, p)
		}
	}
	return s
}

// MovingAverage returns the centered moving average of vals. At the edges
// the window shrinks to the samples that exist, so every output is defined.
// An even window puts the extra sample on the left.
func MovingAverage(vals []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	left := window / 2
	right := window - 1 - left

	out := make([]float64, len(vals))
	for i := range vals {
		lo, hi := i-left, i+right
		if lo < 0 {
			lo = 0
		}
		if hi > len(vals)-1 {
			hi = len(vals) - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += vals[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}
