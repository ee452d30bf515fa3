// Package stats computes descriptive statistics over the numeric Power values
// of a table. Nothing is cached; every call works from the rows it is given.
package stats

import (
	"math"
	"sort"

	"power_dashboard/models"
	"power_dashboard/validate"
)

// DefaultBins is the histogram bin count used by the distribution view
const DefaultBins = 20

// Summary holds the descriptive statistics of the numeric subset
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Sum    float64 `json:"sum"`
	Q25    float64 `json:"q25"`
	Q75    float64 `json:"q75"`
}

// Range returns Max - Min
func (s Summary) Range() float64 {
	return s.Max - s.Min
}

// Values returns the coercible Power values in table order
func Values(rows []models.Reading) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if v, ok := validate.CoerceNumeric(r.Power); ok {
			out = append(out, v)
		}
	}
	return out
}

// Compute summarises the numeric rows. ok is false when no row coerces.
func Compute(rows []models.Reading) (Summary, bool) {
	return ComputeValues(Values(rows))
}

// ComputeValues summarises vals; vals is not modified
func ComputeValues(vals []float64) (Summary, bool) {
	n := len(vals)
	if n == 0 {
		return Summary{}, false
	}

	sorted := make([]float64, n)
	copy(sorted, vals)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var std float64
	if n > 1 {
		var ss float64
		for _, v := range sorted {
			d := v - mean
			ss += d * d
		}
		std = math.Sqrt(ss / float64(n-1))
	}

	return Summary{
		Count:  n,
		Mean:   mean,
		Median: Quantile(sorted, 0.5),
		Std:    std,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Sum:    sum,
		Q25:    Quantile(sorted, 0.25),
		Q75:    Quantile(sorted, 0.75),
	}, true
}

// Quantile returns the p-quantile of an ascending slice using linear
// interpolation between order statistics at h = (n-1)p.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	h := float64(n-1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= n {
		return sorted[i]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Bin is one equal-width histogram bucket, [Lower, Upper) except the last
// which also includes Upper.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram buckets the numeric values of rows into bins equal-width bins
func Histogram(rows []models.Reading, bins int) []Bin {
	vals := Values(rows)
	if len(vals) == 0 {
		return nil
	}
	if bins <= 0 {
		bins = DefaultBins
	}

	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return []Bin{{Lower: lo - 0.5, Upper: hi + 0.5, Count: len(vals)}}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, v := range vals {
		i := int((v - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out
}
