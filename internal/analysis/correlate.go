package analysis

import (
	"errors"
	"math"
	"time"
)

// ErrNoOverlap is returned when fewer than two days are shared.
var ErrNoOverlap = errors.New("analysis: no overlapping data")

// Report is the outcome of comparing search interest with volume.
type Report struct {
	Points int
	From   time.Time
	To     time.Time
	// SameDay correlates interest and volume on the same day.
	SameDay float64
	// Lag1 correlates the previous shared day's interest with today's volume.
	// NaN when fewer than two lagged pairs exist.
	Lag1 float64
}

// Correlate aligns the series and computes same-day and lag-1 Pearson
// correlations. A series without variance yields NaN.
func Correlate(interest, volume Series) (*Report, error) {
	pairs := Align(interest, volume)
	if len(pairs) < 2 {
		return nil, ErrNoOverlap
	}

	x := make([]float64, len(pairs))
	y := make([]float64, len(pairs))
	for i, p := range pairs {
		x[i], y[i] = p.Interest, p.Volume
	}

	return &Report{
		Points:  len(pairs),
		From:    pairs[0].Date,
		To:      pairs[len(pairs)-1].Date,
		SameDay: Pearson(x, y),
		Lag1:    Lagged(x, y, 1),
	}, nil
}

// Lagged correlates x shifted forward by k rows against y.
func Lagged(x, y []float64, k int) float64 {
	if k < 0 || len(x) != len(y) || len(x)-k < 2 {
		return math.NaN()
	}
	return Pearson(x[:len(x)-k], y[k:])
}

// Pearson returns the sample correlation coefficient of x and y, or NaN
// when the lengths differ, fewer than two values exist or either side is
// constant.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return math.NaN()
	}

	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)

	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}
