package calculator

import (
	"errors"
	"math"
)

var (
	// ErrInsufficientData is returned when a calculation needs more points.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrZeroVariance is returned when a correlation input is constant.
	ErrZeroVariance = errors.New("zero variance")
)

// Mean returns the arithmetic mean.
func Mean(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs)), nil
}

// SampleStdDev returns the sample (n-1) standard deviation.
func SampleStdDev(xs []float64) (float64, error) {
	if len(xs) < 2 {
		return 0, ErrInsufficientData
	}
	m, _ := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1)), nil
}

// Returns computes simple returns (p[t]-p[t-1])/p[t-1]. Steps whose
// previous price is zero are skipped.
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		out = append(out, (prices[i]-prices[i-1])/prices[i-1])
	}
	return out
}

// Pearson returns the Pearson correlation coefficient of two equal-length samples.
func Pearson(xs, ys []float64) (float64, error) {
	if len(xs) != len(ys) {
		return 0, errors.New("samples differ in length")
	}
	if len(xs) < 2 {
		return 0, ErrInsufficientData
	}
	mx, _ := Mean(xs)
	my, _ := Mean(ys)

	var cov, vx, vy float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	n := len(xs)
	if constant(vx, n, mx) || constant(vy, n, my) {
		return 0, ErrZeroVariance
	}
	r := cov / math.Sqrt(vx*vy)
	// clamp rounding noise
	return math.Max(-1, math.Min(1, r)), nil
}

// varianceFloor is the standard deviation, relative to max(|mean|, 1), below
// which a sample is treated as constant. Float rounding on a flat or geometric
// path leaves deviations many orders of magnitude under it.
const varianceFloor = 1e-12

// constant reports whether a sample with sum of squared deviations ss is flat.
func constant(ss float64, n int, mean float64) bool {
	sd := math.Sqrt(ss / float64(n))
	return sd <= varianceFloor*math.Max(1, math.Abs(mean))
}
