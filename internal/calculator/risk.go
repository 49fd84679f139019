package calculator

import (
	"math"
)

// MaxDrawdown is the deepest fall from a running peak, as a fraction <= 0.
func MaxDrawdown(prices []float64) (float64, error) {
	if len(prices) == 0 {
		return 0, ErrInsufficientData
	}
	peak, worst := prices[0], 0.0
	for _, p := range prices {
		if p > peak {
			peak = p
		}
		if peak > 0 {
			worst = math.Min(worst, (p-peak)/peak)
		}
	}
	return worst, nil
}

// Sharpe annualises the mean excess daily return over its sample deviation.
// riskFree is a yearly rate spread evenly over periodsPerYear.
func Sharpe(returns []float64, riskFree float64, periodsPerYear int) (float64, error) {
	if len(returns) < 2 {
		return 0, ErrInsufficientData
	}
	perPeriod := riskFree / float64(periodsPerYear)
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - perPeriod
	}
	m, _ := Mean(excess)
	sd, _ := SampleStdDev(excess)
	if sd <= varianceFloor*math.Max(1, math.Abs(m)) {
		return 0, ErrZeroVariance
	}
	return math.Sqrt(float64(periodsPerYear)) * m / sd, nil
}
