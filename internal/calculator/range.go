package calculator

import (
	"math"

	"FxSentinel/internal/model"
)

// CalculateRange returns the high and low of a quote window.
// Provider highs/lows are used when present, otherwise the rate itself.
func CalculateRange(quotes model.Series) (high, low float64, err error) {
	if len(quotes) == 0 {
		return 0, 0, ErrInsufficientData
	}
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, q := range quotes {
		h, l := q.Rate, q.Rate
		if q.High > 0 {
			h = q.High
		}
		if q.Low > 0 {
			l = q.Low
		}
		if h > high {
			high = h
		}
		if l < low {
			low = l
		}
	}
	return high, low, nil
}
