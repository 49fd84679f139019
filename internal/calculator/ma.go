package calculator

import (
	"errors"

	"FxSentinel/internal/model"
)

// SMA is the mean rate of the last period quotes in s.
func SMA(s model.Series, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("sma period must be positive")
	}
	if len(s) < period {
		return 0, ErrInsufficientData
	}
	var sum float64
	for _, q := range s[len(s)-period:] {
		sum += q.Rate
	}
	return sum / float64(period), nil
}
