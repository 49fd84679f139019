package calculator

import (
	"errors"

	"FxSentinel/internal/model"
)

// RSI is Wilder's relative strength index of the rates in s, between 0 and 100.
// The first average is seeded with a plain mean of period changes, so s must
// hold at least period+1 quotes. A series that never moves reads 50.
func RSI(s model.Series, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("rsi period must be positive")
	}
	if len(s) <= period {
		return 0, ErrInsufficientData
	}

	n := float64(period)
	var up, down float64
	for i := 1; i < len(s); i++ {
		gain, loss := split(s[i].Rate - s[i-1].Rate)
		if i <= period {
			up += gain / n
			down += loss / n
			continue
		}
		up = (up*(n-1) + gain) / n
		down = (down*(n-1) + loss) / n
	}

	switch {
	case up == 0 && down == 0:
		return 50, nil
	case down == 0:
		return 100, nil
	}
	return 100 - 100/(1+up/down), nil
}

// split separates a price change into its gain and loss magnitudes.
func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}
