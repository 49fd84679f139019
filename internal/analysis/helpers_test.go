package analysis

import (
	"time"

	"FxSentinel/internal/model"
	"FxSentinel/internal/store"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// seed stores one daily point per price starting at start.
func seed(s *store.Store, inst model.Instrument, start time.Time, prices ...float64) {
	quotes := make([]model.Quote, len(prices))
	for i, p := range prices {
		quotes[i] = model.Quote{Instrument: inst, Time: start.AddDate(0, 0, i), Rate: p}
	}
	s.Merge(inst, quotes)
}

// fromReturns builds a price path starting at base.
func fromReturns(base float64, returns ...float64) []float64 {
	prices := []float64{base}
	for _, r := range returns {
		prices = append(prices, prices[len(prices)-1]*(1+r))
	}
	return prices
}

func negate(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = -x
	}
	return out
}
