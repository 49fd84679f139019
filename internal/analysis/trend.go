package analysis

import (
	"math"

	"FxSentinel/internal/calculator"
	"FxSentinel/internal/model"
	"FxSentinel/internal/store"
)

const (
	tradingDaysPerYear = 252
	smaPeriod          = 20
	rsiPeriod          = 14
)

// Trend classifies recent price movement and computes summary statistics.
type Trend struct {
	store     *store.Store
	threshold float64
	riskFree  float64
}

// NewTrend creates a detector with the given relative-change dead band.
func NewTrend(s *store.Store, threshold float64) *Trend {
	return &Trend{store: s, threshold: threshold}
}

// WithRiskFreeRate sets the yearly rate subtracted from returns for the Sharpe ratio.
func (t *Trend) WithRiskFreeRate(r float64) *Trend {
	t.riskFree = r
	return t
}

// Summarize describes the most recent window points of inst.
func (t *Trend) Summarize(inst model.Instrument, window int) model.TrendSummary {
	s := t.store.Window(inst, window)
	sum := model.TrendSummary{Instrument: inst, Points: len(s)}
	if len(s) < 2 {
		sum.Status = model.StatusInsufficientData
		return sum
	}

	prices := s.Rates()
	first, last := prices[0], prices[len(prices)-1]
	sum.Status = model.StatusOK
	sum.From = s[0].Time
	sum.To = s[len(s)-1].Time
	sum.LastPrice = last
	sum.Mean, _ = calculator.Mean(prices)
	sum.StdDev, _ = calculator.SampleStdDev(prices)
	sum.High, sum.Low, _ = calculator.CalculateRange(s)
	if first != 0 {
		sum.Change = (last - first) / first
	}
	sum.Label = t.label(sum.Change)

	returns := calculator.Returns(prices)
	if m, err := calculator.Mean(returns); err == nil {
		sum.MeanReturn = m
	}
	if sd, err := calculator.SampleStdDev(returns); err == nil {
		sum.AnnualizedVol = sd * math.Sqrt(tradingDaysPerYear)
	}
	sum.MaxDrawdown, _ = calculator.MaxDrawdown(prices)
	if v, err := calculator.Sharpe(returns, t.riskFree, tradingDaysPerYear); err == nil {
		sum.Sharpe = &v
	}

	// indicators use the whole stored history, not just the window
	history := t.store.Window(inst, 0)
	if v, err := calculator.SMA(history, smaPeriod); err == nil {
		sum.SMA = &v
	}
	if v, err := calculator.RSI(history, rsiPeriod); err == nil {
		sum.RSI = &v
	}
	return sum
}

func (t *Trend) label(change float64) model.TrendLabel {
	switch {
	case change > t.threshold:
		return model.TrendUp
	case change < -t.threshold:
		return model.TrendDown
	default:
		return model.TrendFlat
	}
}
