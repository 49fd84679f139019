package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FxSentinel/internal/model"
	"FxSentinel/internal/store"
)

func TestTrend_UpAndReversedDown(t *testing.T) {
	up := []float64{1.00, 1.01, 1.02, 1.03, 1.05}
	down := []float64{1.05, 1.03, 1.02, 1.01, 1.00}

	s := store.New(0)
	seed(s, "EUR/USD", day0, up...)
	seed(s, "GBP/USD", day0, down...)
	tr := NewTrend(s, 0.005)

	u := tr.Summarize("EUR/USD", 5)
	require.Equal(t, model.StatusOK, u.Status)
	assert.Equal(t, model.TrendUp, u.Label)
	assert.InDelta(t, 0.05, u.Change, 1e-12)

	d := tr.Summarize("GBP/USD", 5)
	assert.Equal(t, model.TrendDown, d.Label)
	// same prices in a different order
	assert.InDelta(t, u.Mean, d.Mean, 1e-12)
	assert.InDelta(t, u.StdDev, d.StdDev, 1e-12)
}

func TestTrend_DeadBand(t *testing.T) {
	s := store.New(0)
	seed(s, "EUR/USD", day0, 1.000, 1.004, 1.003)
	sum := NewTrend(s, 0.005).Summarize("EUR/USD", 10)
	assert.Equal(t, model.TrendFlat, sum.Label)
	assert.Equal(t, 3, sum.Points)
}

func TestTrend_InsufficientData(t *testing.T) {
	s := store.New(0)
	seed(s, "EUR/USD", day0, 1.08)

	tr := NewTrend(s, 0.005)
	assert.Equal(t, model.StatusInsufficientData, tr.Summarize("EUR/USD", 7).Status)
	assert.Equal(t, model.StatusInsufficientData, tr.Summarize("GBP/USD", 7).Status)
}

func TestTrend_WindowAndStats(t *testing.T) {
	s := store.New(0)
	seed(s, "EUR/USD", day0, 5, 100, 100, 110, 99)

	sum := NewTrend(s, 0.005).Summarize("EUR/USD", 3)
	require.Equal(t, model.StatusOK, sum.Status)
	assert.Equal(t, 3, sum.Points)
	assert.Equal(t, day0.AddDate(0, 0, 2), sum.From)
	assert.Equal(t, 99.0, sum.LastPrice)
	assert.Equal(t, 110.0, sum.High)
	assert.Equal(t, 99.0, sum.Low)
	assert.InDelta(t, 0.0, sum.MeanReturn, 1e-12)
	assert.InDelta(t, math.Sqrt(0.02)*math.Sqrt(252), sum.AnnualizedVol, 1e-9)
	assert.Nil(t, sum.SMA)
	assert.Nil(t, sum.RSI)
}

func TestTrend_RiskMetrics(t *testing.T) {
	s := store.New(0)
	seed(s, "EUR/USD", day0, 5, 100, 100, 110, 99)
	seed(s, "GBP/USD", day0, 1.27, 1.27, 1.27)

	sum := NewTrend(s, 0.005).WithRiskFreeRate(0.0252).Summarize("EUR/USD", 3)
	// peak 110 falls to 99
	assert.InDelta(t, -0.1, sum.MaxDrawdown, 1e-12)
	require.NotNil(t, sum.Sharpe)
	assert.InDelta(t, math.Sqrt(252)*-0.0001/math.Sqrt(0.02), *sum.Sharpe, 1e-9)

	flat := NewTrend(s, 0.005).WithRiskFreeRate(0.0252).Summarize("GBP/USD", 3)
	assert.Zero(t, flat.MaxDrawdown)
	assert.Nil(t, flat.Sharpe)
}

func TestTrend_IndicatorsFromHistory(t *testing.T) {
	prices := make([]float64, 25)
	for i := range prices {
		prices[i] = 1 + float64(i)*0.01
	}
	s := store.New(0)
	seed(s, "EUR/USD", day0, prices...)

	sum := NewTrend(s, 0.005).Summarize("EUR/USD", 7)
	require.NotNil(t, sum.SMA)
	require.NotNil(t, sum.RSI)
	assert.InDelta(t, 1+0.01*14.5, *sum.SMA, 1e-9)
	assert.Equal(t, 100.0, *sum.RSI)
}
