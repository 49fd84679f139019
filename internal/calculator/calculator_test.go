package calculator

import (
	"errors"
	"math"
	"testing"

	"FxSentinel/internal/model"
)

func TestPearson_IdentityAndNegation(t *testing.T) {
	xs := []float64{0.01, -0.02, 0.015, 0.003, -0.007, 0.02}
	neg := make([]float64, len(xs))
	for i, x := range xs {
		neg[i] = -x
	}

	r, err := Pearson(xs, xs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(r-1) > 1e-12 {
		t.Errorf("expected 1, got %v", r)
	}

	r, err = Pearson(xs, neg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(r+1) > 1e-12 {
		t.Errorf("expected -1, got %v", r)
	}
}

func TestPearson_ZeroVariance(t *testing.T) {
	_, err := Pearson([]float64{1, 1, 1}, []float64{1, 2, 3})
	if !errors.Is(err, ErrZeroVariance) {
		t.Fatalf("expected ErrZeroVariance, got %v", err)
	}
}

func TestSampleStdDev(t *testing.T) {
	sd, err := SampleStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if err != nil {
		t.Fatal(err)
	}
	// population sd is 2; sample sd is sqrt(32/7)
	if want := math.Sqrt(32.0 / 7.0); math.Abs(sd-want) > 1e-12 {
		t.Errorf("expected %v, got %v", want, sd)
	}
	if _, err := SampleStdDev([]float64{1}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestReturns(t *testing.T) {
	got := Returns([]float64{100, 110, 99})
	want := []float64{0.1, -0.1}
	if len(got) != len(want) {
		t.Fatalf("expected %d returns, got %d", len(want), len(got))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("return %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if Returns([]float64{1}) != nil {
		t.Error("expected nil for a single price")
	}
}

func series(rates ...float64) model.Series {
	s := make(model.Series, len(rates))
	for i, r := range rates {
		s[i] = model.Quote{Rate: r}
	}
	return s
}

func TestSMA(t *testing.T) {
	sma, err := SMA(series(1, 2, 3, 4), 2)
	if err != nil || sma != 3.5 {
		t.Errorf("expected 3.5, got %v (%v)", sma, err)
	}
	if _, err := SMA(series(1), 2); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
	if _, err := SMA(series(1, 2), 0); err == nil {
		t.Error("expected an error for a zero period")
	}
}

func TestRSI(t *testing.T) {
	up := make([]float64, 20)
	for i := range up {
		up[i] = float64(i + 1)
	}
	down := make([]float64, len(up))
	for i := range up {
		down[i] = up[len(up)-1-i]
	}

	tests := []struct {
		name  string
		rates []float64
		want  float64
	}{
		{"rising", up, 100},
		{"falling", down, 0},
		{"flat", []float64{5, 5, 5, 5}, 50},
		// one gain of 2 and one loss of 1, seeded over both changes
		{"mixed", []float64{10, 12, 11}, 100 - 100/(1+2.0)},
	}
	for _, tt := range tests {
		period := 14
		if len(tt.rates) <= period {
			period = len(tt.rates) - 1
		}
		rsi, err := RSI(series(tt.rates...), period)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if math.Abs(rsi-tt.want) > 1e-9 {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, rsi)
		}
	}
	if _, err := RSI(series(up[:5]...), 14); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestPearson_GeometricPathIsUndefined(t *testing.T) {
	prices := []float64{1.1}
	for i := 0; i < 30; i++ {
		prices = append(prices, prices[len(prices)-1]*1.0037)
	}
	flat := Returns(prices)
	other := []float64{}
	for i := range flat {
		other = append(other, math.Sin(float64(i)))
	}
	if _, err := Pearson(flat, other); !errors.Is(err, ErrZeroVariance) {
		t.Errorf("expected ErrZeroVariance for constant returns, got %v", err)
	}
	if _, err := Pearson(other, other); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMaxDrawdown(t *testing.T) {
	dd, err := MaxDrawdown([]float64{100, 120, 90, 110, 60, 130})
	if err != nil {
		t.Fatal(err)
	}
	// peak 120 down to 60
	if math.Abs(dd+0.5) > 1e-12 {
		t.Errorf("expected -0.5, got %v", dd)
	}
	if dd, _ := MaxDrawdown([]float64{1, 2, 3}); dd != 0 {
		t.Errorf("expected 0 for a rising path, got %v", dd)
	}
	if _, err := MaxDrawdown(nil); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestSharpe(t *testing.T) {
	returns := []float64{0.01, -0.005, 0.02, 0.0, 0.004}
	got, err := Sharpe(returns, 0.02, 252)
	if err != nil {
		t.Fatal(err)
	}

	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - 0.02/252
	}
	m, _ := Mean(excess)
	sd, _ := SampleStdDev(excess)
	if want := math.Sqrt(252) * m / sd; math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, got)
	}

	if _, err := Sharpe([]float64{0.001, 0.001, 0.001}, 0.02, 252); !errors.Is(err, ErrZeroVariance) {
		t.Errorf("expected ErrZeroVariance, got %v", err)
	}
	if _, err := Sharpe([]float64{0.001}, 0.02, 252); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData, got %v", err)
	}
}

func TestCalculateRange_PrefersOHLC(t *testing.T) {
	high, low, err := CalculateRange(model.Series{
		{Rate: 1.10, High: 1.12, Low: 1.09},
		{Rate: 1.11},
	})
	if err != nil {
		t.Fatal(err)
	}
	if high != 1.12 || low != 1.09 {
		t.Errorf("expected 1.12/1.09, got %v/%v", high, low)
	}
}
