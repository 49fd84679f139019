package model

import (
	"strings"
	"time"
)

// AnalysisStatus labels whether an analytic value could be computed.
type AnalysisStatus string

const (
	StatusOK               AnalysisStatus = "ok"
	StatusInsufficientData AnalysisStatus = "insufficient_data"
	StatusUndefined        AnalysisStatus = "undefined" // zero variance input
	StatusExcluded         AnalysisStatus = "excluded"  // permanent fetch failure this cycle
)

// TrendLabel is the direction of a price window.
type TrendLabel string

const (
	TrendUp   TrendLabel = "up"
	TrendDown TrendLabel = "down"
	TrendFlat TrendLabel = "flat"
)

// TrendSummary describes the recent behaviour of one instrument.
type TrendSummary struct {
	Instrument Instrument
	Status     AnalysisStatus
	Points     int
	From       time.Time
	To         time.Time
	LastPrice  float64
	Mean       float64
	StdDev     float64 // sample standard deviation of prices
	Change     float64 // relative change first -> last
	Label      TrendLabel
	High       float64
	Low        float64
	MeanReturn float64
	// AnnualizedVol is std(returns) * sqrt(252).
	AnnualizedVol float64
	MaxDrawdown   float64  // deepest peak-to-trough fall in the window, <= 0
	Sharpe        *float64 // annualised, nil when returns do not vary
	SMA           *float64
	RSI           *float64
}

// CorrelationTrend compares the two most recent rolling correlations.
type CorrelationTrend string

const (
	CorrelationIncreasing CorrelationTrend = "increasing"
	CorrelationDecreasing CorrelationTrend = "decreasing"
	CorrelationStable     CorrelationTrend = "stable"
)

// CorrelationValue is a correlation coefficient that may be unavailable.
type CorrelationValue struct {
	Status AnalysisStatus
	Value  float64
}

// CorrelationTrendValue is a trend label that may be unavailable.
type CorrelationTrendValue struct {
	Status AnalysisStatus
	Label  CorrelationTrend
	Delta  float64
}

// CorrelationSummary relates a pair's returns to the reference asset's returns.
type CorrelationSummary struct {
	Pair      Instrument
	Reference Instrument
	Samples   int // aligned return pairs
	Current   CorrelationValue
	Average   CorrelationValue
	Trend     CorrelationTrendValue
}

// Leg converts From -> To using a quoted pair, directly or through its reciprocal.
type Leg struct {
	Pair     Instrument
	Inverted bool
}

// From is the currency sold on this leg.
func (l Leg) From() string {
	if l.Inverted {
		return l.Pair.Quote()
	}
	return l.Pair.Base()
}

// To is the currency bought on this leg.
func (l Leg) To() string {
	if l.Inverted {
		return l.Pair.Base()
	}
	return l.Pair.Quote()
}

func (l Leg) String() string {
	s := l.From() + "/" + l.To()
	if l.Inverted {
		s += "*"
	}
	return s
}

// ArbitrageCycle is a closed loop of three legs A->B->C->A.
type ArbitrageCycle struct {
	Legs [3]Leg
}

// ID is a stable identifier used for ordering and persistence.
func (c ArbitrageCycle) ID() string {
	parts := make([]string, len(c.Legs))
	for i, l := range c.Legs {
		parts[i] = l.String()
	}
	return strings.Join(parts, ">")
}

// Closed reports whether every leg starts where the previous one ended.
func (c ArbitrageCycle) Closed() bool {
	for i := range c.Legs {
		next := c.Legs[(i+1)%len(c.Legs)]
		if c.Legs[i].To() != next.From() {
			return false
		}
	}
	return true
}

// ArbitrageDirection tells which rotation of a cycle is profitable.
type ArbitrageDirection string

const (
	// DirectionForward: trade the legs in listed order (implied rate > 1).
	DirectionForward ArbitrageDirection = "forward"
	// DirectionReverse: trade the legs in reverse order (implied rate < 1).
	DirectionReverse ArbitrageDirection = "reverse"
)

// ArbitrageOpportunity is a detected triangular mispricing.
type ArbitrageOpportunity struct {
	Cycle       ArbitrageCycle
	ImpliedRate float64
	Deviation   float64
	Direction   ArbitrageDirection
	QuotedAt    time.Time // oldest leg timestamp
}
