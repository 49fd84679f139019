package analysis

import (
	"errors"
	"sort"
	"time"

	"FxSentinel/internal/calculator"
	"FxSentinel/internal/model"
	"FxSentinel/internal/store"
)

// CorrelationConfig controls rolling correlation.
type CorrelationConfig struct {
	Window    int           // aligned return pairs per rolling window, >= 2
	Epsilon   float64       // dead band for the correlation trend
	Tolerance time.Duration // max distance when matching pair and reference timestamps
}

// Correlation relates pair returns to the returns of a reference asset.
type Correlation struct {
	store     *store.Store
	reference model.Instrument
	cfg       CorrelationConfig
}

// NewCorrelation creates an analyzer reading from s.
func NewCorrelation(s *store.Store, reference model.Instrument, cfg CorrelationConfig) *Correlation {
	return &Correlation{store: s, reference: reference, cfg: cfg}
}

// Current is the Pearson coefficient over the most recent window.
func (c *Correlation) Current(pair model.Instrument) model.CorrelationValue {
	xs, ys := c.alignedReturns(pair)
	return c.current(xs, ys)
}

// Average is the mean coefficient over non-overlapping windows anchored at the newest point.
func (c *Correlation) Average(pair model.Instrument) model.CorrelationValue {
	xs, ys := c.alignedReturns(pair)
	return c.average(xs, ys)
}

// Trend compares the window ending now with the window ending one step earlier.
func (c *Correlation) Trend(pair model.Instrument) model.CorrelationTrendValue {
	xs, ys := c.alignedReturns(pair)
	return c.trend(xs, ys)
}

// Summarize bundles Current, Average and Trend from a single alignment pass.
func (c *Correlation) Summarize(pair model.Instrument) model.CorrelationSummary {
	xs, ys := c.alignedReturns(pair)
	return model.CorrelationSummary{
		Pair:      pair,
		Reference: c.reference,
		Samples:   len(xs),
		Current:   c.current(xs, ys),
		Average:   c.average(xs, ys),
		Trend:     c.trend(xs, ys),
	}
}

func (c *Correlation) current(xs, ys []float64) model.CorrelationValue {
	n := c.cfg.Window
	if n < 2 || len(xs) < n {
		return model.CorrelationValue{Status: model.StatusInsufficientData}
	}
	return pearson(xs[len(xs)-n:], ys[len(ys)-n:])
}

func (c *Correlation) average(xs, ys []float64) model.CorrelationValue {
	n := c.cfg.Window
	if n < 2 || len(xs) < n {
		return model.CorrelationValue{Status: model.StatusInsufficientData}
	}
	var sum float64
	defined := 0
	for end := len(xs); end-n >= 0; end -= n {
		v := pearson(xs[end-n:end], ys[end-n:end])
		if v.Status != model.StatusOK {
			continue
		}
		sum += v.Value
		defined++
	}
	if defined == 0 {
		return model.CorrelationValue{Status: model.StatusUndefined}
	}
	return model.CorrelationValue{Status: model.StatusOK, Value: sum / float64(defined)}
}

func (c *Correlation) trend(xs, ys []float64) model.CorrelationTrendValue {
	n := c.cfg.Window
	if n < 2 || len(xs) < n+1 {
		return model.CorrelationTrendValue{Status: model.StatusInsufficientData}
	}
	last := len(xs)
	cur := pearson(xs[last-n:], ys[last-n:])
	prev := pearson(xs[last-n-1:last-1], ys[last-n-1:last-1])
	if cur.Status != model.StatusOK || prev.Status != model.StatusOK {
		return model.CorrelationTrendValue{Status: model.StatusUndefined}
	}

	delta := cur.Value - prev.Value
	label := model.CorrelationStable
	switch {
	case delta > c.cfg.Epsilon:
		label = model.CorrelationIncreasing
	case delta < -c.cfg.Epsilon:
		label = model.CorrelationDecreasing
	}
	return model.CorrelationTrendValue{Status: model.StatusOK, Label: label, Delta: delta}
}

func pearson(xs, ys []float64) model.CorrelationValue {
	r, err := calculator.Pearson(xs, ys)
	switch {
	case errors.Is(err, calculator.ErrZeroVariance):
		return model.CorrelationValue{Status: model.StatusUndefined}
	case err != nil:
		return model.CorrelationValue{Status: model.StatusInsufficientData}
	}
	return model.CorrelationValue{Status: model.StatusOK, Value: r}
}

// alignedReturns matches pair and reference points and returns the paired
// simple returns over consecutive matches.
func (c *Correlation) alignedReturns(pair model.Instrument) (xs, ys []float64) {
	ps, rs := align(c.store.Window(pair, 0), c.store.Window(c.reference, 0), c.cfg.Tolerance)
	for i := 1; i < len(ps); i++ {
		if ps[i-1] == 0 || rs[i-1] == 0 {
			continue
		}
		xs = append(xs, (ps[i]-ps[i-1])/ps[i-1])
		ys = append(ys, (rs[i]-rs[i-1])/rs[i-1])
	}
	return xs, ys
}

// align pairs every point of a with the nearest point of b within tol.
// Points of b are used at most once; unmatched points are dropped.
func align(a, b model.Series, tol time.Duration) (pa, pb []float64) {
	used := make([]bool, len(b))
	for _, q := range a {
		j := sort.Search(len(b), func(i int) bool { return !b[i].Time.Before(q.Time) })

		best, bestDist := -1, time.Duration(0)
		for _, k := range [2]int{j - 1, j} {
			if k < 0 || k >= len(b) {
				continue
			}
			d := q.Time.Sub(b[k].Time).Abs()
			if best == -1 || d < bestDist {
				best, bestDist = k, d
			}
		}
		if best == -1 || bestDist > tol || used[best] {
			continue
		}
		used[best] = true
		pa = append(pa, q.Rate)
		pb = append(pb, b[best].Rate)
	}
	return pa, pb
}
