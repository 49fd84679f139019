package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"FxSentinel/internal/model"
	"FxSentinel/internal/store"
)

// ArbitrageConfig controls triangular arbitrage detection.
type ArbitrageConfig struct {
	MinDeviation float64
	Staleness    time.Duration
	AllowInverse bool
	// Cycles lists explicit conversion chains such as
	// ["EUR/USD", "USD/JPY", "JPY/EUR"]. Empty means every triangle
	// that can be built from the monitored pairs.
	Cycles [][3]model.Instrument
}

// Arbitrage evaluates cross-rate cycles over the latest quotes.
type Arbitrage struct {
	store *store.Store
	cfg   ArbitrageConfig
	log   zerolog.Logger
}

// NewArbitrage creates a detector reading from s.
func NewArbitrage(s *store.Store, cfg ArbitrageConfig, log zerolog.Logger) *Arbitrage {
	return &Arbitrage{store: s, cfg: cfg, log: log}
}

// Detect returns opportunities sorted by deviation (desc) then cycle ID.
// Only pairs in monitored are used.
func (a *Arbitrage) Detect(now time.Time, monitored []model.Instrument) []model.ArbitrageOpportunity {
	available := make(map[model.Instrument]bool)
	for _, inst := range monitored {
		if inst.IsPair() {
			available[inst] = true
		}
	}

	var opps []model.ArbitrageOpportunity
	for _, cycle := range a.cycles(available) {
		opp, ok := a.evaluate(now, cycle)
		if !ok {
			continue
		}
		opps = append(opps, opp)
	}

	sort.Slice(opps, func(i, j int) bool {
		if opps[i].Deviation != opps[j].Deviation {
			return opps[i].Deviation > opps[j].Deviation
		}
		return opps[i].Cycle.ID() < opps[j].Cycle.ID()
	})
	return opps
}

func (a *Arbitrage) evaluate(now time.Time, cycle model.ArbitrageCycle) (model.ArbitrageOpportunity, bool) {
	implied := 1.0
	var oldest time.Time
	for i, leg := range cycle.Legs {
		q, ok := a.store.Latest(leg.Pair)
		if !ok || !(q.Rate > 0) || math.IsInf(q.Rate, 0) {
			return model.ArbitrageOpportunity{}, false
		}
		if now.Sub(q.Time) >= a.cfg.Staleness {
			a.log.Debug().Str("cycle", cycle.ID()).Str("leg", string(leg.Pair)).Time("quoted_at", q.Time).Msg("stale leg, cycle skipped")
			return model.ArbitrageOpportunity{}, false
		}
		rate := q.Rate
		if leg.Inverted {
			rate = 1 / rate
		}
		implied *= rate
		if i == 0 || q.Time.Before(oldest) {
			oldest = q.Time
		}
	}

	deviation := math.Abs(implied - 1)
	if math.IsNaN(deviation) || math.IsInf(deviation, 0) || deviation < a.cfg.MinDeviation {
		return model.ArbitrageOpportunity{}, false
	}
	dir := model.DirectionReverse
	if implied > 1 {
		dir = model.DirectionForward
	}
	return model.ArbitrageOpportunity{
		Cycle:       cycle,
		ImpliedRate: implied,
		Deviation:   deviation,
		Direction:   dir,
		QuotedAt:    oldest,
	}, true
}

// cycles resolves configured chains, or enumerates every triangle.
func (a *Arbitrage) cycles(available map[model.Instrument]bool) []model.ArbitrageCycle {
	if len(a.cfg.Cycles) > 0 {
		var out []model.ArbitrageCycle
		for _, chain := range a.cfg.Cycles {
			var c model.ArbitrageCycle
			ok := true
			for i, conv := range chain {
				leg, found := a.resolve(conv.Base(), conv.Quote(), available)
				if !found {
					ok = false
					break
				}
				c.Legs[i] = leg
			}
			if ok && c.Closed() {
				out = append(out, c)
			}
		}
		return out
	}

	currencies := make(map[string]bool)
	for inst := range available {
		currencies[inst.Base()] = true
		currencies[inst.Quote()] = true
	}
	codes := make([]string, 0, len(currencies))
	for c := range currencies {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	var out []model.ArbitrageCycle
	for i := 0; i < len(codes); i++ {
		for j := i + 1; j < len(codes); j++ {
			for k := j + 1; k < len(codes); k++ {
				x, y, z := codes[i], codes[j], codes[k]
				if c, ok := a.best(available, [3]string{x, y, z}, [3]string{x, z, y}); ok {
					out = append(out, c)
				}
			}
		}
	}
	return out
}

// best resolves both orientations of a triangle and keeps the one with the
// most directly quoted legs; ties go to the first.
func (a *Arbitrage) best(available map[model.Instrument]bool, orientations ...[3]string) (model.ArbitrageCycle, bool) {
	var chosen model.ArbitrageCycle
	bestDirect := -1
	for _, o := range orientations {
		var c model.ArbitrageCycle
		direct := 0
		ok := true
		for i := range o {
			leg, found := a.resolve(o[i], o[(i+1)%3], available)
			if !found {
				ok = false
				break
			}
			if !leg.Inverted {
				direct++
			}
			c.Legs[i] = leg
		}
		if ok && direct > bestDirect {
			chosen, bestDirect = c, direct
		}
	}
	return chosen, bestDirect >= 0
}

// resolve finds a quoted pair converting from -> to.
func (a *Arbitrage) resolve(from, to string, available map[model.Instrument]bool) (model.Leg, bool) {
	direct := model.NewPair(from, to)
	if available[direct] {
		return model.Leg{Pair: direct}, true
	}
	if a.cfg.AllowInverse {
		if inv := direct.Inverse(); available[inv] {
			return model.Leg{Pair: inv, Inverted: true}, true
		}
	}
	return model.Leg{}, false
}
