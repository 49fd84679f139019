package model

import "time"

// AnalysisReport is the immutable output of one analysis run.
type AnalysisReport struct {
	RunID         string
	GeneratedAt   time.Time
	Reference     Instrument
	Instruments   []Instrument // configured priority order
	Outcomes      map[Instrument]FetchOutcome
	Trends        map[Instrument]TrendSummary
	Correlations  map[Instrument]CorrelationSummary
	Opportunities []ArbitrageOpportunity
}

// Pairs returns the configured pairs in priority order.
func (r *AnalysisReport) Pairs() []Instrument {
	var pairs []Instrument
	for _, inst := range r.Instruments {
		if inst.IsPair() {
			pairs = append(pairs, inst)
		}
	}
	return pairs
}

// CountByStatus tallies fetch outcomes.
func (r *AnalysisReport) CountByStatus() map[FetchStatus]int {
	counts := make(map[FetchStatus]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}
