package analysis

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"FxSentinel/internal/model"
	"FxSentinel/internal/store"
)

// Config gathers every analysis tunable.
type Config struct {
	Correlation    CorrelationConfig
	TrendWindow    int
	TrendThreshold float64
	RiskFreeRate   float64 // yearly, for the Sharpe ratio
	Arbitrage      ArbitrageConfig
}

// Engine assembles an AnalysisReport from the series store.
type Engine struct {
	store *store.Store
	cfg   Config
	log   zerolog.Logger
}

// NewEngine creates a new Engine.
func NewEngine(s *store.Store, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{store: s, cfg: cfg, log: log.With().Str("component", "analysis").Logger()}
}

// Analyze builds the report for one run. Every instrument gets a trend
// summary and every pair a correlation summary; instruments whose fetch
// failed permanently are reported as excluded.
func (e *Engine) Analyze(now time.Time, instruments []model.Instrument, reference model.Instrument, outcomes map[model.Instrument]model.FetchOutcome) *model.AnalysisReport {
	insts := withReference(instruments, reference)
	excluded := func(inst model.Instrument) bool {
		o, ok := outcomes[inst]
		return ok && o.Excluded()
	}

	report := &model.AnalysisReport{
		RunID:        uuid.NewString(),
		GeneratedAt:  now,
		Reference:    reference,
		Instruments:  insts,
		Outcomes:     make(map[model.Instrument]model.FetchOutcome, len(outcomes)),
		Trends:       make(map[model.Instrument]model.TrendSummary, len(insts)),
		Correlations: make(map[model.Instrument]model.CorrelationSummary),
	}
	for k, v := range outcomes {
		report.Outcomes[k] = v
	}

	trend := NewTrend(e.store, e.cfg.TrendThreshold).WithRiskFreeRate(e.cfg.RiskFreeRate)
	corr := NewCorrelation(e.store, reference, e.cfg.Correlation)
	refUsable := !excluded(reference) && e.store.Len(reference) > 0

	var monitored []model.Instrument
	for _, inst := range insts {
		if excluded(inst) {
			report.Trends[inst] = model.TrendSummary{Instrument: inst, Status: model.StatusExcluded}
		} else {
			report.Trends[inst] = trend.Summarize(inst, e.cfg.TrendWindow)
			monitored = append(monitored, inst)
		}

		if !inst.IsPair() {
			continue
		}
		switch {
		case excluded(inst):
			report.Correlations[inst] = excludedCorrelation(inst, reference)
		case !refUsable:
			report.Correlations[inst] = insufficientCorrelation(inst, reference)
		default:
			report.Correlations[inst] = corr.Summarize(inst)
		}
	}

	report.Opportunities = NewArbitrage(e.store, e.cfg.Arbitrage, e.log).Detect(now, monitored)

	e.log.Info().
		Str("run_id", report.RunID).
		Int("instruments", len(insts)).
		Int("opportunities", len(report.Opportunities)).
		Msg("analysis complete")
	return report
}

func withReference(instruments []model.Instrument, reference model.Instrument) []model.Instrument {
	out := make([]model.Instrument, 0, len(instruments)+1)
	seen := make(map[model.Instrument]bool)
	for _, inst := range instruments {
		if !seen[inst] {
			seen[inst] = true
			out = append(out, inst)
		}
	}
	if reference != "" && !seen[reference] {
		out = append(out, reference)
	}
	return out
}

func excludedCorrelation(pair, reference model.Instrument) model.CorrelationSummary {
	return model.CorrelationSummary{
		Pair:      pair,
		Reference: reference,
		Current:   model.CorrelationValue{Status: model.StatusExcluded},
		Average:   model.CorrelationValue{Status: model.StatusExcluded},
		Trend:     model.CorrelationTrendValue{Status: model.StatusExcluded},
	}
}

func insufficientCorrelation(pair, reference model.Instrument) model.CorrelationSummary {
	return model.CorrelationSummary{
		Pair:      pair,
		Reference: reference,
		Current:   model.CorrelationValue{Status: model.StatusInsufficientData},
		Average:   model.CorrelationValue{Status: model.StatusInsufficientData},
		Trend:     model.CorrelationTrendValue{Status: model.StatusInsufficientData},
	}
}
