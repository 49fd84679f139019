package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"FxSentinel/internal/model"
)

// LogSink writes a compact summary of every report to the log.
type LogSink struct {
	Log zerolog.Logger
}

func (l LogSink) Name() string { return "log" }

func (l LogSink) Consume(_ context.Context, rep *model.AnalysisReport) error {
	for _, inst := range rep.Instruments {
		t := rep.Trends[inst]
		ev := l.Log.Info().Str("run_id", rep.RunID).Str("instrument", string(inst)).Str("status", string(t.Status))
		if t.Status == model.StatusOK {
			ev = ev.Float64("last", t.LastPrice).
				Float64("change", t.Change).
				Str("trend", string(t.Label)).
				Float64("annualized_vol", t.AnnualizedVol).
				Float64("max_drawdown", t.MaxDrawdown)
		}
		if c, ok := rep.Correlations[inst]; ok && c.Current.Status == model.StatusOK {
			ev = ev.Float64("correlation", c.Current.Value)
		}
		ev.Msg("instrument summary")
	}
	for _, o := range rep.Opportunities {
		l.Log.Warn().
			Str("run_id", rep.RunID).
			Str("cycle", o.Cycle.ID()).
			Float64("implied_rate", o.ImpliedRate).
			Float64("deviation", o.Deviation).
			Str("direction", string(o.Direction)).
			Msg("arbitrage opportunity")
	}
	return nil
}
