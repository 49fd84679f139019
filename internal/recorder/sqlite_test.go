package recorder

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FxSentinel/internal/model"
)

func sampleReport(runID string, at time.Time) *model.AnalysisReport {
	rsi := 61.5
	return &model.AnalysisReport{
		RunID:       runID,
		GeneratedAt: at,
		Reference:   "BTC",
		Instruments: []model.Instrument{"EUR/USD", "JPY/USD", "BTC"},
		Outcomes: map[model.Instrument]model.FetchOutcome{
			"EUR/USD": {Instrument: "EUR/USD", Status: model.FetchSuccess, Attempts: 1, Points: 100, FetchedAt: at},
			"JPY/USD": {Instrument: "JPY/USD", Status: model.FetchPermanentFailure, Attempts: 1, Reason: "invalid", FetchedAt: at},
			"BTC":     {Instrument: "BTC", Status: model.FetchSuccess, Attempts: 2, Points: 100, FetchedAt: at},
		},
		Trends: map[model.Instrument]model.TrendSummary{
			"EUR/USD": {Instrument: "EUR/USD", Status: model.StatusOK, Points: 7, LastPrice: 1.0842, Mean: 1.08, Label: model.TrendUp, RSI: &rsi},
			"JPY/USD": {Instrument: "JPY/USD", Status: model.StatusExcluded},
			"BTC":     {Instrument: "BTC", Status: model.StatusOK, Points: 7, LastPrice: 62000, Label: model.TrendFlat},
		},
		Correlations: map[model.Instrument]model.CorrelationSummary{
			"EUR/USD": {Pair: "EUR/USD", Reference: "BTC", Samples: 60,
				Current: model.CorrelationValue{Status: model.StatusOK, Value: 0.31}},
			"JPY/USD": {Pair: "JPY/USD", Reference: "BTC",
				Current: model.CorrelationValue{Status: model.StatusExcluded}},
		},
		Opportunities: []model.ArbitrageOpportunity{{
			Cycle: model.ArbitrageCycle{Legs: [3]model.Leg{
				{Pair: "EUR/USD"}, {Pair: "USD/JPY"}, {Pair: "JPY/EUR"},
			}},
			ImpliedRate: 1.023, Deviation: 0.023, Direction: model.DirectionForward, QuotedAt: at,
		}},
	}
}

func TestSQLiteRecorder_Consume(t *testing.T) {
	ctx := context.Background()
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "db", "fx.db"), zerolog.Nop())
	require.NoError(t, err)
	defer rec.Close()

	t1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, rec.Consume(ctx, sampleReport("run-1", t1)))
	require.NoError(t, rec.Consume(ctx, sampleReport("run-2", t1.Add(4*time.Hour))))

	for table, want := range map[string]int{
		"runs": 2, "fetch_outcomes": 6, "trends": 6, "correlations": 4, "opportunities": 2,
	} {
		n, err := rec.CountRows(ctx, table)
		require.NoError(t, err)
		assert.Equal(t, want, n, table)
	}

	hist, err := rec.TrendHistory(ctx, "EUR/USD", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "run-2", hist[0].RunID)
	assert.Equal(t, 1.0842, hist[0].LastPrice)
	assert.Equal(t, "up", hist[0].Label)
}

func TestSQLiteRecorder_DuplicateRunRejected(t *testing.T) {
	ctx := context.Background()
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "fx.db"), zerolog.Nop())
	require.NoError(t, err)
	defer rec.Close()

	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, rec.Consume(ctx, sampleReport("run-1", at)))
	assert.Error(t, rec.Consume(ctx, sampleReport("run-1", at)))

	// the failed transaction leaves nothing behind
	n, err := rec.CountRows(ctx, "trends")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSQLiteRecorder_CountRowsUnknownTable(t *testing.T) {
	rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "fx.db"), zerolog.Nop())
	require.NoError(t, err)
	defer rec.Close()

	_, err = rec.CountRows(context.Background(), "sqlite_master; DROP TABLE runs")
	assert.Error(t, err)
}
