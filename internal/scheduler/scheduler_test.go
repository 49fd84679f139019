package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FxSentinel/internal/analysis"
	"FxSentinel/internal/clock"
	"FxSentinel/internal/collector"
	"FxSentinel/internal/model"
	"FxSentinel/internal/quota"
	"FxSentinel/internal/recorder"
	"FxSentinel/internal/store"
)

type recordingSink struct {
	mu      sync.Mutex
	reports []*model.AnalysisReport
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Consume(_ context.Context, rep *model.AnalysisReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
	return nil
}

type failingSink struct{}

func (failingSink) Name() string { return "failing" }
func (failingSink) Consume(context.Context, *model.AnalysisReport) error {
	return errors.New("disk full")
}

type harness struct {
	clock     *clock.Fake
	gate      *quota.Gate
	store     *store.Store
	transport *collector.MockTransport
	sink      *recordingSink
	sched     *Scheduler
	ledger    string
}

var pairs = []model.Instrument{"EUR/USD", "GBP/USD", "JPY/USD", "AUD/USD", "USD/JPY", "EUR/JPY", "EUR/GBP"}

func newHarness(t *testing.T, perMinute, perDay int) *harness {
	t.Helper()
	fc := clock.NewFake(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	h := &harness{
		clock:  fc,
		gate:   quota.NewGate(fc, perMinute, perDay),
		store:  store.New(1000),
		sink:   &recordingSink{},
		ledger: filepath.Join(t.TempDir(), "quota.json"),
	}
	all := append([]model.Instrument{"BTC"}, pairs...)
	h.transport = collector.NewMockTransport(fc, collector.DefaultMockRates(all))
	h.transport.Days = 40

	col := collector.NewCollector(h.transport, h.gate, h.store, collector.Options{
		MaxRetries: 3, BackoffBase: time.Second, BackoffMax: time.Minute,
		Clock: fc, Logger: zerolog.Nop(),
	})
	engine := analysis.NewEngine(h.store, analysis.Config{
		Correlation:    analysis.CorrelationConfig{Window: 10, Epsilon: 0.05, Tolerance: 12 * time.Hour},
		TrendWindow:    7,
		TrendThreshold: 0.005,
		Arbitrage:      analysis.ArbitrageConfig{MinDeviation: 0.001, Staleness: 96 * time.Hour, AllowInverse: true},
	}, zerolog.Nop())

	h.sched = NewScheduler(context.Background(), Options{
		Collector:   col,
		Engine:      engine,
		Gate:        h.gate,
		Clock:       fc,
		Instruments: pairs,
		Reference:   "BTC",
		LedgerFile:  h.ledger,
		Sinks:       []ReportSink{failingSink{}, h.sink, LogSink{Log: zerolog.Nop()}},
		Logger:      zerolog.Nop(),
	})
	return h
}

func TestRunOnce_EndToEnd(t *testing.T) {
	h := newHarness(t, 5, 500)
	h.transport.FailNext("EUR/GBP", collector.Permanentf("Invalid API call"))

	rep, err := h.sched.RunOnce(context.Background())
	require.NoError(t, err)

	// eight calls against a five-per-minute budget must wait at least once
	waited := false
	for _, d := range h.clock.Sleeps() {
		if d > 0 {
			waited = true
		}
	}
	assert.True(t, waited)

	assert.Equal(t, model.Instrument("BTC"), rep.Instruments[0])
	assert.Len(t, rep.Instruments, 8)
	assert.Len(t, rep.Trends, 8)
	assert.Len(t, rep.Correlations, 7)
	assert.Equal(t, model.FetchPermanentFailure, rep.Outcomes["EUR/GBP"].Status)
	assert.Equal(t, model.StatusExcluded, rep.Trends["EUR/GBP"].Status)
	assert.Equal(t, model.StatusOK, rep.Correlations["EUR/USD"].Current.Status)

	stored := h.store.Instruments()
	assert.Len(t, stored, 7)
	assert.NotContains(t, stored, model.Instrument("EUR/GBP"))

	// the failing sink does not stop later sinks
	require.Len(t, h.sink.reports, 1)
	assert.Same(t, rep, h.sink.reports[0])
	assert.Same(t, rep, h.sched.LastReport())

	ledger, err := quota.LoadLedger(h.ledger)
	require.NoError(t, err)
	assert.Len(t, ledger.Calls, 8)
}

func TestRunOnce_QuotaExhaustedStillReports(t *testing.T) {
	h := newHarness(t, 5, 3)

	rep, err := h.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, rep.CountByStatus()[model.FetchSuccess])
	assert.Equal(t, 5, rep.CountByStatus()[model.FetchSkippedQuota])
	assert.Len(t, rep.Trends, 8)
	assert.Equal(t, model.StatusInsufficientData, rep.Trends["EUR/GBP"].Status)
}

func TestRunOnce_SkipsWhenBusy(t *testing.T) {
	h := newHarness(t, 5, 500)
	h.sched.runMu.Lock()
	_, err := h.sched.RunOnce(context.Background())
	h.sched.runMu.Unlock()

	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Zero(t, h.transport.Calls("BTC"))
}

func TestRunOnce_Cancelled(t *testing.T) {
	h := newHarness(t, 5, 500)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := h.sched.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, rep)
	assert.Empty(t, h.sink.reports)
}

func TestHandleCommand(t *testing.T) {
	h := newHarness(t, 50, 500)
	ctx := context.Background()

	assert.Equal(t, "No report yet.", h.sched.HandleCommand(ctx, "/report"))
	assert.Empty(t, h.sched.HandleCommand(ctx, "/run"))
	assert.Contains(t, h.sched.HandleCommand(ctx, "/report"), "FxSentinel report")

	status := h.sched.HandleCommand(ctx, "/STATUS")
	assert.Contains(t, status, "8 in the last 24h")
	assert.Contains(t, status, "BTC, EUR/USD")
	assert.True(t, strings.HasPrefix(h.sched.HandleCommand(ctx, "hello"), "Commands:"))
}

func TestHandleCommand_History(t *testing.T) {
	h := newHarness(t, 50, 500)
	ctx := context.Background()

	assert.Equal(t, "History is not recorded.", h.sched.HandleCommand(ctx, "/history EUR/USD"))

	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "fx.db"), zerolog.Nop())
	require.NoError(t, err)
	defer rec.Close()
	h.sched.opts.Sinks = append(h.sched.opts.Sinks, rec)
	h.sched.opts.History = rec

	assert.Equal(t, "No history for EUR/USD yet.", h.sched.HandleCommand(ctx, "/history eur/usd"))

	_, err = h.sched.RunOnce(ctx)
	require.NoError(t, err)
	h.clock.Advance(4 * time.Hour)
	_, err = h.sched.RunOnce(ctx)
	require.NoError(t, err)

	reply := h.sched.HandleCommand(ctx, "/history EUR/USD")
	assert.Contains(t, reply, "<b>EUR/USD</b> last 2 runs")
	assert.Contains(t, reply, "2024-03-01 12:")

	assert.Equal(t, "Usage: /history EUR/USD", h.sched.HandleCommand(ctx, "/history"))
	assert.True(t, strings.HasPrefix(h.sched.HandleCommand(ctx, "/history EUR-USD"), "Unknown instrument"))
}

func TestRegister(t *testing.T) {
	h := newHarness(t, 5, 500)
	require.NoError(t, h.sched.Register("0 0 */4 * * *"))
	assert.Len(t, h.sched.Cron.Entries(), 1)
	assert.Error(t, h.sched.Register("every now and then"))
}
