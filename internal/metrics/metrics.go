package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes acquisition and analysis counters. A nil *Recorder is a no-op.
type Recorder struct {
	registry *prometheus.Registry

	fetchOutcomes *prometheus.CounterVec
	fetchAttempts *prometheus.CounterVec
	quotaWaits    prometheus.Counter
	quotaUsage    *prometheus.GaugeVec
	lastRate      *prometheus.GaugeVec
	opportunities prometheus.Gauge
	maxDeviation  prometheus.Gauge
	sinkErrors    *prometheus.CounterVec
	runDuration   prometheus.Histogram
	runsSkipped   prometheus.Counter
}

// New creates a Recorder backed by its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		fetchOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxsentinel_fetch_outcomes_total",
				Help: "Fetch outcomes per instrument and status",
			},
			[]string{"instrument", "status"},
		),
		fetchAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxsentinel_fetch_attempts_total",
				Help: "Transport calls issued per instrument",
			},
			[]string{"instrument"},
		),
		quotaWaits: f.NewCounter(prometheus.CounterOpts{
			Name: "fxsentinel_quota_waits_total",
			Help: "Times the per-minute quota forced a wait",
		}),
		quotaUsage: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxsentinel_quota_usage",
				Help: "Calls recorded in the sliding quota windows",
			},
			[]string{"window"},
		),
		lastRate: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxsentinel_last_rate",
				Help: "Most recent rate stored per instrument",
			},
			[]string{"instrument"},
		),
		opportunities: f.NewGauge(prometheus.GaugeOpts{
			Name: "fxsentinel_arbitrage_opportunities",
			Help: "Arbitrage opportunities found in the last report",
		}),
		maxDeviation: f.NewGauge(prometheus.GaugeOpts{
			Name: "fxsentinel_arbitrage_max_deviation",
			Help: "Largest cycle deviation in the last report",
		}),
		sinkErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxsentinel_sink_errors_total",
				Help: "Report sink failures",
			},
			[]string{"sink"},
		),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fxsentinel_run_duration_seconds",
			Help:    "Duration of a full acquisition and analysis run",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		runsSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "fxsentinel_runs_skipped_total",
			Help: "Scheduled runs skipped because a run was in progress",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) RecordOutcome(instrument, status string) {
	if r == nil {
		return
	}
	r.fetchOutcomes.WithLabelValues(instrument, status).Inc()
}

func (r *Recorder) RecordAttempt(instrument string) {
	if r == nil {
		return
	}
	r.fetchAttempts.WithLabelValues(instrument).Inc()
}

func (r *Recorder) RecordQuotaWait() {
	if r == nil {
		return
	}
	r.quotaWaits.Inc()
}

func (r *Recorder) RecordQuotaUsage(minute, day int) {
	if r == nil {
		return
	}
	r.quotaUsage.WithLabelValues("minute").Set(float64(minute))
	r.quotaUsage.WithLabelValues("day").Set(float64(day))
}

func (r *Recorder) RecordLastRate(instrument string, rate float64) {
	if r == nil {
		return
	}
	r.lastRate.WithLabelValues(instrument).Set(rate)
}

func (r *Recorder) RecordOpportunities(count int, maxDeviation float64) {
	if r == nil {
		return
	}
	r.opportunities.Set(float64(count))
	r.maxDeviation.Set(maxDeviation)
}

func (r *Recorder) RecordSinkError(sink string) {
	if r == nil {
		return
	}
	r.sinkErrors.WithLabelValues(sink).Inc()
}

func (r *Recorder) RecordRunDuration(seconds float64) {
	if r == nil {
		return
	}
	r.runDuration.Observe(seconds)
}

func (r *Recorder) RecordRunSkipped() {
	if r == nil {
		return
	}
	r.runsSkipped.Inc()
}
