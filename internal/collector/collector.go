package collector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"

	"FxSentinel/internal/clock"
	"FxSentinel/internal/metrics"
	"FxSentinel/internal/model"
	"FxSentinel/internal/quota"
	"FxSentinel/internal/store"
)

// Fetch modes.
const (
	ModeDaily = "daily"
	ModeQuote = "quote"
)

// Options tunes a Collector. Zero values fall back to the defaults below.
type Options struct {
	Mode        string
	MaxRetries  int // total attempts per instrument, first try included
	BackoffBase time.Duration
	BackoffMax  time.Duration

	Clock   clock.Clock
	Logger  zerolog.Logger
	Metrics *metrics.Recorder
}

// CycleResult holds the outcome of every requested instrument in request order.
type CycleResult struct {
	Order    []model.Instrument
	Outcomes map[model.Instrument]model.FetchOutcome
}

func newCycleResult(n int) CycleResult {
	return CycleResult{
		Order:    make([]model.Instrument, 0, n),
		Outcomes: make(map[model.Instrument]model.FetchOutcome, n),
	}
}

func (r *CycleResult) add(o model.FetchOutcome) {
	if _, dup := r.Outcomes[o.Instrument]; !dup {
		r.Order = append(r.Order, o.Instrument)
	}
	r.Outcomes[o.Instrument] = o
}

// Count returns how many outcomes have the given status.
func (r CycleResult) Count(status model.FetchStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Collector pulls quotes for the configured instruments through the quota
// gate and merges successful results into the store.
type Collector struct {
	transport Transport
	gate      *quota.Gate
	store     *store.Store
	opts      Options
	log       zerolog.Logger
}

// NewCollector creates a new Collector.
func NewCollector(t Transport, g *quota.Gate, s *store.Store, opts Options) *Collector {
	if opts.Mode == "" {
		opts.Mode = ModeDaily
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 2 * time.Second
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Collector{
		transport: t,
		gate:      g,
		store:     s,
		opts:      opts,
		log:       opts.Logger.With().Str("component", "collector").Logger(),
	}
}

// RunCycle fetches every instrument in priority order. Quota exhaustion and
// fetch failures are reported as outcomes; the only error returned is the
// context's, together with the partial result.
func (c *Collector) RunCycle(ctx context.Context, instruments []model.Instrument) (CycleResult, error) {
	res := newCycleResult(len(instruments))
	exhausted := false

	for i, inst := range instruments {
		if exhausted {
			c.finish(&res, c.outcome(inst, model.FetchSkippedQuota, 0, "daily quota exhausted"))
			continue
		}
		if err := ctx.Err(); err != nil {
			c.cancelRemaining(&res, instruments[i:])
			return res, err
		}

		out, stop, err := c.fetchInstrument(ctx, inst)
		c.finish(&res, out)
		if err != nil {
			c.cancelRemaining(&res, instruments[i+1:])
			return res, err
		}
		if stop {
			exhausted = true
			c.log.Warn().Str("instrument", string(inst)).Msg("daily quota exhausted, skipping remaining instruments")
		}
	}

	minute, day := c.gate.Usage()
	c.opts.Metrics.RecordQuotaUsage(minute, day)
	c.log.Info().
		Int("success", res.Count(model.FetchSuccess)).
		Int("transient", res.Count(model.FetchTransientFailure)).
		Int("permanent", res.Count(model.FetchPermanentFailure)).
		Int("skipped", res.Count(model.FetchSkippedQuota)).
		Int("quota_day", day).
		Msg("fetch cycle complete")
	return res, nil
}

// fetchInstrument runs the acquire/fetch/retry loop for one instrument.
// stop is set when the daily quota ran out. A non-nil error is always a
// context error.
func (c *Collector) fetchInstrument(ctx context.Context, inst model.Instrument) (out model.FetchOutcome, stop bool, err error) {
	b := &backoff.Backoff{
		Min:    c.opts.BackoffBase,
		Max:    c.opts.BackoffMax,
		Factor: 2,
	}
	attempts := 0
	var lastErr error

	for attempts < c.opts.MaxRetries {
		if err := ctx.Err(); err != nil {
			return c.outcome(inst, model.FetchCancelled, attempts, err.Error()), false, err
		}

		d := c.gate.TryAcquire()
		switch d.Verdict {
		case quota.Wait:
			c.opts.Metrics.RecordQuotaWait()
			c.log.Debug().Str("instrument", string(inst)).Dur("wait", d.Wait).Msg("minute quota full, waiting")
			if err := c.opts.Clock.Sleep(ctx, d.Wait); err != nil {
				return c.outcome(inst, model.FetchCancelled, attempts, err.Error()), false, err
			}
			continue
		case quota.DailyExhausted:
			if attempts > 0 {
				return c.outcome(inst, model.FetchTransientFailure, attempts, reason(lastErr, "daily quota exhausted")), true, nil
			}
			return c.outcome(inst, model.FetchSkippedQuota, 0, "daily quota exhausted"), true, nil
		}

		attempts++
		c.opts.Metrics.RecordAttempt(string(inst))
		quotes, err := c.fetch(ctx, inst)
		if err == nil {
			c.store.Merge(inst, quotes)
			if latest, ok := c.store.Latest(inst); ok {
				c.opts.Metrics.RecordLastRate(string(inst), latest.Rate)
			}
			o := c.outcome(inst, model.FetchSuccess, attempts, "")
			o.Points = len(quotes)
			return o, false, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return c.outcome(inst, model.FetchCancelled, attempts, ctxErr.Error()), false, ctxErr
		}
		if IsPermanent(err) {
			return c.outcome(inst, model.FetchPermanentFailure, attempts, err.Error()), false, nil
		}

		lastErr = err
		if attempts >= c.opts.MaxRetries {
			break
		}
		wait := b.Duration()
		c.log.Warn().Err(err).Str("instrument", string(inst)).Int("attempt", attempts).Dur("backoff", wait).Msg("fetch failed, retrying")
		if err := c.opts.Clock.Sleep(ctx, wait); err != nil {
			return c.outcome(inst, model.FetchCancelled, attempts, err.Error()), false, err
		}
	}
	return c.outcome(inst, model.FetchTransientFailure, attempts, reason(lastErr, "retries exhausted")), false, nil
}

func (c *Collector) fetch(ctx context.Context, inst model.Instrument) (model.Series, error) {
	if c.opts.Mode == ModeQuote {
		q, err := c.transport.FetchQuote(ctx, inst)
		if err != nil {
			return nil, fmt.Errorf("fetch quote %s: %w", inst, err)
		}
		if err := checkRates(model.Series{q}); err != nil {
			return nil, fmt.Errorf("fetch quote %s: %w", inst, err)
		}
		return model.Series{q}, nil
	}
	s, err := c.transport.FetchDaily(ctx, inst)
	if err != nil {
		return nil, fmt.Errorf("fetch daily %s: %w", inst, err)
	}
	if err := checkRates(s); err != nil {
		return nil, fmt.Errorf("fetch daily %s: %w", inst, err)
	}
	return s, nil
}

// checkRates rejects quotes no analyzer can use.
func checkRates(s model.Series) error {
	for _, q := range s {
		if !(q.Rate > 0) || math.IsInf(q.Rate, 0) {
			return Permanentf("invalid rate %v at %s", q.Rate, q.Time.Format(time.DateOnly))
		}
	}
	return nil
}

func (c *Collector) outcome(inst model.Instrument, status model.FetchStatus, attempts int, why string) model.FetchOutcome {
	return model.FetchOutcome{
		Instrument: inst,
		Status:     status,
		Attempts:   attempts,
		Reason:     why,
		FetchedAt:  c.opts.Clock.Now(),
	}
}

func (c *Collector) finish(res *CycleResult, o model.FetchOutcome) {
	res.add(o)
	c.opts.Metrics.RecordOutcome(string(o.Instrument), string(o.Status))

	level := zerolog.InfoLevel
	switch o.Status {
	case model.FetchTransientFailure, model.FetchPermanentFailure:
		level = zerolog.ErrorLevel
	case model.FetchSkippedQuota, model.FetchCancelled:
		level = zerolog.WarnLevel
	}
	c.log.WithLevel(level).Str("instrument", string(o.Instrument)).
		Str("status", string(o.Status)).
		Int("attempts", o.Attempts).
		Int("points", o.Points).
		Str("reason", o.Reason).
		Msg("fetch outcome")
}

func (c *Collector) cancelRemaining(res *CycleResult, rest []model.Instrument) {
	for _, inst := range rest {
		c.finish(res, c.outcome(inst, model.FetchCancelled, 0, "cycle cancelled"))
	}
}

func reason(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return err.Error()
}
