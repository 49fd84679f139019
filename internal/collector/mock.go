package collector

import (
	"context"
	"sync"
	"time"

	"FxSentinel/internal/clock"
	"FxSentinel/internal/model"
)

// MockTransport returns controllable data for development and testing.
// Errors queued per instrument are returned first, one per call.
type MockTransport struct {
	Clock  clock.Clock
	Days   int
	Rates  map[model.Instrument]float64
	Series map[model.Instrument]model.Series

	mu    sync.Mutex
	errs  map[model.Instrument][]error
	calls map[model.Instrument]int
}

// NewMockTransport seeds a mock with base rates per instrument.
func NewMockTransport(c clock.Clock, rates map[model.Instrument]float64) *MockTransport {
	if c == nil {
		c = clock.Real{}
	}
	return &MockTransport{
		Clock:  c,
		Days:   100,
		Rates:  rates,
		Series: map[model.Instrument]model.Series{},
		errs:   map[model.Instrument][]error{},
		calls:  map[model.Instrument]int{},
	}
}

func (m *MockTransport) Name() string { return "mock" }

// FailNext queues errors to be returned by the next calls for inst.
func (m *MockTransport) FailNext(inst model.Instrument, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[inst] = append(m.errs[inst], errs...)
}

// Calls returns how many times inst was requested.
func (m *MockTransport) Calls(inst model.Instrument) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[inst]
}

func (m *MockTransport) FetchDaily(ctx context.Context, inst model.Instrument) (model.Series, error) {
	if err := m.begin(ctx, inst); err != nil {
		return nil, err
	}
	if s, ok := m.Series[inst]; ok {
		out := make(model.Series, len(s))
		copy(out, s)
		return out, nil
	}
	rate, ok := m.Rates[inst]
	if !ok {
		return nil, Permanentf("mock: unknown instrument %s", inst)
	}
	return generateMockSeries(inst, rate, m.Days, m.Clock.Now()), nil
}

func (m *MockTransport) FetchQuote(ctx context.Context, inst model.Instrument) (model.Quote, error) {
	if err := m.begin(ctx, inst); err != nil {
		return model.Quote{}, err
	}
	if s, ok := m.Series[inst]; ok && len(s) > 0 {
		return s[len(s)-1], nil
	}
	rate, ok := m.Rates[inst]
	if !ok {
		return model.Quote{}, Permanentf("mock: unknown instrument %s", inst)
	}
	return model.Quote{Instrument: inst, Time: m.Clock.Now(), Rate: rate}, nil
}

func (m *MockTransport) begin(ctx context.Context, inst model.Instrument) error {
	if err := ctx.Err(); err != nil {
		return &TransientError{Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[inst]++
	if q := m.errs[inst]; len(q) > 0 {
		m.errs[inst] = q[1:]
		return q[0]
	}
	return nil
}

// generateMockSeries produces a gently drifting daily series ending at now.
func generateMockSeries(inst model.Instrument, base float64, days int, now time.Time) model.Series {
	if days <= 0 {
		days = 1
	}
	end := now.UTC().Truncate(24 * time.Hour)
	s := make(model.Series, days)
	for i := 0; i < days; i++ {
		// small deterministic wobble so returns are never constant
		p := base * (1 + float64(i-days/2)*0.0005 + float64(i%3-1)*0.001)
		s[i] = model.Quote{
			Instrument: inst,
			Time:       end.AddDate(0, 0, -(days - 1 - i)),
			Rate:       p,
			Open:       p * 0.999,
			High:       p * 1.002,
			Low:        p * 0.997,
		}
	}
	return s
}

// DefaultMockRates seeds the mock provider with plausible levels.
func DefaultMockRates(instruments []model.Instrument) map[model.Instrument]float64 {
	known := map[model.Instrument]float64{
		"EUR/USD": 1.085, "GBP/USD": 1.27, "JPY/USD": 0.0067, "AUD/USD": 0.66,
		"USD/JPY": 149.5, "EUR/JPY": 162.2, "EUR/GBP": 0.854, "BTC": 67000,
	}
	out := make(map[model.Instrument]float64, len(instruments))
	for i, inst := range instruments {
		if r, ok := known[inst]; ok {
			out[inst] = r
			continue
		}
		out[inst] = 1 + float64(i)*0.1
	}
	return out
}

var _ Transport = (*MockTransport)(nil)
