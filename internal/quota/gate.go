package quota

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"FxSentinel/internal/clock"
)

const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
)

// Verdict is the admission decision for one provider call.
type Verdict int

const (
	Granted Verdict = iota
	Wait
	DailyExhausted
)

func (v Verdict) String() string {
	switch v {
	case Granted:
		return "granted"
	case Wait:
		return "wait"
	case DailyExhausted:
		return "daily_exhausted"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Decision is returned by TryAcquire. Wait is only set for the Wait verdict.
type Decision struct {
	Verdict Verdict
	Wait    time.Duration
}

// Gate enforces a rolling per-minute and per-day call ceiling.
// A Granted decision records the call immediately.
type Gate struct {
	mu           sync.Mutex
	clock        clock.Clock
	maxPerMinute int
	maxPerDay    int
	calls        []time.Time // ascending, never older than dayWindow after evict
}

// NewGate creates a Gate. Non-positive limits make every request DailyExhausted.
func NewGate(c clock.Clock, maxPerMinute, maxPerDay int) *Gate {
	if c == nil {
		c = clock.Real{}
	}
	return &Gate{clock: c, maxPerMinute: maxPerMinute, maxPerDay: maxPerDay}
}

// TryAcquire decides whether a call may be issued now.
func (g *Gate) TryAcquire() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.maxPerMinute <= 0 || g.maxPerDay <= 0 {
		return Decision{Verdict: DailyExhausted}
	}

	now := g.clock.Now()
	g.evict(now)

	if len(g.calls) >= g.maxPerDay {
		return Decision{Verdict: DailyExhausted}
	}

	inMinute := g.calls[g.minuteStart(now):]
	if len(inMinute) >= g.maxPerMinute {
		// the oldest call that must leave the window before a slot frees up
		oldest := inMinute[len(inMinute)-g.maxPerMinute]
		wait := oldest.Add(minuteWindow).Sub(now)
		if wait <= 0 {
			wait = time.Millisecond
		}
		return Decision{Verdict: Wait, Wait: wait}
	}

	g.calls = append(g.calls, now)
	return Decision{Verdict: Granted}
}

// Usage returns the number of recorded calls in the minute and day windows.
func (g *Gate) Usage() (minute, day int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clock.Now()
	g.evict(now)
	return len(g.calls) - g.minuteStart(now), len(g.calls)
}

// Snapshot returns the recorded call timestamps within the day window.
func (g *Gate) Snapshot() []time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evict(g.clock.Now())
	out := make([]time.Time, len(g.calls))
	copy(out, g.calls)
	return out
}

// Restore replaces the recorded calls, e.g. from a ledger written by a previous process.
func (g *Gate) Restore(calls []time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls[:0:0], calls...)
	sort.Slice(g.calls, func(i, j int) bool { return g.calls[i].Before(g.calls[j]) })
	g.evict(g.clock.Now())
}

func (g *Gate) evict(now time.Time) {
	cutoff := now.Add(-dayWindow)
	i := sort.Search(len(g.calls), func(i int) bool { return g.calls[i].After(cutoff) })
	if i > 0 {
		g.calls = append(g.calls[:0], g.calls[i:]...)
	}
}

func (g *Gate) minuteStart(now time.Time) int {
	cutoff := now.Add(-minuteWindow)
	return sort.Search(len(g.calls), func(i int) bool { return g.calls[i].After(cutoff) })
}
