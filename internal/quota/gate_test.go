package quota

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"FxSentinel/internal/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func TestGate_SlidingMinuteNeverExceeded(t *testing.T) {
	const perMinute = 5
	clk := clock.NewFake(t0)
	g := NewGate(clk, perMinute, 10_000)
	rng := rand.New(rand.NewSource(42))

	var granted []time.Time
	for i := 0; i < 400; i++ {
		d := g.TryAcquire()
		switch d.Verdict {
		case Granted:
			granted = append(granted, clk.Now())
		case Wait:
			require.Greater(t, d.Wait, time.Duration(0))
			require.LessOrEqual(t, d.Wait, time.Minute)
		default:
			t.Fatalf("unexpected verdict %v", d.Verdict)
		}
		clk.Advance(time.Duration(rng.Intn(20_000)) * time.Millisecond)
	}

	require.NotEmpty(t, granted)
	for i, start := range granted {
		n := 0
		for _, ts := range granted[i:] {
			if ts.Sub(start) < time.Minute {
				n++
			}
		}
		assert.LessOrEqual(t, n, perMinute, "window starting at %v", start)
	}
}

func TestGate_WaitUntilOldestLeaves(t *testing.T) {
	clk := clock.NewFake(t0)
	g := NewGate(clk, 2, 100)

	require.Equal(t, Granted, g.TryAcquire().Verdict)
	clk.Advance(10 * time.Second)
	require.Equal(t, Granted, g.TryAcquire().Verdict)
	clk.Advance(5 * time.Second)

	d := g.TryAcquire()
	require.Equal(t, Wait, d.Verdict)
	assert.Equal(t, 45*time.Second, d.Wait)

	clk.Advance(d.Wait)
	assert.Equal(t, Granted, g.TryAcquire().Verdict)
}

func TestGate_DailyExhaustedUntilWindowRolls(t *testing.T) {
	clk := clock.NewFake(t0)
	g := NewGate(clk, 100, 3)

	for i := 0; i < 3; i++ {
		require.Equal(t, Granted, g.TryAcquire().Verdict)
		clk.Advance(time.Hour)
	}
	for i := 0; i < 5; i++ {
		assert.Equal(t, DailyExhausted, g.TryAcquire().Verdict)
		clk.Advance(time.Hour)
	}

	// first grant was at t0; it leaves the window at t0+24h
	clk.Set(t0.Add(24 * time.Hour))
	assert.Equal(t, Granted, g.TryAcquire().Verdict)
	assert.Equal(t, DailyExhausted, g.TryAcquire().Verdict)
}

func TestGate_NonPositiveLimitsFailClosed(t *testing.T) {
	tests := []struct {
		name           string
		minute, perDay int
	}{
		{"zero minute", 0, 10},
		{"zero day", 5, 0},
		{"negative", -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGate(clock.NewFake(t0), tt.minute, tt.perDay)
			for i := 0; i < 3; i++ {
				assert.Equal(t, DailyExhausted, g.TryAcquire().Verdict)
			}
		})
	}
}

func TestGate_Usage(t *testing.T) {
	clk := clock.NewFake(t0)
	g := NewGate(clk, 5, 50)
	g.TryAcquire()
	clk.Advance(2 * time.Minute)
	g.TryAcquire()
	g.TryAcquire()

	minute, day := g.Usage()
	assert.Equal(t, 2, minute)
	assert.Equal(t, 3, day)
}

func TestLedger_RestoresDailyBudget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.json")
	clk := clock.NewFake(t0)

	g := NewGate(clk, 100, 2)
	require.Equal(t, Granted, g.TryAcquire().Verdict)
	require.Equal(t, Granted, g.TryAcquire().Verdict)
	require.NoError(t, SaveLedger(path, g))

	l, err := LoadLedger(path)
	require.NoError(t, err)
	require.Len(t, l.Calls, 2)

	restarted := NewGate(clk, 100, 2)
	restarted.Restore(l.Calls)
	assert.Equal(t, DailyExhausted, restarted.TryAcquire().Verdict)
}

func TestLoadLedger_MissingFile(t *testing.T) {
	l, err := LoadLedger(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, l.Calls)
}
