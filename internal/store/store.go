package store

import (
	"sort"
	"sync"

	"FxSentinel/internal/model"
)

// Store keeps the authoritative in-memory series per instrument.
// The collector is the only writer; analyzers read copies after a cycle.
type Store struct {
	mu        sync.RWMutex
	series    map[model.Instrument]model.Series
	maxPoints int
}

// New creates an empty Store. maxPoints <= 0 keeps every point.
func New(maxPoints int) *Store {
	return &Store{series: make(map[model.Instrument]model.Series), maxPoints: maxPoints}
}

// Merge inserts quotes for inst, overwriting any existing quote with the same
// timestamp, and returns the resulting series length.
func (s *Store) Merge(inst model.Instrument, quotes []model.Quote) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.series[inst]
	merged := make(model.Series, 0, len(cur)+len(quotes))
	merged = append(merged, cur...)
	for _, q := range quotes {
		q.Instrument = inst
		merged = append(merged, q)
	}
	// stable: for equal timestamps the later write stays after the earlier one
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Time.Before(merged[j].Time) })

	out := merged[:0]
	for _, q := range merged {
		if n := len(out); n > 0 && out[n-1].Time.Equal(q.Time) {
			out[n-1] = q
			continue
		}
		out = append(out, q)
	}

	if s.maxPoints > 0 && len(out) > s.maxPoints {
		out = out[len(out)-s.maxPoints:]
	}
	s.series[inst] = out
	return len(out)
}

// Latest returns the most recent quote for inst; false means not found.
func (s *Store) Latest(inst model.Instrument) (model.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser := s.series[inst]
	if len(ser) == 0 {
		return model.Quote{}, false
	}
	return ser[len(ser)-1], true
}

// Window returns a copy of the n most recent quotes, fewer if unavailable.
// n <= 0 returns the whole series.
func (s *Store) Window(inst model.Instrument, n int) model.Series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ser := s.series[inst]
	if n > 0 && len(ser) > n {
		ser = ser[len(ser)-n:]
	}
	out := make(model.Series, len(ser))
	copy(out, ser)
	return out
}

// Len returns the number of stored quotes for inst.
func (s *Store) Len(inst model.Instrument) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[inst])
}

// Instruments lists instruments that hold at least one quote, sorted.
func (s *Store) Instruments() []model.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Instrument, 0, len(s.series))
	for inst, ser := range s.series {
		if len(ser) > 0 {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
