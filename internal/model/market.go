package model

import (
	"fmt"
	"strings"
	"time"
)

// Instrument identifies a currency pair ("EUR/USD") or a single asset ("BTC").
type Instrument string

// IsPair reports whether the instrument is quoted as BASE/QUOTE.
func (i Instrument) IsPair() bool {
	base, quote, ok := strings.Cut(string(i), "/")
	return ok && base != "" && quote != "" && !strings.Contains(quote, "/")
}

// Base returns the base currency of a pair, or the asset itself.
func (i Instrument) Base() string {
	base, _, _ := strings.Cut(string(i), "/")
	return base
}

// Quote returns the quote currency of a pair, or "" for an asset.
func (i Instrument) Quote() string {
	_, quote, _ := strings.Cut(string(i), "/")
	return quote
}

// Inverse returns QUOTE/BASE for a pair.
func (i Instrument) Inverse() Instrument {
	if !i.IsPair() {
		return i
	}
	return NewPair(i.Quote(), i.Base())
}

func (i Instrument) String() string { return string(i) }

// NewPair builds a pair instrument from two currency codes.
func NewPair(base, quote string) Instrument {
	return Instrument(strings.ToUpper(base) + "/" + strings.ToUpper(quote))
}

// ParseInstrument normalises and validates an instrument identifier.
func ParseInstrument(s string) (Instrument, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("empty instrument")
	}
	if !strings.Contains(s, "/") {
		if !isCode(s) {
			return "", fmt.Errorf("invalid asset %q", s)
		}
		return Instrument(s), nil
	}
	inst := Instrument(s)
	if !inst.IsPair() || !isCode(inst.Base()) || !isCode(inst.Quote()) {
		return "", fmt.Errorf("invalid pair %q", s)
	}
	if inst.Base() == inst.Quote() {
		return "", fmt.Errorf("pair %q quotes a currency against itself", s)
	}
	return inst, nil
}

func isCode(s string) bool {
	if len(s) < 2 || len(s) > 10 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Quote is a single observation of an instrument.
// Open, High and Low are optional; zero means the provider did not supply them.
type Quote struct {
	Instrument Instrument
	Time       time.Time
	Rate       float64
	Open       float64
	High       float64
	Low        float64
}

// Series holds quotes for one instrument ordered by time ascending.
type Series []Quote

// Rates extracts the rate of every quote.
func (s Series) Rates() []float64 {
	rates := make([]float64, len(s))
	for i, q := range s {
		rates[i] = q.Rate
	}
	return rates
}
