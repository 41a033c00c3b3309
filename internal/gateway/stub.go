package gateway

import (
	"context"
	"fmt"
	"sync"

	"quantbot-go/internal/indicator"
	"quantbot-go/internal/trade"
)

// Stub is a deterministic in-memory gateway for tests and offline work.
// Prices are scripted per pair: each CurrentPrice call consumes the next
// value, holding on the last one when the script runs out.
type Stub struct {
	mu      sync.Mutex
	scripts map[string][]float64
	cursor  map[string]int
	bars    map[string][]indicator.Bar
	funding float64
	fail    map[string]int
	orders  int
}

// NewStub builds an empty stub gateway.
func NewStub() *Stub {
	return &Stub{
		scripts: make(map[string][]float64),
		cursor:  make(map[string]int),
		bars:    make(map[string][]indicator.Bar),
		fail:    make(map[string]int),
	}
}

// ScriptPrices sets the price sequence CurrentPrice walks for a pair.
func (s *Stub) ScriptPrices(pair string, prices ...float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[pair] = prices
	s.cursor[pair] = 0
}

// SetBars fixes the historical bars returned for a pair (all timeframes).
func (s *Stub) SetBars(pair string, bars []indicator.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[pair] = bars
}

// SetFundingRate fixes the funding rate for every pair.
func (s *Stub) SetFundingRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funding = rate
}

// FailNextPriceReads makes the next n CurrentPrice calls for pair fail.
func (s *Stub) FailNextPriceReads(pair string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[pair] = n
}

// CurrentPrice implements Gateway.
func (s *Stub) CurrentPrice(_ context.Context, pair string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[pair] > 0 {
		s.fail[pair]--
		return 0, fmt.Errorf("stub: transient price failure for %s", pair)
	}
	script := s.scripts[pair]
	if len(script) == 0 {
		return 0, fmt.Errorf("stub: no price scripted for %s", pair)
	}
	i := s.cursor[pair]
	if i >= len(script) {
		i = len(script) - 1
	} else {
		s.cursor[pair]++
	}
	return script[i], nil
}

// HistoricalBars implements Gateway.
func (s *Stub) HistoricalBars(_ context.Context, pair string, _ trade.Timeframe, count int) ([]indicator.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bars, ok := s.bars[pair]
	if !ok {
		return nil, fmt.Errorf("stub: no bars for %s", pair)
	}
	if count > 0 && len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	out := make([]indicator.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

// FundingRate implements Gateway.
func (s *Stub) FundingRate(_ context.Context, _ string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.funding, nil
}

// PlaceOrder implements Gateway.
func (s *Stub) PlaceOrder(_ context.Context, _ OrderRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders++
	return fmt.Sprintf("stub-%d", s.orders), nil
}

// CancelOrder implements Gateway.
func (s *Stub) CancelOrder(_ context.Context, _ string) error { return nil }

// Orders reports how many orders the stub accepted.
func (s *Stub) Orders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders
}
