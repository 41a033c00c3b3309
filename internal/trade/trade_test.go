package trade

import (
	"testing"
	"time"
)

func validCandidate() Candidate {
	return Candidate{
		Pair:       "XYZUSDT",
		Direction:  Long,
		Timeframe:  TF1h,
		Strategy:   "swing",
		Indicators: []string{"RSI", "EMA"},
		EntryPrice: 100,
		Quantity:   1,
		Quality:    0.5,
		Params:     Params{TPPercent: 2, SLPercent: 1, Leverage: 10},
		CreatedAt:  time.Now(),
	}
}

func TestCombinationKeyIndicatorOrder(t *testing.T) {
	a := CombinationKey("XYZUSDT", Long, "swing", TF1h, []string{"RSI", "EMA"})
	b := CombinationKey("XYZUSDT", Long, "swing", TF1h, []string{"EMA", "RSI"})
	if a != b {
		t.Fatalf("key should not depend on indicator order: %s vs %s", a, b)
	}
	if a != "XYZUSDT_LONG_swing_1h_EMA_RSI" {
		t.Fatalf("unexpected key: %s", a)
	}
}

func TestCombinationKeyNoIndicators(t *testing.T) {
	key := CombinationKey("XYZUSDT", Short, "swing", TF5m, nil)
	if key != "XYZUSDT_SHORT_swing_5m_no_indicators" {
		t.Fatalf("unexpected key: %s", key)
	}
}

func TestValidate(t *testing.T) {
	if err := validCandidate().Validate(); err != nil {
		t.Fatalf("valid candidate rejected: %v", err)
	}

	broken := validCandidate()
	broken.Pair = ""
	if err := broken.Validate(); err == nil {
		t.Fatalf("expected missing pair error")
	}

	broken = validCandidate()
	broken.Direction = "SIDEWAYS"
	if err := broken.Validate(); err == nil {
		t.Fatalf("expected direction error")
	}

	broken = validCandidate()
	broken.EntryPrice = 0
	if err := broken.Validate(); err == nil {
		t.Fatalf("expected entry price error")
	}
}

func TestOpenCopiesSlices(t *testing.T) {
	cand := validCandidate()
	rec := Open("id-1", cand, time.Now())
	if rec.State != StateOpen {
		t.Fatalf("expected OPEN state, got %s", rec.State)
	}
	if rec.CombinationKey != cand.CombinationKey() {
		t.Fatalf("combination key not derived")
	}
	cand.Indicators[0] = "mutated"
	if rec.Indicators[0] == "mutated" {
		t.Fatalf("record shares indicator slice with candidate")
	}
}

func TestOpposite(t *testing.T) {
	if Long.Opposite() != Short || Short.Opposite() != Long {
		t.Fatalf("opposite direction broken")
	}
}
