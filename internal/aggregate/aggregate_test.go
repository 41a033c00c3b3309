package aggregate

import (
	"math"
	"reflect"
	"testing"

	"quantbot-go/internal/scorer"
	"quantbot-go/internal/trade"
)

func TestWeightOrdering(t *testing.T) {
	prev := 0.0
	for _, tf := range trade.Timeframes {
		w := Weight(tf)
		if w < prev {
			t.Fatalf("weights should not decrease with granularity: %s=%f < %f", tf, w, prev)
		}
		prev = w
	}
	if Weight(trade.TF1d) != 1.3 || Weight(trade.TF1h) != 1.2 || Weight(trade.TF5m) != 1.0 {
		t.Fatalf("unexpected weights")
	}
}

func TestCombineMajority(t *testing.T) {
	in := map[trade.Timeframe]scorer.Evaluation{
		trade.TF1m: {Direction: trade.Long, Score: 0.5, Reasons: []string{"a"}},
		trade.TF1h: {Direction: trade.Long, Score: 0.6, Reasons: []string{"b"}},
		trade.TF4h: {Direction: trade.Short, Score: 0.9, Reasons: []string{"c"}},
	}
	d := Combine(in)
	if d.Direction != trade.Long {
		t.Fatalf("expected LONG (weight 2.2 vs 1.2), got %q", d.Direction)
	}
	wantConf := 2.2 / 3.4
	if math.Abs(d.Confidence-wantConf) > 1e-9 {
		t.Fatalf("expected confidence %f, got %f", wantConf, d.Confidence)
	}
	wantScore := 0.5*1.0 + 0.6*1.2 + 0.9*1.2
	if math.Abs(d.Score-wantScore) > 1e-9 {
		t.Fatalf("expected score %f, got %f", wantScore, d.Score)
	}
}

func TestCombineTieIsNoSignal(t *testing.T) {
	in := map[trade.Timeframe]scorer.Evaluation{
		trade.TF1h: {Direction: trade.Long, Score: 0.5},
		trade.TF4h: {Direction: trade.Short, Score: 0.5},
	}
	if d := Combine(in); d.Direction != "" {
		t.Fatalf("tie should yield no signal, got %q", d.Direction)
	}
}

func TestCombineEmptyIsNoSignal(t *testing.T) {
	if d := Combine(nil); d.Direction != "" || d.Confidence != 0 {
		t.Fatalf("empty input should yield no signal, got %+v", d)
	}
	in := map[trade.Timeframe]scorer.Evaluation{
		trade.TF1h: {}, // evaluated but produced no signal
	}
	if d := Combine(in); d.Direction != "" {
		t.Fatalf("no-signal evaluations should not vote, got %+v", d)
	}
}

func TestCombineDeterministic(t *testing.T) {
	in := map[trade.Timeframe]scorer.Evaluation{
		trade.TF1m:  {Direction: trade.Long, Score: 0.2, Reasons: []string{"r1"}},
		trade.TF15m: {Direction: trade.Short, Score: 0.4, Reasons: []string{"r2"}},
		trade.TF1d:  {Direction: trade.Short, Score: 0.3, Reasons: []string{"r3"}},
	}
	first := Combine(in)
	for i := 0; i < 50; i++ {
		if got := Combine(in); !reflect.DeepEqual(got, first) {
			t.Fatalf("combine not deterministic: %+v vs %+v", got, first)
		}
	}
}
