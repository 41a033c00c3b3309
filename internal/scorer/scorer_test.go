package scorer

import (
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"quantbot-go/internal/config"
	"quantbot-go/internal/indicator"
	"quantbot-go/internal/trade"
)

func strat(indicators ...string) config.Strategy {
	return config.Strategy{
		Name:       "test",
		Indicators: indicators,
		Adaptive:   config.Adaptive{ScoreMin: 0.1, MLConfidenceMin: 0.2},
	}
}

func bullishValues() indicator.Values {
	return indicator.Values{
		"close":       {99, 110},
		"EMA12":       {100, 108},
		"EMA50":       {101, 100},
		"RSI":         {50, 30},
		"MACD":        {-0.5, 0.5},
		"MACD_Signal": {0, 0},
		"MA20":        {100, 100},
	}
}

func bearishValues() indicator.Values {
	return indicator.Values{
		"close":       {101, 90},
		"EMA12":       {101, 95},
		"EMA50":       {100, 100},
		"RSI":         {55, 70},
		"MACD":        {0.5, -0.5},
		"MACD_Signal": {0, 0},
		"MA20":        {100, 100},
	}
}

func TestScoreBullish(t *testing.T) {
	s := New(zerolog.Nop(), nil)
	eval := s.Score(bullishValues(), strat(IndEMA, IndRSI, IndMACD, IndSwing))
	if eval.Direction != trade.Long {
		t.Fatalf("expected LONG, got %q", eval.Direction)
	}
	// EMA 0.3 + RSI 0.3 + MACD cross 0.3 + swing 0.4
	if math.Abs(eval.Score-1.3) > 1e-9 {
		t.Fatalf("unexpected score: %f", eval.Score)
	}
	if len(eval.Reasons) != 4 || len(eval.Indicators) != 4 {
		t.Fatalf("expected 4 reasons and indicators, got %d/%d", len(eval.Reasons), len(eval.Indicators))
	}
}

func TestScoreBearish(t *testing.T) {
	s := New(zerolog.Nop(), nil)
	eval := s.Score(bearishValues(), strat(IndEMA, IndRSI, IndMACD, IndSwing))
	if eval.Direction != trade.Short {
		t.Fatalf("expected SHORT, got %q", eval.Direction)
	}
	if math.Abs(eval.Score-0.9) > 1e-9 {
		t.Fatalf("unexpected score: %f", eval.Score)
	}
}

func TestScoreBelowThresholdIsNoSignal(t *testing.T) {
	s := New(zerolog.Nop(), nil)
	cfg := strat(IndRSI)
	cfg.Adaptive.ScoreMin = 0.5
	eval := s.Score(bullishValues(), cfg)
	if eval.Direction != "" {
		t.Fatalf("expected no signal below threshold, got %q", eval.Direction)
	}
}

func TestScoreMissingSeriesIsNoSignal(t *testing.T) {
	s := New(zerolog.Nop(), nil)
	eval := s.Score(indicator.Values{}, strat(IndEMA, IndRSI, IndMACD, IndSwing))
	if eval.Direction != "" || eval.Score != 0 {
		t.Fatalf("expected no signal on missing series, got %+v", eval)
	}
}

func TestScoreInactiveIndicatorsIgnored(t *testing.T) {
	s := New(zerolog.Nop(), nil)
	eval := s.Score(bullishValues(), strat(IndRSI))
	if eval.Direction != trade.Long {
		t.Fatalf("expected LONG from RSI alone, got %q", eval.Direction)
	}
	if math.Abs(eval.Score-0.3) > 1e-9 {
		t.Fatalf("only RSI should contribute, got %f", eval.Score)
	}
}

// An oversold RSI and a price below its rolling mean pull in opposite
// directions with equal weight; the bullish side takes the contested call.
func TestScoreTieResolvesLong(t *testing.T) {
	s := New(zerolog.Nop(), nil)
	vals := indicator.Values{
		"close": {100, 99},
		"RSI":   {50, 40},
		"MA20":  {100, 100},
	}
	cfg := strat(IndRSI, IndSwing)
	cfg.Adaptive.ScoreMin = 0.3

	eval := s.Score(vals, cfg)
	if eval.Direction != trade.Long {
		t.Fatalf("tied sides should resolve LONG, got %q", eval.Direction)
	}
	if math.Abs(eval.Score-0.6) > 1e-9 {
		t.Fatalf("both sides should contribute to the score, got %f", eval.Score)
	}
}

type fixedPredictor struct{ confidence float64 }

func (p fixedPredictor) Predict([]float64) float64 { return p.confidence }

func TestScorePredictorContribution(t *testing.T) {
	s := New(zerolog.Nop(), fixedPredictor{confidence: 0.8})
	eval := s.Score(bullishValues(), strat(IndRSI))
	if math.Abs(eval.Score-(0.3+0.8*0.3)) > 1e-9 {
		t.Fatalf("predictor delta missing: %f", eval.Score)
	}
	found := false
	for _, r := range eval.Reasons {
		if strings.Contains(r, "model confidence") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected model confidence reason, got %v", eval.Reasons)
	}
}

func TestScorePredictorBelowMinimumIgnored(t *testing.T) {
	s := New(zerolog.Nop(), fixedPredictor{confidence: 0.1})
	eval := s.Score(bullishValues(), strat(IndRSI))
	if math.Abs(eval.Score-0.3) > 1e-9 {
		t.Fatalf("low-confidence predictor should not contribute: %f", eval.Score)
	}
}
