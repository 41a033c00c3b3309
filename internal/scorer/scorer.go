// Package scorer turns indicator values into directional candidates.
package scorer

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"quantbot-go/internal/config"
	"quantbot-go/internal/indicator"
	"quantbot-go/internal/predictor"
	"quantbot-go/internal/trade"
)

// Indicator names a strategy may activate.
const (
	IndEMA   = "EMA"
	IndRSI   = "RSI"
	IndMACD  = "MACD"
	IndSwing = "Swing"
)

// Predictor contributes an optional ML confidence to the technical score.
type Predictor interface {
	Predict(features []float64) float64
}

// Evaluation is the outcome of scoring one (pair, timeframe, strategy).
// A zero Direction means no signal.
type Evaluation struct {
	Direction  trade.Direction
	Score      float64
	Confidence float64
	Reasons    []string
	Indicators []string
	Features   []float64
}

// Scorer evaluates indicator values against a strategy's active indicator set.
type Scorer struct {
	log  zerolog.Logger
	pred Predictor
}

// New builds a scorer. pred may be nil when no predictor is configured.
func New(log zerolog.Logger, pred Predictor) *Scorer {
	return &Scorer{log: log, pred: pred}
}

// Score produces the directional evaluation. It is a pure function over the
// inputs: insufficient history or missing series skip the indicator and at
// worst yield no signal, never an error.
func (s *Scorer) Score(vals indicator.Values, strat config.Strategy) Evaluation {
	active := make(map[string]bool, len(strat.Indicators))
	for _, ind := range strat.Indicators {
		active[ind] = true
	}

	var (
		bull, bear   float64
		reasons      []string
		contributing []string
	)
	fire := func(ind string, side *float64, delta float64, reason string) {
		*side += delta
		reasons = append(reasons, reason)
		contributing = append(contributing, ind)
	}

	if active[IndEMA] {
		fast, slow := vals.Last("EMA12"), vals.Last("EMA50")
		switch {
		case math.IsNaN(fast) || math.IsNaN(slow):
			s.log.Debug().Str("strategy", strat.Name).Msg("EMA series unavailable")
		case fast > slow:
			fire(IndEMA, &bull, 0.3, "EMA12 crossed above EMA50")
		case fast < slow:
			fire(IndEMA, &bear, 0.2, "EMA12 below EMA50")
		}
	}

	if active[IndRSI] {
		rsi := vals.Last("RSI")
		switch {
		case math.IsNaN(rsi):
			s.log.Debug().Str("strategy", strat.Name).Msg("RSI series unavailable")
		case rsi < 45:
			fire(IndRSI, &bull, 0.3, fmt.Sprintf("RSI oversold: %.2f", rsi))
		case rsi > 60:
			fire(IndRSI, &bear, 0.2, fmt.Sprintf("RSI overbought: %.2f", rsi))
		}
	}

	if active[IndMACD] {
		macd, sig := vals.Last("MACD"), vals.Last("MACD_Signal")
		prevMACD, prevSig := vals.Prev("MACD"), vals.Prev("MACD_Signal")
		switch {
		case math.IsNaN(macd) || math.IsNaN(sig) || math.IsNaN(prevMACD) || math.IsNaN(prevSig):
			s.log.Debug().Str("strategy", strat.Name).Msg("MACD series unavailable")
		case macd > sig && prevMACD <= prevSig:
			fire(IndMACD, &bull, 0.3, "MACD crossed above signal line")
		case macd < sig && prevMACD >= prevSig:
			fire(IndMACD, &bear, 0.2, "MACD crossed below signal line")
		}
	}

	if active[IndSwing] {
		close, ma20 := vals.Last("close"), vals.Last("MA20")
		switch {
		case math.IsNaN(close) || math.IsNaN(ma20):
			s.log.Debug().Str("strategy", strat.Name).Msg("rolling mean unavailable")
		case close > ma20:
			fire(IndSwing, &bull, 0.4, "price above 20-bar mean")
		case close < ma20:
			fire(IndSwing, &bear, 0.3, "price below 20-bar mean")
		}
	}

	if len(contributing) == 0 {
		return Evaluation{}
	}

	features := predictor.Features(vals)
	score := bull + bear
	confidence := 0.0
	if s.pred != nil {
		confidence = s.pred.Predict(features)
		if confidence >= strat.Adaptive.MLConfidenceMin {
			score += confidence * 0.3
			reasons = append(reasons, fmt.Sprintf("model confidence: %.2f", confidence))
		}
	}

	eval := Evaluation{
		Score:      score,
		Confidence: confidence,
		Reasons:    reasons,
		Indicators: contributing,
		Features:   features,
	}
	if score < strat.Adaptive.ScoreMin {
		return Evaluation{}
	}
	// Bullish locators win contested evaluations, ties included.
	if bull >= bear {
		eval.Direction = trade.Long
	} else {
		eval.Direction = trade.Short
	}
	return eval
}
