// Package aggregate combines per-timeframe evaluations into one decision.
package aggregate

import (
	"quantbot-go/internal/scorer"
	"quantbot-go/internal/trade"
)

// Weight returns the vote weight for a timeframe. Longer timeframes weigh
// more; unknown intervals get the base weight.
func Weight(tf trade.Timeframe) float64 {
	switch tf {
	case trade.TF1h, trade.TF4h:
		return 1.2
	case trade.TF1d:
		return 1.3
	default:
		return 1.0
	}
}

// Decision is the combined multi-timeframe outcome. A zero Direction means
// no signal.
type Decision struct {
	Direction  trade.Direction
	Score      float64
	Confidence float64
	Reasons    []string
}

// Combine is deterministic: identical inputs always produce the same output.
// Weighted votes are summed per side; the heavier side wins, ties and
// all-zero vote totals yield no signal. Confidence is the winning side's
// share of the total weight.
func Combine(byTimeframe map[trade.Timeframe]scorer.Evaluation) Decision {
	var (
		longWeight, shortWeight float64
		score                   float64
		reasons                 []string
	)
	for _, tf := range trade.Timeframes {
		eval, ok := byTimeframe[tf]
		if !ok || eval.Direction == "" {
			continue
		}
		w := Weight(tf)
		switch eval.Direction {
		case trade.Long:
			longWeight += w
		case trade.Short:
			shortWeight += w
		}
		score += eval.Score * w
		reasons = append(reasons, eval.Reasons...)
	}

	total := longWeight + shortWeight
	if total == 0 || longWeight == shortWeight {
		return Decision{}
	}

	d := Decision{Score: score, Reasons: reasons}
	if longWeight > shortWeight {
		d.Direction = trade.Long
		d.Confidence = longWeight / total
	} else {
		d.Direction = trade.Short
		d.Confidence = shortWeight / total
	}
	return d
}
