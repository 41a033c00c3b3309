// Package quality blends signal inputs into the single admission ranking score.
package quality

import (
	"math"

	"quantbot-go/internal/indicator"
)

// Weights of each quality component.
const (
	wTechnical  = 0.4
	wVolatility = 0.2
	wVolume     = 0.2
	wHistory    = 0.2
)

// Performance is the historical proxy for a strategy+direction: win rate in
// percent and average realized pnl in percent.
type Performance struct {
	WinRate float64
	AvgPnL  float64
}

// HistoryScore converts historical performance into the [0,~] proxy
// (win_rate/100) × (1 + avg_pnl/100).
func (p Performance) HistoryScore() float64 {
	return (p.WinRate / 100) * (1 + p.AvgPnL/100)
}

// Score produces the quality score in [0,1] used as the sole admission
// ranking key. Unavailable components contribute zero rather than failing.
func Score(techScore float64, bars []indicator.Bar, perf Performance) float64 {
	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	// Annualized dispersion of recent one-bar returns, scaled and clamped
	// so ordinary volatility maps into [0,1].
	volatility := 0.0
	if sd := indicator.ReturnStdev(closes, 14); !math.IsNaN(sd) {
		volatility = clamp01(sd * math.Sqrt(252) * 100)
	}

	volumeScore := relativeVolume(volumes)

	score := wTechnical*techScore +
		wVolatility*volatility +
		wVolume*volumeScore +
		wHistory*perf.HistoryScore()
	return clamp01(score)
}

// relativeVolume is the short-window average volume over the long-window max.
func relativeVolume(volumes []float64) float64 {
	if len(volumes) == 0 {
		return 0
	}
	short := volumes
	if len(short) > 20 {
		short = short[len(short)-20:]
	}
	var sum float64
	for _, v := range short {
		sum += v
	}
	avg := sum / float64(len(short))

	long := volumes
	if len(long) > 100 {
		long = long[len(long)-100:]
	}
	var max float64
	for _, v := range long {
		if v > max {
			max = v
		}
	}
	if max <= 0 {
		return 0
	}
	return clamp01(avg / max)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
