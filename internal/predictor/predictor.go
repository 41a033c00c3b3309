// Package predictor hosts a tiny in-memory logistic model for directional confidence.
//
// Minimal logistic-regression-style model over features captured at signal
// time. Kept simple and fast; the feedback loop retrains it on closed-record
// outcomes.
package predictor

import (
	"math"
	"sync"

	"quantbot-go/internal/indicator"
)

// FeatureDim is the width of the feature vector produced by Features.
const FeatureDim = 4

// Features builds the model input from indicator values: fast/slow EMA
// spread, RSI scaled to [0,1], MACD minus its signal line relative to price,
// and price distance from the 20-bar mean. NaN inputs become 0.
func Features(v indicator.Values) []float64 {
	close := v.Last("close")
	ema12 := v.Last("EMA12")
	ema50 := v.Last("EMA50")
	rsi := v.Last("RSI")
	macd := v.Last("MACD")
	macdSignal := v.Last("MACD_Signal")
	ma20 := v.Last("MA20")

	f := make([]float64, FeatureDim)
	if ema50 != 0 {
		f[0] = (ema12 - ema50) / ema50
	}
	f[1] = rsi / 100
	if close != 0 {
		f[2] = (macd - macdSignal) / close
	}
	if ma20 != 0 {
		f[3] = close/ma20 - 1
	}
	for i, x := range f {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			f[i] = 0
		}
	}
	return f
}

// Logit is a thread-safe logistic model: Predict returns the probability the
// setup closes as TP.
type Logit struct {
	mu       sync.RWMutex
	w        []float64
	b        float64
	accuracy float64
	samples  int
}

// NewLogit builds an untrained model; Predict returns 0.5 until Train runs.
func NewLogit() *Logit {
	return &Logit{w: make([]float64, FeatureDim)}
}

func sigmoid(x float64) float64 {
	if x > 20 {
		return 1
	}
	if x < -20 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

// Predict expects exactly FeatureDim features; otherwise returns 0.5.
func (m *Logit) Predict(features []float64) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(features) != len(m.w) {
		return 0.5
	}
	z := m.b
	for i := range features {
		z += m.w[i] * features[i]
	}
	return sigmoid(z)
}

// Train performs gradient steps on cross-entropy loss over the sample set and
// records the resulting in-sample accuracy. Fewer than two samples is a no-op.
func (m *Logit) Train(feats [][]float64, labels []float64) {
	if len(feats) < 2 || len(feats) != len(labels) {
		return
	}
	const (
		lr     = 0.1
		epochs = 50
	)
	m.mu.Lock()
	defer m.mu.Unlock()
	for e := 0; e < epochs; e++ {
		for i := range feats {
			if len(feats[i]) != len(m.w) {
				continue
			}
			p := m.predictLocked(feats[i])
			grad := p - labels[i]
			for j := range m.w {
				m.w[j] -= lr * grad * feats[i][j]
			}
			m.b -= lr * grad
		}
	}

	correct := 0
	total := 0
	for i := range feats {
		if len(feats[i]) != len(m.w) {
			continue
		}
		total++
		p := m.predictLocked(feats[i])
		if (p >= 0.5) == (labels[i] >= 0.5) {
			correct++
		}
	}
	if total > 0 {
		m.accuracy = float64(correct) / float64(total)
		m.samples = total
	}
}

func (m *Logit) predictLocked(features []float64) float64 {
	z := m.b
	for i := range features {
		z += m.w[i] * features[i]
	}
	return sigmoid(z)
}

// Metrics reports training accuracy and sample count from the last Train.
func (m *Logit) Metrics() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]float64{
		"accuracy": m.accuracy,
		"samples":  float64(m.samples),
	}
}
