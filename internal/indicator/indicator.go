// Package indicator computes lightweight TA values over candle history.
//
// All helpers align output to input length; indices before the first full
// lookback emit NaN. Keep these fast and allocation-light, they run once per
// pair/timeframe/strategy each scheduling cycle.
package indicator

import "math"

// Bar is a single candle as returned by the market data gateway.
type Bar struct {
	OpenTime int64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Values holds the named indicator series a scorer consumes. Each series is
// aligned to the bars it was computed from.
type Values map[string][]float64

// Last returns the most recent value of a named series, or NaN when the
// series is missing, empty, or ends in an unavailable lookback.
func (v Values) Last(name string) float64 {
	series, ok := v[name]
	if !ok || len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// Prev returns the second most recent value of a named series, or NaN.
func (v Values) Prev(name string) float64 {
	series, ok := v[name]
	if !ok || len(series) < 2 {
		return math.NaN()
	}
	return series[len(series)-2]
}

// Provider turns candle history into named indicator values. Implementations
// must be pure and may return partial results when history is insufficient.
type Provider interface {
	Compute(bars []Bar) Values
}

// Func adapts a plain function to the Provider interface.
type Func func(bars []Bar) Values

// Compute implements Provider.
func (f Func) Compute(bars []Bar) Values { return f(bars) }

// Default computes the series the built-in scorer consumes: close, volume,
// EMA12/EMA50, RSI, MACD and its signal line, and the 20-bar rolling mean.
func Default() Provider {
	return Func(func(bars []Bar) Values {
		closes := make([]float64, len(bars))
		volumes := make([]float64, len(bars))
		for i, b := range bars {
			closes[i] = b.Close
			volumes[i] = b.Volume
		}
		macd, macdSignal := MACD(closes, 12, 26, 9)
		return Values{
			"close":       closes,
			"volume":      volumes,
			"EMA12":       EMA(closes, 12),
			"EMA50":       EMA(closes, 50),
			"RSI":         RSI(closes, 14),
			"MACD":        macd,
			"MACD_Signal": macdSignal,
			"MA20":        SMA(closes, 20),
		}
	})
}

// SMA returns the n-period simple moving average, aligned to xs.
func SMA(xs []float64, n int) []float64 {
	out := nanSlice(len(xs))
	if n <= 0 {
		return out
	}
	var sum float64
	for i, x := range xs {
		sum += x
		if i >= n {
			sum -= xs[i-n]
		}
		if i >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA returns the n-period exponential moving average, seeded with the SMA of
// the first n values.
func EMA(xs []float64, n int) []float64 {
	out := nanSlice(len(xs))
	if n <= 0 || len(xs) < n {
		return out
	}
	var seed float64
	for _, x := range xs[:n] {
		seed += x
	}
	prev := seed / float64(n)
	out[n-1] = prev
	k := 2.0 / float64(n+1)
	for i := n; i < len(xs); i++ {
		prev = xs[i]*k + prev*(1-k)
		out[i] = prev
	}
	return out
}

// RSI returns the n-period Relative Strength Index using Wilder smoothing.
func RSI(xs []float64, n int) []float64 {
	out := nanSlice(len(xs))
	if n <= 0 || len(xs) <= n {
		return out
	}
	var gain, loss float64
	for i := 1; i <= n; i++ {
		d := xs[i] - xs[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(n)
	avgLoss := loss / float64(n)
	out[n] = rsiValue(avgGain, avgLoss)
	for i := n + 1; i < len(xs); i++ {
		d := xs[i] - xs[i-1]
		up, down := 0.0, 0.0
		if d > 0 {
			up = d
		} else {
			down = -d
		}
		avgGain = (avgGain*float64(n-1) + up) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + down) / float64(n)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACD returns the MACD line (fast EMA minus slow EMA) and its signal line.
func MACD(xs []float64, fast, slow, signal int) ([]float64, []float64) {
	fastEMA := EMA(xs, fast)
	slowEMA := EMA(xs, slow)
	macd := nanSlice(len(xs))
	for i := range xs {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			macd[i] = fastEMA[i] - slowEMA[i]
		}
	}
	// Signal line is an EMA over the valid portion of the MACD line.
	sigOut := nanSlice(len(xs))
	start := -1
	for i, v := range macd {
		if !math.IsNaN(v) {
			start = i
			break
		}
	}
	if start >= 0 {
		valid := EMA(macd[start:], signal)
		copy(sigOut[start:], valid)
	}
	return macd, sigOut
}

// ReturnStdev returns the standard deviation of one-bar returns over the last
// n bars, or NaN when fewer than two returns exist.
func ReturnStdev(xs []float64, n int) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	rets := make([]float64, 0, n)
	lo := len(xs) - n - 1
	if lo < 0 {
		lo = 0
	}
	for i := lo + 1; i < len(xs); i++ {
		if xs[i-1] == 0 {
			continue
		}
		rets = append(rets, xs[i]/xs[i-1]-1)
	}
	if len(rets) < 2 {
		return math.NaN()
	}
	var sum float64
	for _, r := range rets {
		sum += r
	}
	mean := sum / float64(len(rets))
	var sq float64
	for _, r := range rets {
		sq += (r - mean) * (r - mean)
	}
	return math.Sqrt(sq / float64(len(rets)))
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
