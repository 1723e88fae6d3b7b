package features

import "math"

// SimpleReturns computes r_t = C_t / C_{t-1} - 1 for one ticker's closes.
// The first value, and any value following a non-positive or undefined close, is NaN.
func SimpleReturns(closes []float64) []float64 {
	out := nanSlice(len(closes))
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if math.IsNaN(prev) || math.IsNaN(cur) || prev <= 0 {
			continue
		}
		out[i] = cur/prev - 1
	}
	return out
}

// Shift moves values forward by lag (lag > 0) or backward (lag < 0), padding with NaN.
func Shift(values []float64, lag int) []float64 {
	out := nanSlice(len(values))
	for i := range values {
		j := i - lag
		if j >= 0 && j < len(values) {
			out[i] = values[j]
		}
	}
	return out
}

// RollingMean is the trailing mean over window rows. A window containing NaN is NaN.
func RollingMean(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 0 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for _, v := range values[i-window+1 : i+1] {
			if math.IsNaN(v) {
				ok = false
				break
			}
			sum += v
		}
		if ok {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// RollingStd is the trailing sample standard deviation (n-1) over window rows.
func RollingStd(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 1 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		out[i] = sampleStd(values[i-window+1 : i+1])
	}
	return out
}

// ForwardStd is the sample std of values[t+1 .. t+window]; NaN when fewer than window rows follow.
func ForwardStd(values []float64, window int) []float64 {
	out := nanSlice(len(values))
	if window <= 1 {
		return out
	}
	for i := 0; i+window < len(values); i++ {
		out[i] = sampleStd(values[i+1 : i+1+window])
	}
	return out
}

// EMA is the recursive exponential average with alpha = 2/(span+1), seeded by the first defined value.
func EMA(values []float64, span int) []float64 {
	out := nanSlice(len(values))
	if span <= 0 {
		return out
	}
	alpha := 2.0 / (float64(span) + 1)
	prev := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = prev
			continue
		}
		if math.IsNaN(prev) {
			prev = v
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// RSI computes the momentum oscillator over a trailing window of close deltas.
// Windows without losses yield the neutral value 50.
func RSI(closes []float64, window int) []float64 {
	out := nanSlice(len(closes))
	if window <= 0 {
		return out
	}
	gains := nanSlice(len(closes))
	losses := nanSlice(len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if math.IsNaN(d) {
			continue
		}
		gains[i] = math.Max(d, 0)
		losses[i] = math.Max(-d, 0)
	}
	avgGain := RollingMean(gains, window)
	avgLoss := RollingMean(losses, window)
	for i := range closes {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		if l == 0 {
			out[i] = 50
			continue
		}
		out[i] = 100 - 100/(1+g/l)
	}
	return out
}

func sampleStd(window []float64) float64 {
	n := float64(len(window))
	if n < 2 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range window {
		if math.IsNaN(v) {
			return math.NaN()
		}
		sum += v
	}
	mean := sum / n
	ss := 0.0
	for _, v := range window {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / (n - 1))
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
