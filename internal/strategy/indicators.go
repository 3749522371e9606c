package strategy

import (
	"math"

	"waysystem/internal/domain"
)

// Indicator series are aligned with their input: out[i] corresponds to
// input[i], with NaN filling the warm-up region where the indicator is not
// yet defined. Strategies treat NaN as "condition not met".

// Valid reports whether an indicator value is defined (not in the warm-up
// region).
func Valid(v float64) bool {
	return !math.IsNaN(v)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Closes extracts the close series from a bar window.
func Closes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high series from a bar window.
func Highs(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low series from a bar window.
func Lows(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts the volume series from a bar window.
func Volumes(bars []domain.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = float64(b.Volume)
	}
	return out
}

// SMA returns the simple moving average of vals over period.
func SMA(vals []float64, period int) []float64 {
	out := nanSlice(len(vals))
	if period <= 0 || len(vals) < period {
		return out
	}
	sum := 0.0
	for i, v := range vals {
		sum += v
		if i >= period {
			sum -= vals[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA returns the exponential moving average of vals over period, seeded
// with the SMA of the first period values.
func EMA(vals []float64, period int) []float64 {
	out := nanSlice(len(vals))
	if period <= 0 || len(vals) < period {
		return out
	}
	seed := 0.0
	for _, v := range vals[:period] {
		seed += v
	}
	out[period-1] = seed / float64(period)
	alpha := 2.0 / (float64(period) + 1)
	for i := period; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI returns the relative strength index of closes over period using
// Wilder smoothing. A series with no losses reads 100; no gains reads 0.
func RSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) <= period {
		return out
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		var g, l float64
		if d > 0 {
			g = d
		} else {
			l = -d
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50 // flat series
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// RollingMax returns the rolling maximum of vals over period.
func RollingMax(vals []float64, period int) []float64 {
	out := nanSlice(len(vals))
	if period <= 0 || len(vals) < period {
		return out
	}
	for i := period - 1; i < len(vals); i++ {
		m := vals[i]
		for j := i - period + 1; j < i; j++ {
			if vals[j] > m {
				m = vals[j]
			}
		}
		out[i] = m
	}
	return out
}

// RollingMin returns the rolling minimum of vals over period.
func RollingMin(vals []float64, period int) []float64 {
	out := nanSlice(len(vals))
	if period <= 0 || len(vals) < period {
		return out
	}
	for i := period - 1; i < len(vals); i++ {
		m := vals[i]
		for j := i - period + 1; j < i; j++ {
			if vals[j] < m {
				m = vals[j]
			}
		}
		out[i] = m
	}
	return out
}

// MACD returns the MACD line (EMA fast − EMA slow), its signal line (EMA of
// the MACD line), and the histogram (line − signal).
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64) {
	n := len(closes)
	line, sig, hist = nanSlice(n), nanSlice(n), nanSlice(n)
	if fast <= 0 || slow <= 0 || signal <= 0 || n < slow {
		return line, sig, hist
	}

	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	for i := slow - 1; i < n; i++ {
		line[i] = emaFast[i] - emaSlow[i]
	}

	// Signal line: EMA over the valid region of the MACD line.
	first := slow - 1
	if n-first < signal {
		return line, sig, hist
	}
	seed := 0.0
	for i := first; i < first+signal; i++ {
		seed += line[i]
	}
	sig[first+signal-1] = seed / float64(signal)
	alpha := 2.0 / (float64(signal) + 1)
	for i := first + signal; i < n; i++ {
		sig[i] = alpha*line[i] + (1-alpha)*sig[i-1]
	}

	for i := first + signal - 1; i < n; i++ {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}
