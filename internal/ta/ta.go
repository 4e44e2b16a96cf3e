package ta

import "math"

func SMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		sum += closes[i]
	}
	return sum / float64(n)
}

// EMASeries returns the exponentially weighted mean of vals with smoothing
// alpha, seeded with the first finite value (no bias adjustment). Leading
// NaNs are carried through and entries before minPeriods finite values are NaN.
func EMASeries(vals []float64, alpha float64, minPeriods int) []float64 {
	out := make([]float64, len(vals))
	seen := 0
	var prev float64
	for i, v := range vals {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		if seen == 0 {
			prev = v
		} else {
			prev = (1-alpha)*prev + alpha*v
		}
		seen++
		if seen < minPeriods {
			out[i] = math.NaN()
		} else {
			out[i] = prev
		}
	}
	return out
}

// EMA is the trailing value of a span-n exponential moving average.
func EMA(vals []float64, n int) float64 {
	if n <= 0 || len(vals) < n {
		return math.NaN()
	}
	s := EMASeries(vals, 2.0/float64(n+1), n)
	return s[len(s)-1]
}

// RSI uses Wilder smoothing (alpha = 1/period). It needs at least period
// bars and is 100 when there were no losses.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period || period <= 0 {
		return math.NaN()
	}
	up := make([]float64, len(closes))
	dn := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			up[i] = d
		} else if d < 0 {
			dn[i] = -d
		}
	}
	alpha := 1.0 / float64(period)
	eu := EMASeries(up, alpha, period)
	ed := EMASeries(dn, alpha, period)
	gain, loss := eu[len(eu)-1], ed[len(ed)-1]
	if loss == 0 {
		return 100.0
	}
	rs := gain / loss
	return 100.0 - (100.0 / (1.0 + rs))
}

// MACD returns the trailing MACD line, its signal line and their difference.
// The line needs slow bars; signal and diff need slow+signal-1.
func MACD(closes []float64, fast, slow, signal int) (line, sig, diff float64) {
	line, sig, diff = math.NaN(), math.NaN(), math.NaN()
	if len(closes) < slow || fast <= 0 || slow <= 0 || signal <= 0 {
		return
	}
	ef := EMASeries(closes, 2.0/float64(fast+1), fast)
	es := EMASeries(closes, 2.0/float64(slow+1), slow)
	lines := make([]float64, len(closes))
	for i := range closes {
		lines[i] = ef[i] - es[i]
	}
	sigs := EMASeries(lines, 2.0/float64(signal+1), signal)
	line = lines[len(lines)-1]
	sig = sigs[len(sigs)-1]
	if !math.IsNaN(sig) {
		diff = line - sig
	}
	return
}

func StdDev(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	m := SMA(vals, n)
	s := 0.0
	for i := len(vals) - n; i < len(vals); i++ {
		d := vals[i] - m
		s += d * d
	}
	return math.Sqrt(s / float64(n))
}

func Bollinger(closes []float64, n int, k float64) (mid, up, low float64) {
	mid = SMA(closes, n)
	sd := StdDev(closes, n)
	up = mid + k*sd
	low = mid - k*sd
	return
}

// RealizedVolatility is the population standard deviation of the last n log
// returns.
func RealizedVolatility(closes []float64, n int) float64 {
	if n <= 1 || len(closes) < n+1 {
		return math.NaN()
	}
	rets := make([]float64, 0, n)
	for i := len(closes) - n; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return math.NaN()
		}
		rets = append(rets, math.Log(closes[i]/closes[i-1]))
	}
	return StdDev(rets, n)
}
