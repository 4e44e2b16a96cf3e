package ta

import (
	"math"

	"sentiment-trading/internal/types"
)

const (
	RSIPeriod    = 14
	MACDFast     = 12
	MACDSlow     = 26
	MACDSignal   = 9
	BBWindow     = 20
	BBStdDev     = 2.0
	VolumeWindow = 20
)

// Indicators computes the trailing indicator set for a chronologically
// ordered bar window. Fields without enough history stay nil.
func Indicators(bars []types.Candle) types.IndicatorSet {
	var set types.IndicatorSet
	if len(bars) == 0 {
		return set
	}
	closes := make([]float64, len(bars))
	vols := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		vols[i] = b.Vol
	}
	last := bars[len(bars)-1]

	set.CurrentPrice = types.Float(last.Close)
	set.Volume = types.Float(last.Vol)
	set.RSI = present(RSI(closes, RSIPeriod))

	line, sig, diff := MACD(closes, MACDFast, MACDSlow, MACDSignal)
	set.MACD = present(line)
	set.MACDSignal = present(sig)
	set.MACDDiff = present(diff)

	set.MA20 = present(SMA(closes, 20))
	set.MA50 = present(SMA(closes, 50))
	set.MA200 = present(SMA(closes, 200))

	mid, up, low := Bollinger(closes, BBWindow, BBStdDev)
	set.BBMid = present(mid)
	set.BBHigh = present(up)
	set.BBLow = present(low)

	set.VolumeSMA = present(SMA(vols, VolumeWindow))
	return set
}

func present(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return types.Float(v)
}
