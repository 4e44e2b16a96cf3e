package ta

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentiment-trading/internal/types"
)

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func bars(closes []float64, vol float64) []types.Candle {
	out := make([]types.Candle, len(closes))
	for i, c := range closes {
		out[i] = types.Candle{Ts: int64(i) * 86400, Open: c, High: c, Low: c, Close: c, Vol: vol}
	}
	return out
}

func TestSMA(t *testing.T) {
	assert.InDelta(t, 4.0, SMA([]float64{1, 2, 3, 4, 5}, 3), 1e-12)
	assert.True(t, math.IsNaN(SMA([]float64{1, 2}, 3)))
	assert.True(t, math.IsNaN(SMA([]float64{1, 2}, 0)))
}

func TestEMASeriesSeedsWithFirstValue(t *testing.T) {
	s := EMASeries([]float64{10, 20, 30}, 0.5, 1)
	require.Len(t, s, 3)
	assert.InDelta(t, 10.0, s[0], 1e-12)
	assert.InDelta(t, 15.0, s[1], 1e-12)
	assert.InDelta(t, 22.5, s[2], 1e-12)
}

func TestEMASeriesSkipsLeadingNaN(t *testing.T) {
	s := EMASeries([]float64{math.NaN(), math.NaN(), 4, 8}, 0.5, 2)
	assert.True(t, math.IsNaN(s[0]))
	assert.True(t, math.IsNaN(s[2]))
	assert.InDelta(t, 6.0, s[3], 1e-12)
}

func TestRSI(t *testing.T) {
	assert.True(t, math.IsNaN(RSI(ramp(13, 100, 1), 14)))
	assert.Equal(t, 100.0, RSI(ramp(30, 100, 1), 14))

	down := RSI(ramp(30, 200, -1), 14)
	assert.InDelta(t, 0.0, down, 1e-9)

	mixed := []float64{44, 44.3, 44.1, 44.2, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8, 46.1, 45.9, 46.0, 45.6, 46.3, 46.3}
	v := RSI(mixed, 14)
	assert.Greater(t, v, 50.0)
	assert.Less(t, v, 100.0)
}

func TestMACDWarmup(t *testing.T) {
	line, sig, diff := MACD(ramp(25, 100, 1), 12, 26, 9)
	assert.True(t, math.IsNaN(line))
	assert.True(t, math.IsNaN(sig))
	assert.True(t, math.IsNaN(diff))

	line, sig, diff = MACD(ramp(26, 100, 1), 12, 26, 9)
	assert.False(t, math.IsNaN(line))
	assert.True(t, math.IsNaN(sig))
	assert.True(t, math.IsNaN(diff))

	line, sig, diff = MACD(ramp(34, 100, 1), 12, 26, 9)
	assert.Greater(t, line, 0.0)
	assert.False(t, math.IsNaN(sig))
	assert.InDelta(t, line-sig, diff, 1e-12)
}

func TestBollingerFlatSeries(t *testing.T) {
	mid, up, low := Bollinger(ramp(20, 50, 0), 20, 2)
	assert.Equal(t, 50.0, mid)
	assert.Equal(t, 50.0, up)
	assert.Equal(t, 50.0, low)
}

func TestRealizedVolatility(t *testing.T) {
	assert.InDelta(t, 0.0, RealizedVolatility(ramp(30, 10, 0), 20), 1e-12)
	assert.True(t, math.IsNaN(RealizedVolatility(ramp(5, 10, 1), 20)))
	assert.Greater(t, RealizedVolatility([]float64{10, 11, 10, 11, 10, 11}, 5), 0.0)
}

func TestIndicatorsPresence(t *testing.T) {
	set := Indicators(nil)
	assert.True(t, set.Empty())

	set = Indicators(bars(ramp(20, 100, 1), 1000))
	require.NotNil(t, set.CurrentPrice)
	assert.Equal(t, 119.0, *set.CurrentPrice)
	assert.NotNil(t, set.RSI)
	assert.NotNil(t, set.MA20)
	assert.NotNil(t, set.BBHigh)
	assert.NotNil(t, set.VolumeSMA)
	assert.Nil(t, set.MACD)
	assert.Nil(t, set.MA50)
	assert.Nil(t, set.MA200)

	set = Indicators(bars(ramp(200, 100, 1), 1000))
	assert.NotNil(t, set.MACD)
	assert.NotNil(t, set.MACDSignal)
	assert.NotNil(t, set.MACDDiff)
	assert.NotNil(t, set.MA200)
	assert.Greater(t, *set.CurrentPrice, *set.MA20)
	assert.Greater(t, *set.MA20, *set.MA50)
}
