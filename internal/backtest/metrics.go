package backtest

import (
	"math"

	"sentiment-trading/internal/types"
)

const tradingDaysPerYear = 252

// dailyReturns is the pct-change of the equity curve. A single-day curve
// yields [0].
func dailyReturns(curve []types.EquityPoint) []float64 {
	if len(curve) < 2 {
		return []float64{0}
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, curve[i].Value/prev-1)
	}
	return out
}

// sharpeRatio annualizes mean/stdev of daily returns (population stdev).
// Fewer than two returns or zero variance gives 0.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))
	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	std := math.Sqrt(sq / float64(len(returns)))
	if std == 0 {
		return 0
	}
	return finite(mean / std * math.Sqrt(tradingDaysPerYear))
}

// maxDrawdown walks the cumulative-return curve, starting at 1, and returns
// the deepest fall from its running peak as a non-positive percentage.
func maxDrawdown(returns []float64) float64 {
	cum, peak, worst := 1.0, 1.0, 0.0
	for _, r := range returns {
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		if peak <= 0 {
			continue
		}
		if dd := (cum - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return finite(worst * 100)
}

// winRate is the share of sells priced above the most recent earlier buy.
// It matches single lots, not FIFO lots, and needs at least two trades.
func winRate(trades []types.Trade) float64 {
	if len(trades) < 2 {
		return 0
	}
	var sells, wins int
	var lastBuy float64
	var haveBuy bool
	for _, t := range trades {
		switch t.Type {
		case types.SignalBuy:
			lastBuy, haveBuy = t.Price, true
		case types.SignalSell:
			sells++
			if haveBuy && t.Price > lastBuy {
				wins++
			}
		}
	}
	if sells == 0 {
		return 0
	}
	return float64(wins) / float64(sells) * 100
}

// benchmarkReturn is the percentage move from the first to the last close.
func benchmarkReturn(bars []types.Candle) float64 {
	if len(bars) < 2 || bars[0].Close == 0 {
		return 0
	}
	return finite((bars[len(bars)-1].Close/bars[0].Close - 1) * 100)
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
