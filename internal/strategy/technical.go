package strategy

import (
	"math"

	"sentiment-trading/internal/types"
)

const noIndicatorConfidence = 0.3

// TechnicalScore averages the fixed-magnitude votes of every indicator group
// whose inputs are all present, clamped to [-1, 1]. No votes scores 0.
func TechnicalScore(ind types.IndicatorSet) float64 {
	votes := technicalVotes(ind)
	if len(votes) == 0 {
		return 0
	}
	var sum float64
	for _, v := range votes {
		sum += v
	}
	return math.Max(-1, math.Min(1, sum/float64(len(votes))))
}

func technicalVotes(ind types.IndicatorSet) []float64 {
	var votes []float64

	if rsi := ind.RSI; rsi != nil {
		switch {
		case *rsi < 30:
			votes = append(votes, 0.7)
		case *rsi > 70:
			votes = append(votes, -0.7)
		case *rsi < 50:
			votes = append(votes, 0.2)
		default:
			votes = append(votes, -0.2)
		}
	}

	if ind.MACD != nil && ind.MACDSignal != nil {
		if *ind.MACD > *ind.MACDSignal {
			votes = append(votes, 0.5)
		} else {
			votes = append(votes, -0.3)
		}
	}
	if d := ind.MACDDiff; d != nil {
		if *d > 0 {
			votes = append(votes, 0.3)
		} else {
			votes = append(votes, -0.3)
		}
	}

	price := ind.CurrentPrice
	if price != nil && ind.MA20 != nil && ind.MA50 != nil {
		p, ma20, ma50 := *price, *ind.MA20, *ind.MA50
		switch {
		case p > ma20 && ma20 > ma50:
			votes = append(votes, 0.6)
		case p < ma20 && ma20 < ma50:
			votes = append(votes, -0.6)
		default:
			votes = append(votes, 0)
		}
	}
	if price != nil && ind.MA200 != nil {
		if *price > *ind.MA200 {
			votes = append(votes, 0.2)
		} else {
			votes = append(votes, -0.2)
		}
	}

	if price != nil && ind.BBHigh != nil && ind.BBLow != nil && ind.BBMid != nil {
		switch {
		case *price <= *ind.BBLow:
			votes = append(votes, 0.5)
		case *price >= *ind.BBHigh:
			votes = append(votes, -0.5)
		default:
			votes = append(votes, 0)
		}
	}

	// Normal volume casts no vote.
	if ind.Volume != nil && ind.VolumeSMA != nil {
		switch {
		case *ind.Volume > *ind.VolumeSMA*1.5:
			votes = append(votes, 0.2)
		case *ind.Volume < *ind.VolumeSMA*0.5:
			votes = append(votes, -0.1)
		}
	}

	return votes
}

// TechnicalConfidence grows with the number of core indicators present:
// min(1, 0.4 + n/10). An empty set is 0.3.
func TechnicalConfidence(ind types.IndicatorSet) float64 {
	if ind.Empty() {
		return noIndicatorConfidence
	}
	n := 0
	for _, v := range []*float64{ind.RSI, ind.MACD, ind.MA20, ind.MA50, ind.MA200, ind.BBHigh} {
		if v != nil {
			n++
		}
	}
	return math.Min(1, 0.4+float64(n)/10)
}
