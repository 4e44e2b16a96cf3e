package strategy

import (
	"fmt"
	"strings"

	"sentiment-trading/internal/types"
)

const maxTechnicalReasons = 3

// Reasoning composes the human-readable explanation for a signal.
func Reasoning(signalType types.SignalType, sentScore, techScore float64, snap types.SentimentSnapshot, ind types.IndicatorSet) string {
	var parts []string

	if snap.TotalCount > 0 {
		label := snap.Overall
		if label == "" {
			label = types.OutlookNeutral
		}
		parts = append(parts, fmt.Sprintf("Sentiment analysis (%d mentions) shows %s sentiment (score: %.2f)",
			snap.TotalCount, label, sentScore))
	} else {
		parts = append(parts, "Limited sentiment data available")
	}

	if tech := technicalReasons(ind); len(tech) > 0 {
		parts = append(parts, "Technical indicators: "+strings.Join(tech, ", "))
	}

	var verdict string
	switch signalType {
	case types.SignalBuy:
		verdict = "BUY signal"
	case types.SignalSell:
		verdict = "SELL signal"
	default:
		verdict = "HOLD position"
	}

	return fmt.Sprintf("%s. Combined score (%.2f sentiment + %.2f technical) suggests %s.",
		strings.Join(parts, ". "), sentScore, techScore, verdict)
}

// technicalReasons lists up to three observations in priority order: RSI
// regime, MACD momentum, price against MA20.
func technicalReasons(ind types.IndicatorSet) []string {
	var out []string
	if rsi := ind.RSI; rsi != nil {
		switch {
		case *rsi < 30:
			out = append(out, "RSI indicates oversold conditions")
		case *rsi > 70:
			out = append(out, "RSI indicates overbought conditions")
		}
	}
	if d := ind.MACDDiff; d != nil {
		if *d > 0 {
			out = append(out, "MACD shows bullish momentum")
		} else {
			out = append(out, "MACD shows bearish momentum")
		}
	}
	if ind.CurrentPrice != nil && ind.MA20 != nil {
		if *ind.CurrentPrice > *ind.MA20 {
			out = append(out, "Price is above 20-day moving average")
		} else {
			out = append(out, "Price is below 20-day moving average")
		}
	}
	if len(out) > maxTechnicalReasons {
		out = out[:maxTechnicalReasons]
	}
	return out
}
