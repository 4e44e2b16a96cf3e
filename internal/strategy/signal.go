package strategy

import (
	"math"

	"sentiment-trading/internal/types"
)

const (
	DefaultSentimentWeight = 0.6
	DefaultTechnicalWeight = 0.4
	DefaultBuyThreshold    = 0.6
	DefaultSellThreshold   = -0.6
	DefaultRiskPerTrade    = 0.02
)

// Config holds the fusion weights and decision thresholds.
type Config struct {
	SentimentWeight float64
	TechnicalWeight float64
	BuyThreshold    float64
	SellThreshold   float64
}

func DefaultConfig() Config {
	return Config{
		SentimentWeight: DefaultSentimentWeight,
		TechnicalWeight: DefaultTechnicalWeight,
		BuyThreshold:    DefaultBuyThreshold,
		SellThreshold:   DefaultSellThreshold,
	}
}

// Generator fuses a sentiment snapshot and an indicator set into a Signal.
// It is a pure function of its inputs.
type Generator struct {
	sentimentWeight float64
	technicalWeight float64
	buyThreshold    float64
	sellThreshold   float64
}

// NewGenerator normalizes the weights so they sum to 1. Non-positive totals
// fall back to the default 0.6/0.4 split.
func NewGenerator(cfg Config) *Generator {
	sw, tw := cfg.SentimentWeight, cfg.TechnicalWeight
	if sw < 0 || tw < 0 || sw+tw <= 0 {
		sw, tw = DefaultSentimentWeight, DefaultTechnicalWeight
	}
	total := sw + tw
	return &Generator{
		sentimentWeight: sw / total,
		technicalWeight: tw / total,
		buyThreshold:    cfg.BuyThreshold,
		sellThreshold:   cfg.SellThreshold,
	}
}

// Weights returns the normalized (sentiment, technical) weights.
func (g *Generator) Weights() (float64, float64) {
	return g.sentimentWeight, g.technicalWeight
}

// Classify applies the exclusive buy/sell thresholds.
func (g *Generator) Classify(final float64) types.SignalType {
	switch {
	case final > g.buyThreshold:
		return types.SignalBuy
	case final < g.sellThreshold:
		return types.SignalSell
	default:
		return types.SignalHold
	}
}

// Generate builds the signal. GeneratedAt is left for the caller to stamp.
func (g *Generator) Generate(ticker string, snap types.SentimentSnapshot, ind types.IndicatorSet) types.Signal {
	sentScore := snap.WeightedScore
	techScore := TechnicalScore(ind)
	techConf := TechnicalConfidence(ind)

	final := g.sentimentWeight*sentScore + g.technicalWeight*techScore
	conf := g.sentimentWeight*snap.Confidence + g.technicalWeight*techConf
	signalType := g.Classify(final)

	return types.Signal{
		Ticker:         ticker,
		Type:           signalType,
		Confidence:     conf,
		SentimentScore: sentScore,
		TechnicalScore: techScore,
		FinalScore:     final,
		Reasoning:      Reasoning(signalType, sentScore, techScore, snap, ind),
		Indicators:     ind,
	}
}

// PositionSize returns the dollar amount to commit: capital·risk scaled by
// clamp(0.5 + 1.5·confidence, 0.5, 2), then by 1/(1+volatility) when a
// volatility is given.
func PositionSize(capital, confidence float64, volatility *float64, riskPerTrade float64) float64 {
	base := capital * riskPerTrade
	mult := math.Min(2.0, math.Max(0.5, 0.5+confidence*1.5))
	size := base * mult
	if volatility != nil && *volatility > 0 {
		size *= 1 / (1 + *volatility)
	}
	return size
}
