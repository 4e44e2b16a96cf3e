package interfaces

import (
	"context"

	"sentiment-trading/internal/types"
)

// SentimentScorer turns raw text into scored observations. It never fails;
// degraded results come back as neutral observations.
type SentimentScorer interface {
	Score(ctx context.Context, text, ticker string) types.SentimentObservation
	BatchScore(ctx context.Context, items []types.TextItem, ticker string) []types.SentimentObservation
}
