package interfaces

import (
	"context"
	"time"

	"sentiment-trading/internal/types"
)

type Engine interface {
	// Recommend collects and scores fresh text, fuses it with the ticker's
	// indicators and returns a sized signal.
	Recommend(ctx context.Context, ticker string) (*types.Recommendation, error)
	// Backtest replays stored sentiment against daily bars in [from, to].
	Backtest(ctx context.Context, ticker string, from, to time.Time) (*types.BacktestResult, error)
	// Sentiment collects, scores and stores fresh text without a signal.
	Sentiment(ctx context.Context, ticker string) (*types.SentimentReport, error)
	// History returns stored daily sentiment for the last days days.
	History(ctx context.Context, ticker string, days int) ([]types.DailySentiment, error)
}
