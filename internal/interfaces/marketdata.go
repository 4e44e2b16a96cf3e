package interfaces

import (
	"context"
	"time"

	"sentiment-trading/internal/types"
)

// MarketData returns ascending daily bars within [from, to].
type MarketData interface {
	DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]types.Candle, error)
}
