package interfaces

import (
	"context"

	"sentiment-trading/internal/types"
)

// Collector gathers raw text mentioning a ticker.
type Collector interface {
	Name() string
	Collect(ctx context.Context, ticker string, limit int) ([]types.TextItem, error)
}
