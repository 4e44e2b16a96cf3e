package marketdata

import (
	"context"
	"sync"
	"time"

	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/types"
)

// Cached memoizes DailyBars per (ticker, from, to) for the life of the
// process. Errors are not cached.
type Cached struct {
	next interfaces.MarketData

	mu      sync.RWMutex
	buffers map[string][]types.Candle
}

var _ interfaces.MarketData = (*Cached)(nil)

func NewCached(next interfaces.MarketData) *Cached {
	return &Cached{next: next, buffers: make(map[string][]types.Candle)}
}

func cacheKey(ticker string, from, to time.Time) string {
	return ticker + "|" + from.UTC().Format(types.DateLayout) + "|" + to.UTC().Format(types.DateLayout)
}

func (c *Cached) DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]types.Candle, error) {
	key := cacheKey(ticker, from, to)

	c.mu.RLock()
	bars, ok := c.buffers[key]
	c.mu.RUnlock()
	if ok {
		return append([]types.Candle(nil), bars...), nil
	}

	bars, err := c.next.DailyBars(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.buffers[key] = bars
	c.mu.Unlock()
	return append([]types.Candle(nil), bars...), nil
}

// Clear drops every cached series.
func (c *Cached) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffers = make(map[string][]types.Candle)
}
