package news

import (
	"context"

	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/types"
)

// MultiCollector queries collectors in order until the limit is reached.
// Failing collectors are logged and skipped.
type MultiCollector struct {
	collectors []interfaces.Collector
}

var _ interfaces.Collector = (*MultiCollector)(nil)

func NewMultiCollector(collectors ...interfaces.Collector) *MultiCollector {
	return &MultiCollector{collectors: collectors}
}

func (m *MultiCollector) Name() string { return "multi" }

func (m *MultiCollector) Collect(ctx context.Context, ticker string, limit int) ([]types.TextItem, error) {
	var items []types.TextItem
	for _, c := range m.collectors {
		if len(items) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return items, err
		}
		got, err := c.Collect(ctx, ticker, limit-len(items))
		if err != nil {
			logger.Warn(ctx, "Collector failed", "collector", c.Name(), "ticker", ticker, "error", err)
			continue
		}
		for _, it := range got {
			if it.Text == "" {
				continue
			}
			items = append(items, it)
		}
		logger.Debug(ctx, "Collected texts", "collector", c.Name(), "ticker", ticker, "count", len(got))
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Len reports how many collectors are configured.
func (m *MultiCollector) Len() int { return len(m.collectors) }
