package marketdataobs

import (
	"context"
	"time"

	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/trace"
	"sentiment-trading/internal/types"
)

// observableMarketData wraps a MarketData provider with logging and tracing
type observableMarketData struct {
	md interfaces.MarketData
}

var _ interfaces.MarketData = (*observableMarketData)(nil)

// Wrap wraps a provider with observability middleware
func Wrap(md interfaces.MarketData) interfaces.MarketData {
	return &observableMarketData{md: md}
}

// DailyBars fetches bars with observability
func (o *observableMarketData) DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.DailyBars")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching daily bars", "ticker", ticker,
		"from", from.Format(types.DateLayout), "to", to.Format(types.DateLayout))

	bars, err := o.md.DailyBars(ctx, ticker, from, to)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch daily bars", err, "ticker", ticker)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Daily bars fetched successfully", "ticker", ticker, "count", len(bars))
	return bars, nil
}
