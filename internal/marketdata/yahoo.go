package marketdata

import (
	"context"
	"fmt"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"

	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/types"
)

// Yahoo reads daily bars from the Yahoo Finance chart API.
type Yahoo struct {
	aliases map[string]string
}

var _ interfaces.MarketData = (*Yahoo)(nil)

func NewYahoo(aliases map[string]string) *Yahoo {
	return &Yahoo{aliases: aliases}
}

func (y *Yahoo) DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]types.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol := resolve(y.aliases, ticker)

	// Yahoo treats End as exclusive.
	end := to.AddDate(0, 0, 1)
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&from),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	iter := chart.Get(params)
	var bars []types.Candle
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars = append(bars, fromChartBar(iter.Bar()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo history for %s: %w", symbol, err)
	}

	bars = FilterRange(bars, from, to)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}
	return bars, nil
}

func fromChartBar(b *finance.ChartBar) types.Candle {
	return types.Candle{
		Ts:    int64(b.Timestamp),
		Open:  b.Open.InexactFloat64(),
		High:  b.High.InexactFloat64(),
		Low:   b.Low.InexactFloat64(),
		Close: b.Close.InexactFloat64(),
		Vol:   float64(b.Volume),
	}
}
