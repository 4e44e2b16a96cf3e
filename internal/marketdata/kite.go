package marketdata

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/types"
)

const kiteDayInterval = "day"

type historicalClient interface {
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

// Kite reads daily bars from the Kite Connect historical API. Tickers are
// mapped to instrument tokens through a fixed table.
type Kite struct {
	kc     historicalClient
	tokens *instrumentMapper
}

var _ interfaces.MarketData = (*Kite)(nil)

func NewKite(apiKey, accessToken string, tokens map[string]int) *Kite {
	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(accessToken)
	return newKite(kc, tokens)
}

func newKite(kc historicalClient, tokens map[string]int) *Kite {
	m := newInstrumentMapper()
	for sym, tok := range tokens {
		m.addMapping(sym, tok)
	}
	return &Kite{kc: kc, tokens: m}
}

func (k *Kite) DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]types.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	token, ok := k.tokens.getToken(ticker)
	if !ok {
		return nil, fmt.Errorf("no instrument token configured for %s", ticker)
	}

	rows, err := k.kc.GetHistoricalData(token, kiteDayInterval, from, to, false, false)
	if err != nil {
		return nil, fmt.Errorf("kite history for %s: %w", ticker, err)
	}

	bars := make([]types.Candle, 0, len(rows))
	for _, r := range rows {
		bars = append(bars, types.Candle{
			Ts:    r.Date.Unix(),
			Open:  r.Open,
			High:  r.High,
			Low:   r.Low,
			Close: r.Close,
			Vol:   float64(r.Volume),
		})
	}
	bars = FilterRange(bars, from, to)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, ticker)
	}
	return bars, nil
}

// instrumentMapper maps tradingsymbols to Kite instrument tokens.
type instrumentMapper struct {
	mu            sync.RWMutex
	symbolToToken map[string]int
}

func newInstrumentMapper() *instrumentMapper {
	return &instrumentMapper{symbolToToken: make(map[string]int)}
}

func (im *instrumentMapper) addMapping(symbol string, token int) {
	im.mu.Lock()
	defer im.mu.Unlock()
	im.symbolToToken[strings.ToUpper(symbol)] = token
}

func (im *instrumentMapper) getToken(symbol string) (int, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	t, ok := im.symbolToToken[strings.ToUpper(strings.TrimSpace(symbol))]
	return t, ok
}
