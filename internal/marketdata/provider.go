package marketdata

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/store"
	"sentiment-trading/internal/types"
)

// ErrNoData is returned when a provider has no bars for the requested range.
var ErrNoData = errors.New("no market data")

// New builds the provider named by cfg.MarketData.Provider.
func New(cfg *store.Config) (interfaces.MarketData, error) {
	md := cfg.MarketData
	switch md.Provider {
	case "YAHOO":
		return NewYahoo(md.Aliases), nil
	case "CSV":
		return NewCSV(md.CSVDir), nil
	case "KITE":
		apiKey, token := os.Getenv("KITE_API_KEY"), os.Getenv("KITE_ACCESS_TOKEN")
		if apiKey == "" || token == "" {
			return nil, errors.New("KITE_API_KEY and KITE_ACCESS_TOKEN are required for the KITE provider")
		}
		return NewKite(apiKey, token, md.InstrumentTokens), nil
	default:
		return nil, fmt.Errorf("unknown market data provider %q", md.Provider)
	}
}

// FilterRange keeps the bars whose calendar day lies in [from, to] and
// sorts them oldest first. Zero bounds are open.
func FilterRange(bars []types.Candle, from, to time.Time) []types.Candle {
	lo, hi := "", ""
	if !from.IsZero() {
		lo = from.UTC().Format(types.DateLayout)
	}
	if !to.IsZero() {
		hi = to.UTC().Format(types.DateLayout)
	}

	out := make([]types.Candle, 0, len(bars))
	for _, b := range bars {
		d := b.Day()
		if lo != "" && d < lo {
			continue
		}
		if hi != "" && d > hi {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ts < out[j].Ts })
	return out
}

// Closes extracts closing prices.
func Closes(bars []types.Candle) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func resolve(aliases map[string]string, ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if s, ok := aliases[t]; ok && s != "" {
		return s
	}
	return t
}
