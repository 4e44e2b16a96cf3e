package marketdata

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"

	"sentiment-trading/internal/store"
	"sentiment-trading/internal/types"
)

func date(s string) time.Time {
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func candle(day string, c float64) types.Candle {
	return types.Candle{Ts: date(day).Unix(), Open: c, High: c, Low: c, Close: c, Vol: 100}
}

func TestFilterRangeSortsAndBounds(t *testing.T) {
	bars := []types.Candle{candle("2024-01-05", 5), candle("2024-01-01", 1), candle("2024-01-03", 3), candle("2024-01-09", 9)}

	got := FilterRange(bars, date("2024-01-02"), date("2024-01-05"))
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-03", got[0].Day())
	assert.Equal(t, "2024-01-05", got[1].Day())

	assert.Len(t, FilterRange(bars, time.Time{}, time.Time{}), 4)
}

func TestCSVRoundTripThroughProvider(t *testing.T) {
	dir := t.TempDir()
	bars := []types.Candle{candle("2024-02-01", 10), candle("2024-02-02", 10.5), candle("2024-02-05", 11.25)}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, bars))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "AAPL.csv"), buf.Bytes(), 0o644))

	p := NewCSV(dir)
	got, err := p.DailyBars(context.Background(), "aapl", date("2024-02-02"), date("2024-02-28"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 10.5, got[0].Close)
	assert.Equal(t, 100.0, got[1].Vol)
}

func TestCSVBenchmarkSymbolFileName(t *testing.T) {
	assert.Equal(t, filepath.Join("d", "GSPC.csv"), NewCSV("d").path("^GSPC"))
}

func TestCSVMissingFileIsNoData(t *testing.T) {
	_, err := NewCSV(t.TempDir()).DailyBars(context.Background(), "NOPE", date("2024-01-01"), date("2024-02-01"))
	assert.ErrorIs(t, err, ErrNoData)
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("date,open,high,low,close\n"))
	assert.ErrorContains(t, err, "volume")

	_, err = ReadCSV(strings.NewReader("date,open,high,low,close,volume\n2024-01-01,1,2,x,1,5\n"))
	assert.ErrorContains(t, err, "line 2 low")
}

func TestFromChartBar(t *testing.T) {
	ts := date("2024-03-01").Unix()
	c := fromChartBar(&finance.ChartBar{
		Open:      decimal.RequireFromString("170.10"),
		High:      decimal.RequireFromString("172.5"),
		Low:       decimal.RequireFromString("169"),
		Close:     decimal.RequireFromString("171.25"),
		Volume:    123456,
		Timestamp: int(ts),
	})
	assert.Equal(t, ts, c.Ts)
	assert.Equal(t, 171.25, c.Close)
	assert.Equal(t, 123456.0, c.Vol)
}

type fakeKite struct {
	token int
	rows  []kiteconnect.HistoricalData
	err   error
}

func (f *fakeKite) GetHistoricalData(token int, interval string, _, _ time.Time, _, _ bool) ([]kiteconnect.HistoricalData, error) {
	f.token = token
	if interval != kiteDayInterval {
		return nil, errors.New("unexpected interval " + interval)
	}
	return f.rows, f.err
}

func TestKiteMapsTokensAndRows(t *testing.T) {
	fk := &fakeKite{rows: []kiteconnect.HistoricalData{
		{Date: models.Time{Time: date("2024-01-03")}, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 900},
		{Date: models.Time{Time: date("2024-01-02")}, Open: 1, High: 1, Low: 1, Close: 1, Volume: 800},
	}}
	k := newKite(fk, map[string]int{"INFY": 408065})

	bars, err := k.DailyBars(context.Background(), "infy", date("2024-01-01"), date("2024-01-31"))
	require.NoError(t, err)
	assert.Equal(t, 408065, fk.token)
	require.Len(t, bars, 2)
	assert.Equal(t, "2024-01-02", bars[0].Day())
	assert.Equal(t, 900.0, bars[1].Vol)

	_, err = k.DailyBars(context.Background(), "TCS", date("2024-01-01"), date("2024-01-31"))
	assert.ErrorContains(t, err, "no instrument token")
}

func TestKiteEmptyIsNoData(t *testing.T) {
	k := newKite(&fakeKite{}, map[string]int{"INFY": 1})
	_, err := k.DailyBars(context.Background(), "INFY", date("2024-01-01"), date("2024-01-31"))
	assert.ErrorIs(t, err, ErrNoData)
}

type countingProvider struct {
	calls int
	bars  []types.Candle
}

func (c *countingProvider) DailyBars(context.Context, string, time.Time, time.Time) ([]types.Candle, error) {
	c.calls++
	return c.bars, nil
}

func TestCachedMemoizes(t *testing.T) {
	inner := &countingProvider{bars: []types.Candle{candle("2024-01-02", 1)}}
	c := NewCached(inner)
	ctx := context.Background()

	a, err := c.DailyBars(ctx, "AAPL", date("2024-01-01"), date("2024-01-31"))
	require.NoError(t, err)
	a[0].Close = 99

	b, err := c.DailyBars(ctx, "AAPL", date("2024-01-01"), date("2024-01-31"))
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1.0, b[0].Close, "callers get their own copy")

	c.Clear()
	_, _ = c.DailyBars(ctx, "AAPL", date("2024-01-01"), date("2024-01-31"))
	assert.Equal(t, 2, inner.calls)
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := store.Default()
	cfg.MarketData.Provider = "CSV"
	p, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &CSV{}, p)

	cfg.MarketData.Provider = "KITE"
	t.Setenv("KITE_API_KEY", "")
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestResolveAliases(t *testing.T) {
	assert.Equal(t, "^GSPC", resolve(map[string]string{"SPX": "^GSPC"}, " spx"))
	assert.Equal(t, "AAPL", resolve(nil, "aapl"))
}
