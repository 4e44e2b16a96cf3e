package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentiment-trading/internal/storage"
	"sentiment-trading/internal/types"
)

var t0 = time.Date(2024, 4, 1, 9, 30, 0, 0, time.UTC)

func obs(fp, ticker string, at time.Time, score float64) types.SentimentObservation {
	return types.SentimentObservation{
		Fingerprint: fp, Ticker: ticker, Label: types.LabelPositive,
		Score: score, Confidence: 0.8, Timestamp: at,
	}
}

func TestObservationsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.SaveObservation(ctx, obs("b", "aapl", t0.Add(2*time.Hour), 0.2)))
	require.NoError(t, s.SaveObservation(ctx, obs("a", "AAPL", t0, 0.5)))
	require.NoError(t, s.SaveObservation(ctx, obs("c", "AAPL", t0.Add(48*time.Hour), 0.9)))
	require.NoError(t, s.SaveObservation(ctx, obs("d", "MSFT", t0, 0.1)))

	got, err := s.ObservationsBetween(ctx, "AAPL", t0, t0.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Fingerprint)
	assert.Equal(t, "b", got[1].Fingerprint)
	assert.Equal(t, "AAPL", got[1].Ticker)
}

func TestObservationDuplicateAndInvalid(t *testing.T) {
	ctx := context.Background()
	s := New()
	o := obs("a", "AAPL", t0, 0.5)

	require.NoError(t, s.SaveObservation(ctx, o))
	assert.ErrorIs(t, s.SaveObservation(ctx, o), storage.ErrDuplicateKey)
	assert.ErrorIs(t, s.SaveObservation(ctx, obs("", "AAPL", t0, 0)), storage.ErrInvalidInput)
	assert.ErrorIs(t, s.SaveObservation(ctx, obs("x", " ", t0, 0)), storage.ErrInvalidInput)
}

func TestSignals(t *testing.T) {
	ctx := context.Background()
	s := New()
	sig := types.Signal{Ticker: "NVDA", Type: types.SignalBuy, FinalScore: 0.7, GeneratedAt: t0,
		Indicators: types.IndicatorSet{RSI: types.Float(28)}}

	require.NoError(t, s.SaveSignal(ctx, sig))
	assert.ErrorIs(t, s.SaveSignal(ctx, sig), storage.ErrDuplicateKey)
	assert.ErrorIs(t, s.SaveSignal(ctx, types.Signal{Ticker: "NVDA", Type: types.SignalBuy}), storage.ErrInvalidInput)

	got, err := s.SignalsBetween(ctx, "nvda", t0.Add(-time.Minute), t0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 28.0, *got[0].Indicators.RSI)

	got, err = s.SignalsBetween(ctx, "NVDA", t0.Add(time.Second), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBacktests(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := &types.BacktestResult{Ticker: "AAPL", TotalReturn: 5}
	second := &types.BacktestResult{Ticker: "AAPL", TotalReturn: 7}
	id1, err := s.SaveBacktest(ctx, first)
	require.NoError(t, err)
	id2, err := s.SaveBacktest(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, id1, first.ID)
	assert.Greater(t, id2, id1)

	_, err = s.SaveBacktest(ctx, &types.BacktestResult{Ticker: "AAPL", Error: "no data"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	list, err := s.Backtests(ctx, "aapl")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 7.0, list[0].TotalReturn, "newest first")

	one, err := s.Backtest(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, 5.0, one.TotalReturn)

	_, err = s.Backtest(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
