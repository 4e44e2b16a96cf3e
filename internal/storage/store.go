package storage

import (
	"context"
	"strings"
	"time"

	"sentiment-trading/internal/types"
)

// Store persists scored observations, signals and backtest results.
//
// Observations are keyed by (fingerprint, timestamp) and signals by
// (ticker, generated_at); re-saving either returns ErrDuplicateKey.
// Range queries are inclusive and ordered oldest first.
type Store interface {
	SaveObservation(ctx context.Context, o types.SentimentObservation) error
	ObservationsBetween(ctx context.Context, ticker string, from, to time.Time) ([]types.SentimentObservation, error)

	SaveSignal(ctx context.Context, s types.Signal) error
	SignalsBetween(ctx context.Context, ticker string, from, to time.Time) ([]types.Signal, error)

	// SaveBacktest stores res, sets res.ID and returns it.
	SaveBacktest(ctx context.Context, res *types.BacktestResult) (int64, error)
	// Backtests lists results for ticker, newest first.
	Backtests(ctx context.Context, ticker string) ([]types.BacktestResult, error)
	// Backtest loads one result by ID.
	Backtest(ctx context.Context, id int64) (*types.BacktestResult, error)

	Close()
}

// NormalizeTicker upper-cases and trims a ticker for use as a key.
func NormalizeTicker(t string) string { return strings.ToUpper(strings.TrimSpace(t)) }

// ValidateObservation rejects records that cannot be keyed.
func ValidateObservation(o types.SentimentObservation) error {
	if o.Fingerprint == "" || NormalizeTicker(o.Ticker) == "" || o.Timestamp.IsZero() {
		return ErrInvalidInput
	}
	return nil
}

func ValidateSignal(s types.Signal) error {
	if NormalizeTicker(s.Ticker) == "" || s.GeneratedAt.IsZero() || s.Type == "" {
		return ErrInvalidInput
	}
	return nil
}

// ValidateBacktest rejects nil and error results; only completed runs are
// stored.
func ValidateBacktest(res *types.BacktestResult) error {
	if res == nil || NormalizeTicker(res.Ticker) == "" || res.Error != "" {
		return ErrInvalidInput
	}
	return nil
}
