package interfaces

import "sentiment-trading/internal/types"

// BacktestReporter writes a finished backtest to disk and returns the paths.
type BacktestReporter interface {
	WriteBacktest(res *types.BacktestResult) ([]string, error)
}
