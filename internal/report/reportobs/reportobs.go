package reportobs

import (
	"context"

	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/trace"
	"sentiment-trading/internal/types"
)

type observableReporter struct {
	reporter interfaces.BacktestReporter
}

var _ interfaces.BacktestReporter = (*observableReporter)(nil)

func Wrap(reporter interfaces.BacktestReporter) interfaces.BacktestReporter {
	return &observableReporter{reporter: reporter}
}

func (r *observableReporter) WriteBacktest(res *types.BacktestResult) ([]string, error) {
	ctx, span := trace.StartSpan(context.Background(), "report.WriteBacktest")
	defer span.End()

	ticker := ""
	if res != nil {
		ticker = res.Ticker
	}
	logger.DebugSkip(ctx, 1, "Writing backtest report", "ticker", ticker)

	paths, err := r.reporter.WriteBacktest(res)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Backtest report failed", err, "ticker", ticker)
		return nil, err
	}
	if len(paths) == 0 {
		logger.InfoSkip(ctx, 1, "Nothing to report for backtest", "ticker", ticker)
		return nil, nil
	}

	logger.InfoSkip(ctx, 1, "Backtest report written", "ticker", ticker, "files", paths)
	return paths, nil
}
