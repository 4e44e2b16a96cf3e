package engineobs

import (
	"context"
	"time"

	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/trace"
	"sentiment-trading/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Recommend(ctx context.Context, ticker string) (*types.Recommendation, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Recommend")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Starting recommendation", "ticker", ticker)

	rec, err := oe.engine.Recommend(ctx, ticker)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Recommendation failed", err,
			"ticker", ticker,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Recommendation completed",
		"ticker", ticker,
		"signal", rec.Signal.Type,
		"confidence", rec.Signal.Confidence,
		"position_size", rec.PositionSize,
		"warnings", len(rec.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

func (oe *observableEngine) Backtest(ctx context.Context, ticker string, from, to time.Time) (*types.BacktestResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Backtest")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Starting backtest",
		"ticker", ticker,
		"from", from.Format(types.DateLayout),
		"to", to.Format(types.DateLayout),
	)

	res, err := oe.engine.Backtest(ctx, ticker, from, to)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Backtest failed", err,
			"ticker", ticker,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return res, err
	}
	if res.Error != "" {
		logger.InfoSkip(ctx, 1, "Backtest produced no result",
			"ticker", ticker,
			"reason", res.Error,
		)
		return res, nil
	}

	logger.InfoSkip(ctx, 1, "Backtest completed",
		"ticker", ticker,
		"total_return", res.TotalReturn,
		"sharpe_ratio", res.SharpeRatio,
		"total_trades", res.TotalTrades,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (oe *observableEngine) Sentiment(ctx context.Context, ticker string) (*types.SentimentReport, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Sentiment")
	defer span.End()

	rep, err := oe.engine.Sentiment(ctx, ticker)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Sentiment scoring failed", err, "ticker", ticker)
		return nil, err
	}
	logger.InfoSkip(ctx, 1, "Sentiment scored",
		"ticker", ticker,
		"overall", rep.Sentiment.Overall,
		"texts", rep.Scored,
	)
	return rep, nil
}

func (oe *observableEngine) History(ctx context.Context, ticker string, days int) ([]types.DailySentiment, error) {
	ctx, span := trace.StartSpan(ctx, "engine.History")
	defer span.End()

	hist, err := oe.engine.History(ctx, ticker, days)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Sentiment history failed", err, "ticker", ticker)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Sentiment history loaded", "ticker", ticker, "days", len(hist))
	return hist, nil
}
