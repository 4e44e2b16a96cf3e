package backtest

import (
	"context"
	"time"

	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/strategy"
	"sentiment-trading/internal/ta"
	"sentiment-trading/internal/types"
)

// ErrNoData is the Error value of a result that had no bars to replay.
const ErrNoData = "no data"

type Config struct {
	InitialCapital      float64
	TransactionCostRate float64
	RiskPerTrade        float64
	// IndicatorWarmup is the number of bars, today included, needed before
	// indicators are computed at all.
	IndicatorWarmup int
}

func DefaultConfig() Config {
	return Config{
		InitialCapital:      100000,
		TransactionCostRate: 0.001,
		RiskPerTrade:        strategy.DefaultRiskPerTrade,
		IndicatorWarmup:     20,
	}
}

// Request is one replay. Bars must already be restricted to [From, To].
type Request struct {
	Ticker    string
	From, To  time.Time
	Bars      []types.Candle
	Sentiment []types.DailySentiment
	Benchmark []types.Candle
}

// Simulator replays daily bars through the signal generator with a
// long-only, all-in/all-out portfolio.
type Simulator struct {
	gen        *strategy.Generator
	cfg        Config
	indicators func([]types.Candle) types.IndicatorSet
}

type Option func(*Simulator)

// WithIndicators replaces the indicator computation for a bar window.
func WithIndicators(fn func([]types.Candle) types.IndicatorSet) Option {
	return func(s *Simulator) { s.indicators = fn }
}

func NewSimulator(gen *strategy.Generator, cfg Config, opts ...Option) *Simulator {
	d := DefaultConfig()
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = d.InitialCapital
	}
	if cfg.TransactionCostRate < 0 {
		cfg.TransactionCostRate = 0
	}
	if cfg.RiskPerTrade <= 0 {
		cfg.RiskPerTrade = d.RiskPerTrade
	}
	if cfg.IndicatorWarmup <= 0 {
		cfg.IndicatorWarmup = d.IndicatorWarmup
	}
	s := &Simulator{gen: gen, cfg: cfg, indicators: ta.Indicators}
	for _, o := range opts {
		o(s)
	}
	return s
}

type portfolio struct {
	cash   float64
	shares int
}

func (p portfolio) value(price float64) float64 { return p.cash + float64(p.shares)*price }

// Run replays req day by day. An empty bar series yields a result carrying
// only the ticker and Error "no data".
func (s *Simulator) Run(ctx context.Context, req Request) *types.BacktestResult {
	if len(req.Bars) == 0 {
		return &types.BacktestResult{Ticker: req.Ticker, Error: ErrNoData}
	}

	timeline := NewTimeline(req.Sentiment)
	tc := s.cfg.TransactionCostRate
	pf := portfolio{cash: s.cfg.InitialCapital}

	var trades []types.Trade
	curve := make([]types.EquityPoint, 0, len(req.Bars))

	for i, bar := range req.Bars {
		day := bar.Day()
		price := bar.Close
		snap := timeline.AsOf(day)

		var ind types.IndicatorSet
		if i+1 >= s.cfg.IndicatorWarmup {
			ind = s.indicators(req.Bars[:i+1])
		}

		sig := s.gen.Generate(req.Ticker, snap, ind)

		switch {
		case sig.Type == types.SignalBuy && pf.cash > 0 && price > 0:
			size := strategy.PositionSize(pf.cash, sig.Confidence, nil, s.cfg.RiskPerTrade)
			shares := int(size / price)
			cost := float64(shares) * price * (1 + tc)
			if shares > 0 && cost <= pf.cash {
				pf.cash -= cost
				pf.shares += shares
				trades = append(trades, types.Trade{Date: day, Type: types.SignalBuy, Shares: shares, Price: price, Cost: cost})
				logger.Trade(ctx, req.Ticker, string(types.SignalBuy), shares, price, "date", day, "cost", cost)
			}
		case sig.Type == types.SignalSell && pf.shares > 0:
			shares := pf.shares
			revenue := float64(shares) * price * (1 - tc)
			pf.cash += revenue
			pf.shares = 0
			trades = append(trades, types.Trade{Date: day, Type: types.SignalSell, Shares: shares, Price: price, Revenue: revenue})
			logger.Trade(ctx, req.Ticker, string(types.SignalSell), shares, price, "date", day, "revenue", revenue)
		}

		curve = append(curve, types.EquityPoint{
			Date:   day,
			Value:  pf.value(price),
			Cash:   pf.cash,
			Shares: pf.shares,
			Price:  price,
		})
	}

	returns := dailyReturns(curve)
	final := curve[len(curve)-1].Value
	total := finite((final/s.cfg.InitialCapital - 1) * 100)
	bench := benchmarkReturn(req.Benchmark)

	res := &types.BacktestResult{
		Ticker:          req.Ticker,
		StartDate:       dateOr(req.From, req.Bars[0].Day()),
		EndDate:         dateOr(req.To, req.Bars[len(req.Bars)-1].Day()),
		InitialCapital:  s.cfg.InitialCapital,
		FinalValue:      final,
		TotalReturn:     total,
		SharpeRatio:     sharpeRatio(returns),
		MaxDrawdown:     maxDrawdown(returns),
		WinRate:         winRate(trades),
		BenchmarkReturn: bench,
		VsBenchmark:     total - bench,
		DailyReturns:    returns,
		Trades:          trades,
		EquityCurve:     curve,
		TotalTrades:     len(trades),
	}

	logger.Info(ctx, "Backtest completed",
		"ticker", req.Ticker,
		"days", len(curve),
		"trades", res.TotalTrades,
		"total_return", res.TotalReturn,
		"sharpe_ratio", res.SharpeRatio,
		"max_drawdown", res.MaxDrawdown)
	return res
}

func dateOr(t time.Time, fallback string) string {
	if t.IsZero() {
		return fallback
	}
	return t.Format(types.DateLayout)
}
