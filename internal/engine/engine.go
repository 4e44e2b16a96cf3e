package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"sentiment-trading/internal/backtest"
	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/marketdata"
	"sentiment-trading/internal/metrics"
	"sentiment-trading/internal/sentiment"
	"sentiment-trading/internal/storage"
	"sentiment-trading/internal/store"
	"sentiment-trading/internal/strategy"
	"sentiment-trading/internal/ta"
	"sentiment-trading/internal/tradelog"
	"sentiment-trading/internal/types"
)

const (
	maxMentions       = 10
	mentionTextLimit  = 200
	defaultHistoryLen = 30
)

type Config struct {
	Capital          float64
	RiskPerTrade     float64
	LookbackDays     int
	VolatilityWindow int
	MaxTexts         int
	Benchmark        string
	Journal          bool
}

// ConfigFrom picks the engine settings out of the application config.
func ConfigFrom(cfg *store.Config) Config {
	return Config{
		Capital:          cfg.Strategy.Capital,
		RiskPerTrade:     cfg.Strategy.RiskPerTrade,
		LookbackDays:     cfg.MarketData.LookbackDays,
		VolatilityWindow: cfg.MarketData.VolatilityWindow,
		MaxTexts:         cfg.Collectors.MaxTexts,
		Benchmark:        cfg.Backtest.Benchmark,
		Journal:          true,
	}
}

// Deps are the collaborators the engine drives. Collector, Reporter and
// Metrics may be nil.
type Deps struct {
	Collector interfaces.Collector
	Scorer    interfaces.SentimentScorer
	Market    interfaces.MarketData
	Generator *strategy.Generator
	Simulator *backtest.Simulator
	Store     storage.Store
	Reporter  interfaces.BacktestReporter
	Metrics   *metrics.Recorder
}

type Engine struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

var _ interfaces.Engine = (*Engine)(nil)

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func newEngine(cfg Config, deps Deps, opts ...Option) *Engine {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 365
	}
	if cfg.VolatilityWindow < 2 {
		cfg.VolatilityWindow = 20
	}
	if cfg.RiskPerTrade <= 0 {
		cfg.RiskPerTrade = strategy.DefaultRiskPerTrade
	}
	if deps.Generator == nil {
		deps.Generator = strategy.NewGenerator(strategy.DefaultConfig())
	}
	if deps.Simulator == nil {
		deps.Simulator = backtest.NewSimulator(deps.Generator, backtest.DefaultConfig())
	}
	e := &Engine{cfg: cfg, deps: deps, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	return e
}

func normalize(ticker string) (string, error) {
	t := storage.NormalizeTicker(ticker)
	if t == "" {
		return "", fmt.Errorf("%w: empty ticker", storage.ErrInvalidInput)
	}
	return t, nil
}

// Sentiment collects and scores fresh text for ticker and stores the
// observations.
func (e *Engine) Sentiment(ctx context.Context, ticker string) (*types.SentimentReport, error) {
	t, err := normalize(ticker)
	if err != nil {
		return nil, err
	}
	return e.scoreFresh(ctx, t), nil
}

func (e *Engine) scoreFresh(ctx context.Context, ticker string) *types.SentimentReport {
	rep := &types.SentimentReport{Ticker: ticker}

	var items []types.TextItem
	if e.deps.Collector != nil && e.cfg.MaxTexts > 0 {
		got, err := e.deps.Collector.Collect(ctx, ticker, e.cfg.MaxTexts)
		if err != nil {
			logger.Warn(ctx, "Text collection failed", "ticker", ticker, "error", err)
			rep.Warnings = append(rep.Warnings, "collect texts: "+err.Error())
		}
		items = got
	}
	logger.Debug(ctx, "Texts collected", "ticker", ticker, "count", len(items))

	obs := e.deps.Scorer.BatchScore(ctx, items, ticker)
	rep.Scored = len(obs)
	rep.Sentiment = sentiment.Aggregate(obs)
	rep.Mentions = recentMentions(items)

	if n, err := e.persistObservations(ctx, obs); err != nil {
		logger.ErrorWithErr(ctx, "Failed to persist observations", err, "ticker", ticker, "saved", n)
		rep.Warnings = append(rep.Warnings, "persist observations: "+err.Error())
	}
	return rep
}

// degraded observations are refusals and transport failures; they count in
// the snapshot but are not stored as history.
func degraded(o types.SentimentObservation) bool {
	return strings.HasPrefix(o.Reasoning, "Rate limit") || strings.HasPrefix(o.Reasoning, "Error: ")
}

func (e *Engine) persistObservations(ctx context.Context, obs []types.SentimentObservation) (int, error) {
	if e.deps.Store == nil {
		return 0, nil
	}
	saved := 0
	var errs []error
	for _, o := range obs {
		if degraded(o) {
			continue
		}
		err := e.deps.Store.SaveObservation(ctx, o)
		switch {
		case err == nil:
			saved++
		case errors.Is(err, storage.ErrDuplicateKey):
			// cache hits carry the original timestamp
		default:
			errs = append(errs, err)
		}
	}
	return saved, errors.Join(errs...)
}

func recentMentions(items []types.TextItem) []types.TextItem {
	n := min(len(items), maxMentions)
	out := make([]types.TextItem, 0, n)
	for _, it := range items[:n] {
		if r := []rune(it.Text); len(r) > mentionTextLimit {
			it.Text = string(r[:mentionTextLimit]) + "..."
		}
		out = append(out, it)
	}
	return out
}

// Recommend produces a sized live signal for ticker. Storage and journal
// failures do not fail the call; they are reported in Warnings.
func (e *Engine) Recommend(ctx context.Context, ticker string) (*types.Recommendation, error) {
	start := time.Now()
	t, err := normalize(ticker)
	if err != nil {
		return nil, err
	}

	rep := e.scoreFresh(ctx, t)
	rec := &types.Recommendation{
		Ticker:    t,
		Sentiment: rep.Sentiment,
		Mentions:  rep.Mentions,
		Warnings:  rep.Warnings,
	}

	now := e.now()
	bars, err := e.deps.Market.DailyBars(ctx, t, now.AddDate(0, 0, -e.cfg.LookbackDays), now)
	if err != nil {
		logger.Warn(ctx, "No price history, scoring on sentiment only", "ticker", t, "error", err)
		rec.Warnings = append(rec.Warnings, "market data: "+err.Error())
		bars = nil
	}
	ind := ta.Indicators(bars)

	sig := e.deps.Generator.Generate(t, rec.Sentiment, ind)
	sig.GeneratedAt = now.UTC()
	rec.Signal = sig

	closes := marketdata.Closes(bars)
	if v := ta.RealizedVolatility(closes, e.cfg.VolatilityWindow); !math.IsNaN(v) && !math.IsInf(v, 0) {
		rec.Volatility = &v
	}
	rec.PositionSize = strategy.PositionSize(e.cfg.Capital, sig.Confidence, rec.Volatility, e.cfg.RiskPerTrade)

	if e.deps.Store != nil {
		if err := e.deps.Store.SaveSignal(ctx, sig); err != nil {
			logger.ErrorWithErr(ctx, "Failed to persist signal", err, "ticker", t)
			rec.Warnings = append(rec.Warnings, "persist signal: "+err.Error())
		}
	}
	if e.cfg.Journal {
		if err := tradelog.AppendSignal(sig, rec.PositionSize, rec.Warnings); err != nil {
			logger.ErrorWithErr(ctx, "Failed to journal signal", err, "ticker", t)
			rec.Warnings = append(rec.Warnings, "journal signal: "+err.Error())
		}
	}

	e.deps.Metrics.RecordSignal(string(sig.Type))
	e.deps.Metrics.ObserveDuration("recommend", time.Since(start))
	logger.Signal(ctx, t, string(sig.Type), sig.Confidence, sig.FinalScore,
		"sentiment_score", sig.SentimentScore,
		"technical_score", sig.TechnicalScore,
		"position_size", rec.PositionSize,
		"texts", rep.Scored,
	)
	return rec, nil
}

// Backtest replays stored sentiment for ticker against bars in [from, to].
// A result with Error set is returned without persisting or reporting it.
// A storage failure is returned alongside the otherwise valid result.
func (e *Engine) Backtest(ctx context.Context, ticker string, from, to time.Time) (*types.BacktestResult, error) {
	start := time.Now()
	t, err := normalize(ticker)
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = e.now()
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end %s before start %s", storage.ErrInvalidInput,
			to.Format(types.DateLayout), from.Format(types.DateLayout))
	}

	bars, err := e.deps.Market.DailyBars(ctx, t, from, to)
	if err != nil && !errors.Is(err, marketdata.ErrNoData) {
		e.deps.Metrics.RecordBacktest("error")
		return nil, fmt.Errorf("load bars for %s: %w", t, err)
	}
	bars = marketdata.FilterRange(bars, from, to)

	var bench []types.Candle
	if e.cfg.Benchmark != "" && len(bars) > 0 {
		got, err := e.deps.Market.DailyBars(ctx, e.cfg.Benchmark, from, to)
		if err != nil {
			logger.Warn(ctx, "Benchmark unavailable", "benchmark", e.cfg.Benchmark, "error", err)
		}
		bench = marketdata.FilterRange(got, from, to)
	}

	var history []types.DailySentiment
	if e.deps.Store != nil && len(bars) > 0 {
		obs, err := e.deps.Store.ObservationsBetween(ctx, t, from, endOfDay(to))
		if err != nil {
			e.deps.Metrics.RecordBacktest("error")
			return nil, fmt.Errorf("load sentiment history for %s: %w", t, err)
		}
		history = sentiment.DailyHistory(obs)
	}

	res := e.deps.Simulator.Run(ctx, backtest.Request{
		Ticker:    t,
		From:      from,
		To:        to,
		Bars:      bars,
		Sentiment: history,
		Benchmark: bench,
	})
	e.deps.Metrics.ObserveDuration("backtest", time.Since(start))

	if res.Error != "" {
		e.deps.Metrics.RecordBacktest("no_data")
		return res, nil
	}
	e.deps.Metrics.RecordBacktest("ok")

	if e.cfg.Journal {
		if err := tradelog.AppendTrades(t, res.Trades); err != nil {
			logger.ErrorWithErr(ctx, "Failed to journal backtest trades", err, "ticker", t)
		}
	}
	if e.deps.Reporter != nil {
		if _, err := e.deps.Reporter.WriteBacktest(res); err != nil {
			logger.ErrorWithErr(ctx, "Failed to write backtest report", err, "ticker", t)
		}
	}
	if e.deps.Store != nil {
		if _, err := e.deps.Store.SaveBacktest(ctx, res); err != nil {
			return res, fmt.Errorf("persist backtest: %w", err)
		}
	}
	return res, nil
}

// endOfDay is the last instant of t's UTC calendar day.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
}

// History returns stored daily sentiment for the last days days, ascending.
func (e *Engine) History(ctx context.Context, ticker string, days int) ([]types.DailySentiment, error) {
	t, err := normalize(ticker)
	if err != nil {
		return nil, err
	}
	if e.deps.Store == nil {
		return nil, nil
	}
	if days <= 0 {
		days = defaultHistoryLen
	}
	now := e.now()
	obs, err := e.deps.Store.ObservationsBetween(ctx, t, now.AddDate(0, 0, -days), now)
	if err != nil {
		return nil, fmt.Errorf("load sentiment history for %s: %w", t, err)
	}
	return sentiment.DailyHistory(obs), nil
}
