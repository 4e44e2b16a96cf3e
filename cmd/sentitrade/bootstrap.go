package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"sentiment-trading/internal/backtest"
	"sentiment-trading/internal/budget"
	"sentiment-trading/internal/engine"
	"sentiment-trading/internal/engine/engineobs"
	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/llm"
	"sentiment-trading/internal/llm/claude"
	"sentiment-trading/internal/llm/llmobs"
	"sentiment-trading/internal/llm/noop"
	"sentiment-trading/internal/llm/openai"
	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/marketdata"
	"sentiment-trading/internal/marketdata/marketdataobs"
	"sentiment-trading/internal/metrics"
	"sentiment-trading/internal/news"
	"sentiment-trading/internal/report"
	"sentiment-trading/internal/report/reportobs"
	"sentiment-trading/internal/sentiment"
	"sentiment-trading/internal/storage"
	"sentiment-trading/internal/storage/memory"
	"sentiment-trading/internal/storage/postgres"
	"sentiment-trading/internal/store"
	"sentiment-trading/internal/strategy"
	"sentiment-trading/internal/trace"
	"sentiment-trading/internal/tradelog"
)

// app holds everything a command needs; build it with newApp.
type app struct {
	cfg     *store.Config
	metrics *metrics.Recorder
	scorer  *sentiment.Scorer
	engine  interfaces.Engine

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// initializeSystem loads .env and sets up the logger and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn(ctx, "Config file not found, using defaults", "path", path)
		return store.Default(), nil
	}
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs gzips journal files past TRADER_LOG_RETENTION_DAYS
func compressOldLogs(ctx context.Context) {
	v := os.Getenv("TRADER_LOG_RETENTION_DAYS")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn(ctx, "Ignoring TRADER_LOG_RETENTION_DAYS", "value", v)
		return
	}
	if err := tradelog.CompressOlder(n); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}

func newApp(ctx context.Context, cfg *store.Config, rec *metrics.Recorder) (*app, error) {
	a := &app{cfg: cfg, metrics: rec}

	var rdb *redis.Client
	if cfg.Budget.StateBackend == "redis" || cfg.Sentiment.CacheBackend == "redis" {
		rdb = initializeRedis(ctx)
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	}

	gateway := initializeGateway(ctx, cfg, rdb, rec)
	cache := initializeCache(cfg, rdb)
	if mc, ok := cache.(*sentiment.MemoryCache); ok {
		a.closers = append(a.closers, mc.Close)
	}
	a.scorer = sentiment.NewScorer(initializeClient(ctx, cfg), gateway, cache, sentimentOptions(cfg),
		sentiment.WithMetrics(rec))

	st, err := initializeStorage(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, st.Close)

	md, err := initializeMarketData(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.engine = initializeEngine(cfg, engine.Deps{
		Collector: initializeCollectors(ctx, cfg),
		Scorer:    a.scorer,
		Market:    md,
		Store:     st,
		Reporter:  reportobs.Wrap(report.NewWriter(cfg.Backtest.ReportDir)),
		Metrics:   rec,
	})
	return a, nil
}

func initializeRedis(ctx context.Context) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	logger.Info(ctx, "Using Redis", "addr", addr)
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
}

func initializeGateway(ctx context.Context, cfg *store.Config, rdb *redis.Client, rec *metrics.Recorder) *budget.Gateway {
	limits := budget.Limits{
		MaxRequestsPerMinute:  cfg.Budget.MaxRequestsPerMinute,
		MaxRequestsPerDay:     cfg.Budget.MaxRequestsPerDay,
		MaxDailyCost:          cfg.Budget.MaxDailyCost,
		InputPricePerMillion:  cfg.Budget.InputPricePerMillion,
		OutputPricePerMillion: cfg.Budget.OutputPricePerMillion,
	}

	var st budget.StateStore
	switch cfg.Budget.StateBackend {
	case "redis":
		st = budget.NewRedisStore(rdb, cfg.Budget.RedisKey)
	case "file":
		st = budget.NewFileStore(cfg.Budget.StatePath)
	default:
		logger.Warn(ctx, "Budget state is not persisted; counters reset on restart")
	}
	return budget.NewGateway(ctx, limits, st, budget.WithMetrics(rec))
}

func initializeCache(cfg *store.Config, rdb *redis.Client) sentiment.Cache {
	if cfg.Sentiment.CacheBackend == "redis" {
		return sentiment.NewRedisCache(rdb, "sentiment:", cfg.Sentiment.CacheTTL)
	}
	return sentiment.NewMemoryCache(cfg.Sentiment.CacheTTL)
}

func sentimentOptions(cfg *store.Config) sentiment.Options {
	return sentiment.Options{
		MaxTextsPerRequest: cfg.Sentiment.MaxTextsPerRequest,
		BatchSize:          cfg.Sentiment.BatchSize,
		InterCallDelay:     cfg.Sentiment.InterCallDelay,
		MaxRetries:         cfg.Sentiment.MaxRetries,
		RetryBackoff:       cfg.Sentiment.RetryBackoff,
		WaitForMinuteSlot:  store.On(cfg.Sentiment.WaitForMinuteSlot),
		Temperature:        cfg.LLM.Temperature,
		MaxTokens:          cfg.LLM.MaxTokens,
	}
}

// initializeClient picks the external scorer and wraps it with observability
func initializeClient(ctx context.Context, cfg *store.Config) interfaces.SentimentClient {
	opts := llm.Options{
		Model:    cfg.LLM.Model,
		Endpoint: cfg.LLM.Endpoint,
		Timeout:  cfg.LLM.Timeout,
	}

	var client interfaces.SentimentClient
	switch cfg.LLM.Provider {
	case "OPENAI":
		client = openai.New(opts)
	case "CLAUDE":
		if strings.HasPrefix(opts.Model, "gpt") {
			opts.Model = ""
		}
		client = claude.New(opts)
	default:
		client = noop.New()
		logger.Warn(ctx, "No scorer provider configured - using Noop client (always neutral)")
	}
	return llmobs.Wrap(client, cfg.LLM.Provider)
}

func initializeStorage(ctx context.Context, cfg *store.Config) (storage.Store, error) {
	if cfg.Storage.Backend != "postgres" {
		return memory.New(), nil
	}
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, errors.New("storage.backend is postgres but DATABASE_URL is not set")
	}
	st, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres store: %w", err)
	}
	logger.Info(ctx, "Using Postgres storage")
	return st, nil
}

func initializeMarketData(ctx context.Context, cfg *store.Config) (interfaces.MarketData, error) {
	md, err := marketdata.New(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Using market data provider", "provider", cfg.MarketData.Provider)
	return marketdataobs.Wrap(marketdata.NewCached(md)), nil
}

func initializeCollectors(ctx context.Context, cfg *store.Config) interfaces.Collector {
	if !store.On(cfg.Collectors.Enabled) {
		logger.Info(ctx, "Text collection disabled")
		return nil
	}
	var cs []interfaces.Collector
	if store.On(cfg.Collectors.News) {
		cs = append(cs, news.NewScraper(cfg.Collectors.Timeout, news.DefaultSources()...))
	}
	if store.On(cfg.Collectors.Reddit) {
		cs = append(cs, news.NewReddit("", cfg.Collectors.Subreddits, cfg.Collectors.Timeout))
	}
	multi := news.NewMultiCollector(cs...)
	logger.Debug(ctx, "Collectors configured", "count", multi.Len())
	return multi
}

// initializeEngine builds the engine and wraps it with observability
func initializeEngine(cfg *store.Config, deps engine.Deps) interfaces.Engine {
	deps.Generator = strategy.NewGenerator(strategy.Config{
		SentimentWeight: cfg.Strategy.SentimentWeight,
		TechnicalWeight: cfg.Strategy.TechnicalWeight,
		BuyThreshold:    cfg.Strategy.BuyThreshold,
		SellThreshold:   cfg.Strategy.SellThreshold,
	})
	deps.Simulator = backtest.NewSimulator(deps.Generator, backtest.Config{
		InitialCapital:      cfg.Backtest.InitialCapital,
		TransactionCostRate: cfg.Backtest.TransactionCostRate,
		RiskPerTrade:        cfg.Strategy.RiskPerTrade,
		IndicatorWarmup:     cfg.Backtest.IndicatorWarmup,
	})
	return engineobs.Wrap(engine.New(engine.ConfigFrom(cfg), deps))
}

// serveMetrics exposes /metrics on addr until the returned stop is called
func serveMetrics(ctx context.Context, addr string, rec *metrics.Recorder) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Metrics server failed", err, "addr", addr)
		}
	}()
	logger.Info(ctx, "Serving metrics", "addr", addr)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
