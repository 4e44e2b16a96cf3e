package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

type Config struct {
	Strategy struct {
		SentimentWeight float64 `yaml:"sentiment_weight" default:"0.6" validate:"gte=0"`
		TechnicalWeight float64 `yaml:"technical_weight" default:"0.4" validate:"gte=0"`
		BuyThreshold    float64 `yaml:"buy_threshold" default:"0.6" validate:"gte=-1,lte=1"`
		SellThreshold   float64 `yaml:"sell_threshold" default:"-0.6" validate:"gte=-1,lte=1"`
		RiskPerTrade    float64 `yaml:"risk_per_trade" default:"0.02" validate:"gt=0,lte=1"`
		Capital         float64 `yaml:"capital" default:"100000" validate:"gt=0"`
	} `yaml:"strategy"`
	Backtest struct {
		InitialCapital      float64 `yaml:"initial_capital" default:"100000" validate:"gt=0"`
		TransactionCostRate float64 `yaml:"transaction_cost_rate" default:"0.001" validate:"gte=0,lt=1"`
		Benchmark           string  `yaml:"benchmark" default:"^GSPC"`
		IndicatorWarmup     int     `yaml:"indicator_warmup" default:"20" validate:"gte=1"`
		ReportDir           string  `yaml:"report_dir" default:"reports"`
	} `yaml:"backtest"`
	Budget struct {
		MaxRequestsPerMinute  int     `yaml:"max_requests_per_minute" default:"60" validate:"gte=1"`
		MaxRequestsPerDay     int     `yaml:"max_requests_per_day" default:"1000" validate:"gte=1"`
		MaxDailyCost          float64 `yaml:"max_daily_cost" default:"10" validate:"gt=0"`
		InputPricePerMillion  float64 `yaml:"input_price_per_million" default:"0.15" validate:"gte=0"`
		OutputPricePerMillion float64 `yaml:"output_price_per_million" default:"0.60" validate:"gte=0"`
		StateBackend          string  `yaml:"state_backend" default:"file" validate:"oneof=file redis none"`
		StatePath             string  `yaml:"state_path" default:"rate_limit_state.json"`
		RedisKey              string  `yaml:"redis_key" default:"budget:state"`
	} `yaml:"budget"`
	Sentiment struct {
		MaxTextsPerRequest int           `yaml:"max_texts_per_request" default:"20" validate:"gte=1"`
		BatchSize          int           `yaml:"batch_size" default:"5" validate:"gte=1"`
		InterCallDelay     time.Duration `yaml:"inter_call_delay" default:"100ms" validate:"gte=0"`
		MaxRetries         int           `yaml:"max_retries" default:"2" validate:"gte=0,lte=10"`
		RetryBackoff       time.Duration `yaml:"retry_backoff" default:"500ms" validate:"gte=0"`
		WaitForMinuteSlot  *bool         `yaml:"wait_for_minute_slot" default:"true"`
		CacheBackend       string        `yaml:"cache_backend" default:"memory" validate:"oneof=memory redis"`
		CacheTTL           time.Duration `yaml:"cache_ttl" default:"24h" validate:"gte=0"`
	} `yaml:"sentiment"`
	LLM struct {
		Provider    string        `yaml:"provider" default:"NOOP"`
		Model       string        `yaml:"model" default:"gpt-4o-mini"`
		MaxTokens   int           `yaml:"max_tokens" default:"200" validate:"gte=1"`
		Temperature float32       `yaml:"temperature" default:"0.3" validate:"gte=0,lte=2"`
		Timeout     time.Duration `yaml:"timeout" default:"30s"`
		Endpoint    string        `yaml:"endpoint"`
	} `yaml:"llm"`
	MarketData struct {
		Provider         string            `yaml:"provider" default:"YAHOO"`
		CSVDir           string            `yaml:"csv_dir" default:"data"`
		LookbackDays     int               `yaml:"lookback_days" default:"365" validate:"gte=30"`
		VolatilityWindow int               `yaml:"volatility_window" default:"20" validate:"gte=2"`
		InstrumentTokens map[string]int    `yaml:"instrument_tokens"`
		Aliases          map[string]string `yaml:"aliases"`
	} `yaml:"market_data"`
	Collectors struct {
		Enabled    *bool         `yaml:"enabled" default:"true"`
		MaxTexts   int           `yaml:"max_texts" default:"20" validate:"gte=0"`
		News       *bool         `yaml:"news" default:"true"`
		Reddit     *bool         `yaml:"reddit" default:"true"`
		Subreddits []string      `yaml:"subreddits"`
		Timeout    time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"collectors"`
	Storage struct {
		Backend string `yaml:"backend" default:"memory" validate:"oneof=memory postgres"`
	} `yaml:"storage"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Validate checks cross-field rules the struct tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed '%s=%s' (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value())
		}
		return err
	}
	if c.Strategy.SentimentWeight+c.Strategy.TechnicalWeight <= 0 {
		return errors.New("strategy weights must not both be zero")
	}
	if c.Strategy.SellThreshold >= c.Strategy.BuyThreshold {
		return fmt.Errorf("strategy.sell_threshold (%.2f) must be below buy_threshold (%.2f)",
			c.Strategy.SellThreshold, c.Strategy.BuyThreshold)
	}
	switch c.LLM.Provider {
	case "OPENAI", "CLAUDE", "NOOP":
	default:
		return fmt.Errorf("llm.provider must be 'OPENAI', 'CLAUDE', or 'NOOP', got '%s'", c.LLM.Provider)
	}
	switch c.MarketData.Provider {
	case "YAHOO", "KITE", "CSV":
	default:
		return fmt.Errorf("market_data.provider must be 'YAHOO', 'KITE', or 'CSV', got '%s'", c.MarketData.Provider)
	}
	if c.MarketData.Provider == "KITE" && len(c.MarketData.InstrumentTokens) == 0 {
		return errors.New("market_data.instrument_tokens cannot be empty for the KITE provider")
	}
	return nil
}

// On reads an optional boolean switch; unset means off.
func On(b *bool) bool { return b != nil && *b }

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(err)
	}
	return &c
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig decodes YAML, fills defaults and validates.
func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}

	c.LLM.Provider = strings.ToUpper(c.LLM.Provider)
	c.MarketData.Provider = strings.ToUpper(c.MarketData.Provider)
	if len(c.Collectors.Subreddits) == 0 {
		c.Collectors.Subreddits = []string{"wallstreetbets", "stocks", "investing"}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}
