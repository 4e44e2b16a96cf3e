package types

import "time"

// Candle is one daily OHLCV bar. Ts is the bar's unix timestamp in seconds.
type Candle struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
}

// Time returns the bar timestamp in UTC.
func (c Candle) Time() time.Time { return time.Unix(c.Ts, 0).UTC() }

// Day returns the bar's calendar date as YYYY-MM-DD.
func (c Candle) Day() string { return c.Time().Format(DateLayout) }

// DateLayout is the calendar-date key used across the module.
const DateLayout = "2006-01-02"

type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

type Outlook string

const (
	OutlookBullish Outlook = "bullish"
	OutlookBearish Outlook = "bearish"
	OutlookNeutral Outlook = "neutral"
)

type SignalType string

const (
	SignalBuy  SignalType = "buy"
	SignalSell SignalType = "sell"
	SignalHold SignalType = "hold"
)

// TextItem is one raw snippet supplied by a collector.
type TextItem struct {
	Text     string            `json:"text"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SentimentObservation is the scored result for a single text.
type SentimentObservation struct {
	Fingerprint string    `json:"fingerprint"`
	Ticker      string    `json:"ticker,omitempty"`
	Source      string    `json:"source,omitempty"`
	Label       Label     `json:"sentiment"`
	Score       float64   `json:"score"`
	Confidence  float64   `json:"confidence"`
	Reasoning   string    `json:"reasoning"`
	Timestamp   time.Time `json:"timestamp"`
}

// SentimentSnapshot aggregates observations for one ticker.
type SentimentSnapshot struct {
	Overall            Outlook `json:"overall_sentiment"`
	AverageScore       float64 `json:"average_score"`
	WeightedScore      float64 `json:"weighted_score"`
	Confidence         float64 `json:"confidence"`
	PositiveCount      int     `json:"positive_count"`
	NegativeCount      int     `json:"negative_count"`
	NeutralCount       int     `json:"neutral_count"`
	TotalCount         int     `json:"total_count"`
	PositivePercentage float64 `json:"positive_percentage"`
	NegativePercentage float64 `json:"negative_percentage"`
}

// DailySentiment is the per-date aggregate used for "as of" lookups.
type DailySentiment struct {
	Date          string  `json:"date"`
	AvgScore      float64 `json:"avg_sentiment_score"`
	AvgConfidence float64 `json:"avg_confidence"`
	Count         int     `json:"mention_count"`
}

// IndicatorSet holds trailing indicator values. A nil field means there was
// not enough history to compute it.
type IndicatorSet struct {
	RSI          *float64 `json:"RSI,omitempty"`
	MACD         *float64 `json:"MACD,omitempty"`
	MACDSignal   *float64 `json:"MACD_signal,omitempty"`
	MACDDiff     *float64 `json:"MACD_diff,omitempty"`
	MA20         *float64 `json:"MA_20,omitempty"`
	MA50         *float64 `json:"MA_50,omitempty"`
	MA200        *float64 `json:"MA_200,omitempty"`
	BBHigh       *float64 `json:"BB_high,omitempty"`
	BBLow        *float64 `json:"BB_low,omitempty"`
	BBMid        *float64 `json:"BB_mid,omitempty"`
	CurrentPrice *float64 `json:"current_price,omitempty"`
	Volume       *float64 `json:"volume,omitempty"`
	VolumeSMA    *float64 `json:"volume_sma,omitempty"`
}

// Empty reports whether no field is present.
func (s IndicatorSet) Empty() bool {
	for _, v := range s.fields() {
		if v != nil {
			return false
		}
	}
	return true
}

// Map flattens present fields, keyed by their wire names.
func (s IndicatorSet) Map() map[string]float64 {
	names := []string{"RSI", "MACD", "MACD_signal", "MACD_diff", "MA_20", "MA_50", "MA_200",
		"BB_high", "BB_low", "BB_mid", "current_price", "volume", "volume_sma"}
	out := make(map[string]float64)
	for i, v := range s.fields() {
		if v != nil {
			out[names[i]] = *v
		}
	}
	return out
}

func (s IndicatorSet) fields() []*float64 {
	return []*float64{s.RSI, s.MACD, s.MACDSignal, s.MACDDiff, s.MA20, s.MA50, s.MA200,
		s.BBHigh, s.BBLow, s.BBMid, s.CurrentPrice, s.Volume, s.VolumeSMA}
}

// Float returns a pointer to v, for building indicator sets.
func Float(v float64) *float64 { return &v }

// Signal is one fused trading decision.
type Signal struct {
	Ticker         string       `json:"ticker"`
	Type           SignalType   `json:"signal_type"`
	Confidence     float64      `json:"confidence"`
	SentimentScore float64      `json:"sentiment_score"`
	TechnicalScore float64      `json:"technical_score"`
	FinalScore     float64      `json:"final_score"`
	Reasoning      string       `json:"reasoning"`
	Indicators     IndicatorSet `json:"technical_indicators"`
	GeneratedAt    time.Time    `json:"timestamp,omitempty"`
}

// SentimentReport is a freshly scored snapshot plus the texts behind it.
type SentimentReport struct {
	Ticker    string            `json:"ticker"`
	Sentiment SentimentSnapshot `json:"sentiment_data"`
	Mentions  []TextItem        `json:"recent_mentions"`
	Scored    int               `json:"scored"`
	Warnings  []string          `json:"warnings,omitempty"`
}

// Recommendation is the live-mode output for one ticker.
type Recommendation struct {
	Ticker       string            `json:"ticker"`
	Signal       Signal            `json:"signal"`
	Sentiment    SentimentSnapshot `json:"sentiment_data"`
	PositionSize float64           `json:"position_size"`
	Volatility   *float64          `json:"volatility,omitempty"`
	Mentions     []TextItem        `json:"recent_mentions"`
	Warnings     []string          `json:"warnings,omitempty"`
}

// Trade is one simulated fill.
type Trade struct {
	Date    string     `json:"date"`
	Type    SignalType `json:"type"`
	Shares  int        `json:"shares"`
	Price   float64    `json:"price"`
	Cost    float64    `json:"cost,omitempty"`
	Revenue float64    `json:"revenue,omitempty"`
}

// EquityPoint is the end-of-day portfolio state.
type EquityPoint struct {
	Date   string  `json:"date"`
	Value  float64 `json:"value"`
	Cash   float64 `json:"cash"`
	Shares int     `json:"shares"`
	Price  float64 `json:"price"`
}

// BacktestResult is the summary of one simulation run. When Error is set no
// metrics were computed.
type BacktestResult struct {
	ID              int64         `json:"id,omitempty"`
	Ticker          string        `json:"ticker"`
	Error           string        `json:"error,omitempty"`
	StartDate       string        `json:"start_date,omitempty"`
	EndDate         string        `json:"end_date,omitempty"`
	InitialCapital  float64       `json:"initial_capital,omitempty"`
	FinalValue      float64       `json:"final_value,omitempty"`
	TotalReturn     float64       `json:"total_return"`
	SharpeRatio     float64       `json:"sharpe_ratio"`
	MaxDrawdown     float64       `json:"max_drawdown"`
	WinRate         float64       `json:"win_rate"`
	BenchmarkReturn float64       `json:"benchmark_return"`
	VsBenchmark     float64       `json:"vs_benchmark"`
	DailyReturns    []float64     `json:"daily_returns,omitempty"`
	Trades          []Trade       `json:"trades,omitempty"`
	EquityCurve     []EquityPoint `json:"daily_values,omitempty"`
	TotalTrades     int           `json:"total_trades"`
}
