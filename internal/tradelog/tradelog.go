package tradelog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sentiment-trading/internal/types"
)

var mu sync.Mutex

const timeLayout = "2006-01-02 15:04:05"

// SignalEntry is one journaled recommendation.
type SignalEntry struct {
	Time           string
	Ticker         string
	Action         types.SignalType
	Confidence     float64
	FinalScore     float64
	SentimentScore float64
	TechnicalScore float64
	PositionSize   float64
	Reasoning      string
	GeneratedAt    string
	Indicators     map[string]float64 `json:",omitempty"`
	Warnings       []string           `json:",omitempty"`
}

// TradeEntry is one simulated fill from a backtest run.
type TradeEntry struct {
	Time    string
	Ticker  string
	Date    string
	Side    types.SignalType
	Shares  int
	Price   float64
	Cost    float64 `json:",omitempty"`
	Revenue float64 `json:",omitempty"`
}

func logDir() string {
	if v := os.Getenv("TRADER_LOG_DIR"); v != "" {
		return v
	}
	return "logs"
}

func signalsFilepath(t time.Time) string {
	return filepath.Join(logDir(), "signals", t.UTC().Format(types.DateLayout)+".jsonl")
}

func tradesFilepath(t time.Time) string {
	return filepath.Join(logDir(), "trades", t.UTC().Format(types.DateLayout)+".jsonl")
}

// AppendSignal journals a recommendation under today's signals file.
func AppendSignal(sig types.Signal, positionSize float64, warnings []string) error {
	now := time.Now().UTC()
	e := SignalEntry{
		Time:           now.Format(timeLayout),
		Ticker:         sig.Ticker,
		Action:         sig.Type,
		Confidence:     sig.Confidence,
		FinalScore:     sig.FinalScore,
		SentimentScore: sig.SentimentScore,
		TechnicalScore: sig.TechnicalScore,
		PositionSize:   positionSize,
		Reasoning:      sig.Reasoning,
		Indicators:     sig.Indicators.Map(),
		Warnings:       warnings,
	}
	if !sig.GeneratedAt.IsZero() {
		e.GeneratedAt = sig.GeneratedAt.UTC().Format(time.RFC3339)
	}
	return appendLines(signalsFilepath(now), e)
}

// AppendTrades journals the fills of one backtest run.
func AppendTrades(ticker string, trades []types.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	now := time.Now().UTC()
	entries := make([]any, 0, len(trades))
	for _, tr := range trades {
		entries = append(entries, TradeEntry{
			Time:    now.Format(timeLayout),
			Ticker:  ticker,
			Date:    tr.Date,
			Side:    tr.Type,
			Shares:  tr.Shares,
			Price:   tr.Price,
			Cost:    tr.Cost,
			Revenue: tr.Revenue,
		})
	}
	return appendLines(tradesFilepath(now), entries...)
}

func appendLines(p string, entries ...any) error {
	mu.Lock()
	defer mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(f, string(b)); err != nil {
			return err
		}
	}
	return nil
}

// ReadSignals returns the signals journaled on day. A missing file yields
// no entries; malformed lines are skipped.
func ReadSignals(day time.Time) ([]SignalEntry, error) {
	f, err := os.Open(signalsFilepath(day))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []SignalEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e SignalEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

// CompressOlder gzips journal files last modified more than retentionDays
// ago and removes the originals.
func CompressOlder(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return filepath.WalkDir(logDir(), func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".jsonl" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
