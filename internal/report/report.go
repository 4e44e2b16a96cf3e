package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/types"
)

const summaryFile = "summary.csv"

var summaryHeader = []string{"ticker", "start_date", "end_date", "initial_capital", "final_value",
	"total_return", "sharpe_ratio", "max_drawdown", "win_rate", "benchmark_return", "vs_benchmark", "total_trades"}

// Writer exports backtest results as CSV files under Dir.
type Writer struct {
	Dir string
}

var _ interfaces.BacktestReporter = (*Writer)(nil)

func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "reports"
	}
	return &Writer{Dir: dir}
}

func (w *Writer) basename(res *types.BacktestResult) string {
	t := strings.NewReplacer("^", "", "/", "_").Replace(res.Ticker)
	return fmt.Sprintf("%s_%s_%s", t, res.StartDate, res.EndDate)
}

// WriteBacktest writes the equity curve and the trades of res and appends
// one row to the summary file. Results carrying an Error are not written.
func (w *Writer) WriteBacktest(res *types.BacktestResult) ([]string, error) {
	if res == nil {
		return nil, errors.New("nil backtest result")
	}
	if res.Error != "" {
		return nil, nil
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, err
	}

	base := filepath.Join(w.Dir, w.basename(res))
	equityPath := base + "_equity.csv"
	if err := writeCSV(equityPath, equityRows(res)); err != nil {
		return nil, fmt.Errorf("write equity curve: %w", err)
	}
	tradesPath := base + "_trades.csv"
	if err := writeCSV(tradesPath, tradeRows(res)); err != nil {
		return nil, fmt.Errorf("write trades: %w", err)
	}
	summaryPath := filepath.Join(w.Dir, summaryFile)
	if err := appendSummary(summaryPath, res); err != nil {
		return nil, fmt.Errorf("append summary: %w", err)
	}
	return []string{equityPath, tradesPath, summaryPath}, nil
}

func equityRows(res *types.BacktestResult) [][]string {
	rows := [][]string{{"date", "value", "cash", "shares", "price", "daily_return"}}
	for i, p := range res.EquityCurve {
		ret := ""
		if i < len(res.DailyReturns) {
			ret = fmt.Sprintf("%.6f", res.DailyReturns[i])
		}
		rows = append(rows, []string{p.Date, money(p.Value), money(p.Cash), strconv.Itoa(p.Shares), price(p.Price), ret})
	}
	return rows
}

func tradeRows(res *types.BacktestResult) [][]string {
	rows := [][]string{{"date", "type", "shares", "price", "cost", "revenue"}}
	for _, t := range res.Trades {
		rows = append(rows, []string{t.Date, string(t.Type), strconv.Itoa(t.Shares), price(t.Price), money(t.Cost), money(t.Revenue)})
	}
	return rows
}

func summaryRow(res *types.BacktestResult) []string {
	return []string{
		res.Ticker, res.StartDate, res.EndDate,
		money(res.InitialCapital), money(res.FinalValue),
		pct(res.TotalReturn), fmt.Sprintf("%.4f", res.SharpeRatio), pct(res.MaxDrawdown),
		pct(res.WinRate), pct(res.BenchmarkReturn), pct(res.VsBenchmark),
		strconv.Itoa(res.TotalTrades),
	}
}

func money(v float64) string { return fmt.Sprintf("%.2f", v) }
func price(v float64) string { return fmt.Sprintf("%.4f", v) }
func pct(v float64) string   { return fmt.Sprintf("%.2f", v) }

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}

func appendSummary(path string, res *types.BacktestResult) error {
	_, statErr := os.Stat(path)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if os.IsNotExist(statErr) {
		if err := w.Write(summaryHeader); err != nil {
			return err
		}
	}
	if err := w.Write(summaryRow(res)); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
