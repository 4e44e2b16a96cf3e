package marketdata

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/types"
)

// CSV reads daily bars from <dir>/<TICKER>.csv with a
// date,open,high,low,close,volume header.
type CSV struct {
	Dir string
}

var _ interfaces.MarketData = (*CSV)(nil)

func NewCSV(dir string) *CSV {
	if dir == "" {
		dir = "data"
	}
	return &CSV{Dir: dir}
}

func (c *CSV) path(ticker string) string {
	name := strings.NewReplacer("^", "", "/", "_").Replace(strings.ToUpper(ticker))
	return filepath.Join(c.Dir, name+".csv")
}

func (c *CSV) DailyBars(ctx context.Context, ticker string, from, to time.Time) ([]types.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(c.path(ticker))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w for %s", ErrNoData, ticker)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.path(ticker), err)
	}
	bars = FilterRange(bars, from, to)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, ticker)
	}
	return bars, nil
}

var csvHeader = []string{"date", "open", "high", "low", "close", "volume"}

// ReadCSV parses bars; the header row is required and columns are matched
// by name.
func ReadCSV(r io.Reader) ([]types.Candle, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range csvHeader {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var bars []types.Candle
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		day, err := time.Parse(types.DateLayout, rec[idx["date"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var vals [5]float64
		for i, col := range csvHeader[1:] {
			v, err := strconv.ParseFloat(rec[idx[col]], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, col, err)
			}
			vals[i] = v
		}
		bars = append(bars, types.Candle{
			Ts: day.Unix(), Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Vol: vals[4],
		})
	}
	return bars, nil
}

// WriteCSV writes bars in the format ReadCSV accepts.
func WriteCSV(w io.Writer, bars []types.Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Day(),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Vol, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
