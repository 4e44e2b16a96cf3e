package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sentiment-trading/internal/storage"
	"sentiment-trading/internal/types"
)

// Store implements storage.Store on PostgreSQL.
type Store struct {
	pool *Pool
}

var _ storage.Store = (*Store)(nil)

func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Open connects, migrates and returns a ready store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewStore(pool), nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) SaveObservation(ctx context.Context, o types.SentimentObservation) error {
	if err := storage.ValidateObservation(o); err != nil {
		return err
	}
	query := `
		INSERT INTO sentiment_observations (
			fingerprint, ticker, source, label, score, confidence, reasoning, observed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.pool.Exec(ctx, query,
		o.Fingerprint, storage.NormalizeTicker(o.Ticker), o.Source, string(o.Label),
		o.Score, o.Confidence, o.Reasoning, o.Timestamp.UTC(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

func (s *Store) ObservationsBetween(ctx context.Context, ticker string, from, to time.Time) ([]types.SentimentObservation, error) {
	query := `
		SELECT fingerprint, ticker, source, label, score, confidence, reasoning, observed_at
		FROM sentiment_observations
		WHERE ticker = $1 AND observed_at >= $2 AND observed_at <= $3
		ORDER BY observed_at, fingerprint
	`
	rows, err := s.pool.Query(ctx, query, storage.NormalizeTicker(ticker), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	out := make([]types.SentimentObservation, 0)
	for rows.Next() {
		var o types.SentimentObservation
		var label string
		if err := rows.Scan(&o.Fingerprint, &o.Ticker, &o.Source, &label,
			&o.Score, &o.Confidence, &o.Reasoning, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.Label = types.Label(label)
		o.Timestamp = o.Timestamp.UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) SaveSignal(ctx context.Context, sig types.Signal) error {
	if err := storage.ValidateSignal(sig); err != nil {
		return err
	}
	indicators, err := json.Marshal(sig.Indicators)
	if err != nil {
		return fmt.Errorf("marshal indicators: %w", err)
	}
	query := `
		INSERT INTO trading_signals (
			ticker, signal_type, confidence, sentiment_score, technical_score,
			final_score, reasoning, indicators, generated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.pool.Exec(ctx, query,
		storage.NormalizeTicker(sig.Ticker), string(sig.Type), sig.Confidence, sig.SentimentScore,
		sig.TechnicalScore, sig.FinalScore, sig.Reasoning, indicators, sig.GeneratedAt.UTC(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func (s *Store) SignalsBetween(ctx context.Context, ticker string, from, to time.Time) ([]types.Signal, error) {
	query := `
		SELECT ticker, signal_type, confidence, sentiment_score, technical_score,
			final_score, reasoning, indicators, generated_at
		FROM trading_signals
		WHERE ticker = $1 AND generated_at >= $2 AND generated_at <= $3
		ORDER BY generated_at
	`
	rows, err := s.pool.Query(ctx, query, storage.NormalizeTicker(ticker), from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	out := make([]types.Signal, 0)
	for rows.Next() {
		var sig types.Signal
		var signalType string
		var indicators []byte
		if err := rows.Scan(&sig.Ticker, &signalType, &sig.Confidence, &sig.SentimentScore,
			&sig.TechnicalScore, &sig.FinalScore, &sig.Reasoning, &indicators, &sig.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if err := json.Unmarshal(indicators, &sig.Indicators); err != nil {
			return nil, fmt.Errorf("decode indicators: %w", err)
		}
		sig.Type = types.SignalType(signalType)
		sig.GeneratedAt = sig.GeneratedAt.UTC()
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *Store) SaveBacktest(ctx context.Context, res *types.BacktestResult) (int64, error) {
	if err := storage.ValidateBacktest(res); err != nil {
		return 0, err
	}
	trades, curve, returns, err := marshalSeries(res)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO backtest_results (
			ticker, start_date, end_date, initial_capital, final_value,
			total_return, sharpe_ratio, max_drawdown, win_rate,
			benchmark_return, vs_benchmark, total_trades,
			trades, equity_curve, daily_returns
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	var id int64
	err = s.pool.QueryRow(ctx, query,
		storage.NormalizeTicker(res.Ticker), res.StartDate, res.EndDate, res.InitialCapital, res.FinalValue,
		res.TotalReturn, res.SharpeRatio, res.MaxDrawdown, res.WinRate,
		res.BenchmarkReturn, res.VsBenchmark, res.TotalTrades,
		trades, curve, returns,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert backtest: %w", err)
	}
	res.ID = id
	return id, nil
}

const backtestColumns = `
	id, ticker, start_date, end_date, initial_capital, final_value,
	total_return, sharpe_ratio, max_drawdown, win_rate,
	benchmark_return, vs_benchmark, total_trades,
	trades, equity_curve, daily_returns
`

func (s *Store) Backtests(ctx context.Context, ticker string) ([]types.BacktestResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+backtestColumns+` FROM backtest_results WHERE ticker = $1 ORDER BY id DESC`,
		storage.NormalizeTicker(ticker))
	if err != nil {
		return nil, fmt.Errorf("query backtests: %w", err)
	}
	defer rows.Close()

	out := make([]types.BacktestResult, 0)
	for rows.Next() {
		r, err := scanBacktest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) Backtest(ctx context.Context, id int64) (*types.BacktestResult, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+backtestColumns+` FROM backtest_results WHERE id = $1`, id)
	r, err := scanBacktest(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func scanBacktest(row pgx.Row) (*types.BacktestResult, error) {
	var r types.BacktestResult
	var trades, curve, returns []byte
	err := row.Scan(&r.ID, &r.Ticker, &r.StartDate, &r.EndDate, &r.InitialCapital, &r.FinalValue,
		&r.TotalReturn, &r.SharpeRatio, &r.MaxDrawdown, &r.WinRate,
		&r.BenchmarkReturn, &r.VsBenchmark, &r.TotalTrades,
		&trades, &curve, &returns)
	if err != nil {
		if isNotFoundError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan backtest: %w", err)
	}
	if err := json.Unmarshal(trades, &r.Trades); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	if err := json.Unmarshal(curve, &r.EquityCurve); err != nil {
		return nil, fmt.Errorf("decode equity curve: %w", err)
	}
	if err := json.Unmarshal(returns, &r.DailyReturns); err != nil {
		return nil, fmt.Errorf("decode daily returns: %w", err)
	}
	return &r, nil
}

func marshalSeries(res *types.BacktestResult) (trades, curve, returns []byte, err error) {
	nonNil := func(v any, empty bool) ([]byte, error) {
		if empty {
			return []byte("[]"), nil
		}
		return json.Marshal(v)
	}
	if trades, err = nonNil(res.Trades, len(res.Trades) == 0); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal trades: %w", err)
	}
	if curve, err = nonNil(res.EquityCurve, len(res.EquityCurve) == 0); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal equity curve: %w", err)
	}
	if returns, err = nonNil(res.DailyReturns, len(res.DailyReturns) == 0); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal daily returns: %w", err)
	}
	return trades, curve, returns, nil
}
