package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sentiment-trading/internal/storage"
	"sentiment-trading/internal/types"
)

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu           sync.RWMutex
	observations map[string]types.SentimentObservation
	signals      map[string]types.Signal
	backtests    map[int64]types.BacktestResult
	nextID       int64
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		observations: make(map[string]types.SentimentObservation),
		signals:      make(map[string]types.Signal),
		backtests:    make(map[int64]types.BacktestResult),
	}
}

func observationKey(o types.SentimentObservation) string {
	return fmt.Sprintf("%s|%d", o.Fingerprint, o.Timestamp.UnixNano())
}

func signalKey(s types.Signal) string {
	return fmt.Sprintf("%s|%d", storage.NormalizeTicker(s.Ticker), s.GeneratedAt.UnixNano())
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

func (s *Store) SaveObservation(_ context.Context, o types.SentimentObservation) error {
	if err := storage.ValidateObservation(o); err != nil {
		return err
	}
	o.Ticker = storage.NormalizeTicker(o.Ticker)
	key := observationKey(o)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.observations[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.observations[key] = o
	return nil
}

func (s *Store) ObservationsBetween(_ context.Context, ticker string, from, to time.Time) ([]types.SentimentObservation, error) {
	ticker = storage.NormalizeTicker(ticker)

	s.mu.RLock()
	out := make([]types.SentimentObservation, 0)
	for _, o := range s.observations {
		if o.Ticker == ticker && within(o.Timestamp, from, to) {
			out = append(out, o)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Fingerprint < out[j].Fingerprint
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *Store) SaveSignal(_ context.Context, sig types.Signal) error {
	if err := storage.ValidateSignal(sig); err != nil {
		return err
	}
	sig.Ticker = storage.NormalizeTicker(sig.Ticker)
	key := signalKey(sig)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.signals[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.signals[key] = sig
	return nil
}

func (s *Store) SignalsBetween(_ context.Context, ticker string, from, to time.Time) ([]types.Signal, error) {
	ticker = storage.NormalizeTicker(ticker)

	s.mu.RLock()
	out := make([]types.Signal, 0)
	for _, sig := range s.signals {
		if sig.Ticker == ticker && within(sig.GeneratedAt, from, to) {
			out = append(out, sig)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].GeneratedAt.Before(out[j].GeneratedAt) })
	return out, nil
}

func (s *Store) SaveBacktest(_ context.Context, res *types.BacktestResult) (int64, error) {
	if err := storage.ValidateBacktest(res); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	res.ID = s.nextID
	cp := *res
	cp.Ticker = storage.NormalizeTicker(cp.Ticker)
	s.backtests[cp.ID] = cp
	return cp.ID, nil
}

func (s *Store) Backtests(_ context.Context, ticker string) ([]types.BacktestResult, error) {
	ticker = storage.NormalizeTicker(ticker)

	s.mu.RLock()
	out := make([]types.BacktestResult, 0)
	for _, r := range s.backtests {
		if r.Ticker == ticker {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) Backtest(_ context.Context, id int64) (*types.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.backtests[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

func (s *Store) Close() {}
