package budget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrStateNotFound is returned by a StateStore that has nothing saved yet.
var ErrStateNotFound = errors.New("budget state not found")

// maxTxRetries bounds optimistic update attempts against a contended key.
const maxTxRetries = 16

// StateStore persists gateway state between runs and between processes
// sharing one budget.
type StateStore interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, st *State) error
	// Update reads the stored state, applies fn and writes the result back
	// as one step. A missing state starts empty. It returns the state as
	// written.
	Update(ctx context.Context, fn func(*State)) (*State, error)
}

func loadOrEmpty(ctx context.Context, s StateStore) (*State, error) {
	st, err := s.Load(ctx)
	if errors.Is(err, ErrStateNotFound) {
		return NewState(), nil
	}
	return st, err
}

// FileStore keeps the state in a JSON file. Updates are serialized within
// the process; separate processes sharing a file can still interleave.
type FileStore struct {
	Path string

	mu sync.Mutex
}

func NewFileStore(path string) *FileStore {
	if path == "" {
		path = "rate_limit_state.json"
	}
	return &FileStore{Path: path}
}

func (f *FileStore) Load(_ context.Context) (*State, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	st := NewState()
	if err := json.Unmarshal(b, st); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	st.ensure()
	return st, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target so readers never see a partial file.
func (f *FileStore) Save(_ context.Context, st *State) error {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".budget-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

// Update reloads the file before applying fn so counters written by another
// gateway are not overwritten.
func (f *FileStore) Update(ctx context.Context, fn func(*State)) (*State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, err := loadOrEmpty(ctx, f)
	if err != nil {
		return nil, err
	}
	fn(st)
	if err := f.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// RedisStore keeps the state as a JSON value under one key. Update is a
// WATCH/MULTI transaction, so several processes can share one budget.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

func NewRedisStore(client redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = "budget:state"
	}
	return &RedisStore{client: client, key: key}
}

func (r *RedisStore) Load(ctx context.Context) (*State, error) {
	b, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", r.key, err)
	}
	return r.decode(b)
}

func (r *RedisStore) decode(b []byte) (*State, error) {
	st := NewState()
	if err := json.Unmarshal(b, st); err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.key, err)
	}
	st.ensure()
	return st, nil
}

func (r *RedisStore) Save(ctx context.Context, st *State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

// Update retries the transaction when another client writes the key
// between the read and the commit.
func (r *RedisStore) Update(ctx context.Context, fn func(*State)) (*State, error) {
	var out *State
	txf := func(tx *redis.Tx) error {
		st := NewState()
		b, err := tx.Get(ctx, r.key).Bytes()
		switch {
		case err == nil:
			if st, err = r.decode(b); err != nil {
				return err
			}
		case !errors.Is(err, redis.Nil):
			return err
		}

		fn(st)
		nb, err := json.Marshal(st)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, nb, 0)
			return nil
		})
		if err == nil {
			out = st
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, r.key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("redis update %s: %w", r.key, err)
	}
	return nil, fmt.Errorf("redis update %s: %w", r.key, redis.TxFailedErr)
}

// StoreFuncs adapts plain functions to StateStore. Without UpdateFn,
// Update is Load, fn, Save.
type StoreFuncs struct {
	LoadFn   func(ctx context.Context) (*State, error)
	SaveFn   func(ctx context.Context, st *State) error
	UpdateFn func(ctx context.Context, fn func(*State)) (*State, error)
}

func (s StoreFuncs) Load(ctx context.Context) (*State, error) {
	if s.LoadFn == nil {
		return nil, ErrStateNotFound
	}
	return s.LoadFn(ctx)
}

func (s StoreFuncs) Save(ctx context.Context, st *State) error {
	if s.SaveFn == nil {
		return nil
	}
	return s.SaveFn(ctx, st)
}

func (s StoreFuncs) Update(ctx context.Context, fn func(*State)) (*State, error) {
	if s.UpdateFn != nil {
		return s.UpdateFn(ctx, fn)
	}
	st, err := loadOrEmpty(ctx, s)
	if err != nil {
		return nil, err
	}
	fn(st)
	if err := s.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}
