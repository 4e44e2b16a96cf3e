package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"sentiment-trading/internal/types"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("sentiment cache miss")

// Cache stores scored observations by fingerprint. Values for one key are
// deterministic, so concurrent writers may race freely.
type Cache interface {
	Get(ctx context.Context, key string) (types.SentimentObservation, error)
	Set(ctx context.Context, key string, obs types.SentimentObservation) error
}

// MemoryCache is an in-process TTL map. A zero TTL never expires entries.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]*cacheEntry
	ttl  time.Duration
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

type cacheEntry struct {
	obs       types.SentimentObservation
	timestamp time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	c := &MemoryCache{
		data: make(map[string]*cacheEntry),
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanupLoop(cleanupInterval(ttl))
	}
	return c
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < 10*time.Minute {
		return ttl
	}
	return 10 * time.Minute
}

func (c *MemoryCache) Get(_ context.Context, key string) (types.SentimentObservation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.data[key]
	if !ok || c.expired(entry) {
		return types.SentimentObservation{}, ErrCacheMiss
	}
	return entry.obs, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, obs types.SentimentObservation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry{obs: obs, timestamp: c.now()}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Close stops the cleanup goroutine.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) expired(e *cacheEntry) bool {
	return c.ttl > 0 && c.now().Sub(e.timestamp) > c.ttl
}

func (c *MemoryCache) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *MemoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.data {
		if c.expired(entry) {
			delete(c.data, key)
		}
	}
}

// RedisCache shares scored observations between processes.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "sentiment:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, key string) (types.SentimentObservation, error) {
	var obs types.SentimentObservation
	b, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return obs, ErrCacheMiss
		}
		return obs, fmt.Errorf("redis get: %w", err)
	}
	if err := json.Unmarshal(b, &obs); err != nil {
		return obs, fmt.Errorf("decode cached observation: %w", err)
	}
	return obs, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, obs types.SentimentObservation) error {
	b, err := json.Marshal(obs)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+key, b, r.ttl).Err()
}
