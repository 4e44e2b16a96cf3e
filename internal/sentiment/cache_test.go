package sentiment

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentiment-trading/internal/types"
)

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(time.Hour)
	defer c.Close()
	c.now = func() time.Time { return now }

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", types.SentimentObservation{Score: 0.8}))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 0.8, got.Score)

	now = now.Add(2 * time.Hour)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	c.cleanup()
	assert.Zero(t, c.Len())
}

func TestMemoryCacheNoTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache(0)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", types.SentimentObservation{Score: 0.1}))
	now = now.AddDate(1, 0, 0)
	_, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	c.Close()
	c.Close()
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("SENTITRADE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SENTITRADE_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	c := NewRedisCache(client, "sentiment:test:", time.Minute)
	key := Fingerprint("redis cache test", "AAPL")
	defer client.Del(ctx, "sentiment:test:"+key)

	_, err := c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)

	want := types.SentimentObservation{Fingerprint: key, Ticker: "AAPL", Label: types.LabelPositive, Score: 0.7, Confidence: 0.8}
	require.NoError(t, c.Set(ctx, key, want))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, want.Score, got.Score)
	assert.Equal(t, want.Label, got.Label)
}
