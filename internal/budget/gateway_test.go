package budget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestGateway(t *testing.T, limits Limits, store StateStore, clock *fakeClock) *Gateway {
	t.Helper()
	return NewGateway(context.Background(), limits, store, WithClock(clock.Now))
}

func TestAdmitFreshGateway(t *testing.T) {
	g := newTestGateway(t, DefaultLimits(), nil, newFakeClock())
	d := g.Admit(context.Background())
	assert.True(t, d.Allowed)
	assert.Empty(t, d.Reason)
	assert.Equal(t, CeilingNone, d.Ceiling)
}

func TestMinuteCeiling(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limits := DefaultLimits()
	limits.MaxRequestsPerMinute = 3
	g := newTestGateway(t, limits, nil, clock)

	for i := 0; i < 3; i++ {
		require.True(t, g.Admit(ctx).Allowed)
		require.NoError(t, g.Record(ctx, 100))
		clock.Advance(time.Second)
	}

	d := g.Admit(ctx)
	assert.False(t, d.Allowed)
	assert.Equal(t, CeilingMinute, d.Ceiling)
	assert.Equal(t, "Rate limit exceeded: 3 requests per minute", d.Reason)

	clock.Advance(58 * time.Second)
	assert.True(t, g.Admit(ctx).Allowed, "oldest request left the window")
}

func TestDailyRequestCeiling(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limits := DefaultLimits()
	limits.MaxRequestsPerDay = 2
	g := newTestGateway(t, limits, nil, clock)

	require.NoError(t, g.Record(ctx, 10))
	clock.Advance(2 * time.Minute)
	require.NoError(t, g.Record(ctx, 10))
	clock.Advance(2 * time.Minute)

	d := g.Admit(ctx)
	assert.False(t, d.Allowed)
	assert.Equal(t, CeilingDay, d.Ceiling)
	assert.Equal(t, "Daily limit exceeded: 2 requests per day", d.Reason)

	clock.Advance(24 * time.Hour)
	assert.True(t, g.Admit(ctx).Allowed)
}

func TestDailyCostCeiling(t *testing.T) {
	ctx := context.Background()
	limits := DefaultLimits()
	limits.MaxDailyCost = 0.0001
	g := newTestGateway(t, limits, nil, newFakeClock())

	require.NoError(t, g.Record(ctx, 1000))

	d := g.Admit(ctx)
	assert.False(t, d.Allowed)
	assert.Equal(t, CeilingCost, d.Ceiling)
	assert.Equal(t, "Daily cost limit exceeded: $0.00 USD per day", d.Reason)
}

func TestCeilingOrderMinuteFirst(t *testing.T) {
	ctx := context.Background()
	limits := Limits{MaxRequestsPerMinute: 1, MaxRequestsPerDay: 1, MaxDailyCost: 0.000001,
		InputPricePerMillion: 0.15, OutputPricePerMillion: 0.60}
	g := newTestGateway(t, limits, nil, newFakeClock())
	require.NoError(t, g.Record(ctx, 1000))

	assert.Equal(t, CeilingMinute, g.Admit(ctx).Ceiling)
}

func TestEstimateCost(t *testing.T) {
	g := newTestGateway(t, DefaultLimits(), nil, newFakeClock())

	assert.True(t, g.EstimateCost(1000).Equal(decimal.RequireFromString("0.000285")), g.EstimateCost(1000).String())
	assert.True(t, g.EstimateCost(0).IsZero())
	// int truncation of both shares: 3 -> 2 input, 0 output
	assert.True(t, g.EstimateCost(3).Equal(decimal.RequireFromString("0.0000003")), g.EstimateCost(3).String())
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	g := newTestGateway(t, DefaultLimits(), nil, newFakeClock())
	require.NoError(t, g.Record(ctx, 1000))

	s := g.Stats()
	assert.Equal(t, 1, s.RequestsLastMinute)
	assert.Equal(t, 60, s.MaxRequestsPerMinute)
	assert.Equal(t, 1, s.RequestsToday)
	assert.Equal(t, 1000, s.MaxRequestsPerDay)
	assert.Equal(t, 0.0003, s.CostToday)
	assert.Equal(t, 10.0, s.MaxDailyCost)
	assert.Equal(t, 9.9997, s.RemainingDailyBudget)
	assert.Equal(t, 0.0003, s.CostThisWeek)
	assert.Equal(t, 0.0003, s.CostThisMonth)
}

func TestRolloverRetention(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	g := newTestGateway(t, DefaultLimits(), nil, clock)
	require.NoError(t, g.Record(ctx, 1000))

	clock.Advance(8 * 24 * time.Hour)
	s := g.Stats()
	assert.Equal(t, 0, s.RequestsToday)
	assert.Equal(t, 0.0, s.CostThisWeek)
	assert.Equal(t, 0.0003, s.CostThisMonth)

	snap := g.Snapshot()
	assert.Empty(t, snap.DailyRequests)
	assert.Empty(t, snap.DailyCosts)
	assert.Len(t, snap.CostHistory, 1)

	clock.Advance(23 * 24 * time.Hour)
	g.Stats()
	assert.Empty(t, g.Snapshot().CostHistory)
}

func TestStatePersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewFileStore(t.TempDir() + "/state.json")

	g := newTestGateway(t, DefaultLimits(), store, clock)
	require.NoError(t, g.Record(ctx, 1000))
	require.NoError(t, g.Record(ctx, 1000))

	restarted := newTestGateway(t, DefaultLimits(), store, clock)
	s := restarted.Stats()
	assert.Equal(t, 2, s.RequestsToday)
	assert.Equal(t, 2, s.RequestsLastMinute)
	assert.Equal(t, 0.0006, s.CostToday)
}

func TestRecordKeepsCountersWhenSaveFails(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	store := StoreFuncs{SaveFn: func(context.Context, *State) error { return boom }}
	g := newTestGateway(t, DefaultLimits(), store, newFakeClock())

	err := g.Record(ctx, 100)
	assert.ErrorIs(t, err, boom)
	s := g.Stats()
	assert.Equal(t, 1, s.RequestsToday)
	assert.Equal(t, 1, s.StateSaveFailures)
	assert.Contains(t, s.LastSaveError, "disk full")
}

// sharedBacking stands in for one key that several processes read and write.
type sharedBacking struct {
	mu sync.Mutex
	st *State
}

func (b *sharedBacking) store() StoreFuncs {
	return StoreFuncs{
		LoadFn: func(context.Context) (*State, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.st == nil {
				return nil, ErrStateNotFound
			}
			return b.st.Clone(), nil
		},
		UpdateFn: func(_ context.Context, fn func(*State)) (*State, error) {
			b.mu.Lock()
			defer b.mu.Unlock()
			if b.st == nil {
				b.st = NewState()
			}
			fn(b.st)
			return b.st.Clone(), nil
		},
	}
}

func TestGatewaysSharingStoreHonourDailyCeiling(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limits := DefaultLimits()
	limits.MaxRequestsPerDay = 2
	backing := &sharedBacking{}

	a := newTestGateway(t, limits, backing.store(), clock)
	b := newTestGateway(t, limits, backing.store(), clock)

	admitted := 0
	for i := 0; i < 4; i++ {
		g := a
		if i%2 == 1 {
			g = b
		}
		if g.Admit(ctx).Allowed {
			admitted++
			require.NoError(t, g.Record(ctx, 100))
		}
		clock.Advance(time.Second)
	}

	assert.Equal(t, 2, admitted)
	assert.Equal(t, 2, backing.st.DailyRequests["2024-03-15"])
	d := a.Admit(ctx)
	assert.Equal(t, CeilingDay, d.Ceiling)
	assert.Equal(t, 2, a.Stats().RequestsToday)
}

func TestGatewaysSharingFileKeepBothCounts(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	path := t.TempDir() + "/state.json"

	a := newTestGateway(t, DefaultLimits(), NewFileStore(path), clock)
	b := newTestGateway(t, DefaultLimits(), NewFileStore(path), clock)

	require.NoError(t, a.Record(ctx, 1000))
	require.NoError(t, b.Record(ctx, 1000))
	require.NoError(t, a.Record(ctx, 1000))

	st, err := NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.DailyRequests["2024-03-15"])
	assert.Len(t, st.RecentRequests, 3)

	b.Admit(ctx)
	assert.Equal(t, 3, b.Stats().RequestsToday)
}

func TestCorruptStateStartsEmpty(t *testing.T) {
	store := StoreFuncs{LoadFn: func(context.Context) (*State, error) { return nil, errors.New("bad json") }}
	g := newTestGateway(t, DefaultLimits(), store, newFakeClock())
	assert.Equal(t, 0, g.Stats().RequestsToday)
	assert.True(t, g.Admit(context.Background()).Allowed)
}

func TestWaitUntilAdmissible(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	limits := DefaultLimits()
	limits.MaxRequestsPerMinute = 2

	var slept []time.Duration
	g := NewGateway(ctx, limits, nil, WithClock(clock.Now), WithSleeper(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock.Advance(d)
		return nil
	}))

	require.NoError(t, g.Record(ctx, 10))
	clock.Advance(10 * time.Second)
	require.NoError(t, g.Record(ctx, 10))
	clock.Advance(10 * time.Second)

	require.NoError(t, g.WaitUntilAdmissible(ctx))
	assert.Equal(t, []time.Duration{40 * time.Second}, slept)
	assert.True(t, g.Admit(ctx).Allowed)
}

func TestWaitUntilAdmissibleNoWaitWhenFree(t *testing.T) {
	g := NewGateway(context.Background(), DefaultLimits(), nil, WithSleeper(func(context.Context, time.Duration) error {
		t.Fatal("should not sleep")
		return nil
	}))
	assert.NoError(t, g.WaitUntilAdmissible(context.Background()))
}

func TestWaitUntilAdmissibleHonoursCancel(t *testing.T) {
	clock := newFakeClock()
	limits := DefaultLimits()
	limits.MaxRequestsPerMinute = 1
	g := newTestGateway(t, limits, nil, clock)
	require.NoError(t, g.Record(context.Background(), 10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.WaitUntilAdmissible(ctx), context.Canceled)
}

func TestConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	limits := DefaultLimits()
	limits.MaxRequestsPerMinute = 1000
	g := newTestGateway(t, limits, nil, newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Admit(ctx)
			_ = g.Record(ctx, 100)
		}()
	}
	wg.Wait()

	s := g.Stats()
	assert.Equal(t, 50, s.RequestsToday)
	assert.Equal(t, 50, s.RequestsLastMinute)
}
