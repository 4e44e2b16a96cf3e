package sentiment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentiment-trading/internal/budget"
	"sentiment-trading/internal/llm"
	"sentiment-trading/internal/types"
)

const positiveReply = `{"sentiment":"positive","score":0.8,"reasoning":"strong guidance","confidence":0.9}`

// fakeClient replays queued results, then repeats the last one.
type fakeClient struct {
	mu      sync.Mutex
	results []fakeResult
	calls   int
	prompts []types.Prompt
}

type fakeResult struct {
	text string
	err  error
}

func (f *fakeClient) Complete(_ context.Context, p types.Prompt) (types.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	r := f.results[min(f.calls, len(f.results)-1)]
	f.calls++
	if r.err != nil {
		return types.Completion{}, r.err
	}
	return types.Completion{Text: r.text, PromptTokens: 100, CompletionTokens: 20}, nil
}

func (f *fakeClient) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestScorer(t *testing.T, client *fakeClient, limits budget.Limits, opts Options) (*Scorer, *budget.Gateway) {
	t.Helper()
	clock := func() time.Time { return testNow }
	gw := budget.NewGateway(context.Background(), limits, nil, budget.WithClock(clock))
	s := NewScorer(client, gw, NewMemoryCache(0), opts,
		WithClock(clock),
		WithSleeper(func(ctx context.Context, d time.Duration) error { return ctx.Err() }),
	)
	return s, gw
}

func testOptions() Options {
	o := DefaultOptions()
	o.WaitForMinuteSlot = false
	return o
}

func TestScoreParsesAndRecords(t *testing.T) {
	client := &fakeClient{results: []fakeResult{{text: positiveReply}}}
	s, gw := newTestScorer(t, client, budget.DefaultLimits(), testOptions())

	got := s.Score(context.Background(), "Guidance raised for the year", "AAPL")

	assert.Equal(t, types.LabelPositive, got.Label)
	assert.Equal(t, 0.8, got.Score)
	assert.Equal(t, 0.9, got.Confidence)
	assert.Equal(t, "AAPL", got.Ticker)
	assert.Equal(t, Fingerprint("Guidance raised for the year", "AAPL"), got.Fingerprint)
	assert.Equal(t, testNow, got.Timestamp)
	assert.Equal(t, 1, gw.Stats().RequestsToday)

	require.Len(t, client.prompts, 1)
	assert.Equal(t, float32(0.3), client.prompts[0].Temperature)
	assert.Equal(t, 200, client.prompts[0].MaxTokens)
}

func TestScoreCacheHitSkipsGateway(t *testing.T) {
	client := &fakeClient{results: []fakeResult{{text: positiveReply}}}
	s, gw := newTestScorer(t, client, budget.DefaultLimits(), testOptions())
	ctx := context.Background()

	first := s.Score(ctx, "same text", "MSFT")
	second := s.Score(ctx, "same text", "MSFT")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.Calls())
	assert.Equal(t, 1, gw.Stats().RequestsToday)
}

func TestScoreRefusedByGateway(t *testing.T) {
	client := &fakeClient{results: []fakeResult{{text: positiveReply}}}
	limits := budget.DefaultLimits()
	limits.MaxRequestsPerDay = 1
	s, _ := newTestScorer(t, client, limits, testOptions())
	ctx := context.Background()

	s.Score(ctx, "first", "AAPL")
	got := s.Score(ctx, "second", "AAPL")

	assert.Equal(t, types.LabelNeutral, got.Label)
	assert.Zero(t, got.Score)
	assert.Zero(t, got.Confidence)
	assert.Equal(t, "Rate limit: Daily limit exceeded: 1 requests per day", got.Reasoning)
	assert.Equal(t, 1, client.Calls())
}

func TestScoreReportsBudgetSaveFailure(t *testing.T) {
	client := &fakeClient{results: []fakeResult{{text: positiveReply}}}
	clock := func() time.Time { return testNow }
	store := budget.StoreFuncs{SaveFn: func(context.Context, *budget.State) error {
		return errors.New("redis unavailable")
	}}
	gw := budget.NewGateway(context.Background(), budget.DefaultLimits(), store, budget.WithClock(clock))
	s := NewScorer(client, gw, NewMemoryCache(0), testOptions(), WithClock(clock))

	got := s.Score(context.Background(), "Record revenue", "AAPL")

	assert.Equal(t, types.LabelPositive, got.Label)
	stats := s.UsageStats()
	assert.Equal(t, 1, stats.RequestsToday)
	assert.Equal(t, 1, stats.StateSaveFailures)
	assert.Contains(t, stats.LastSaveError, "redis unavailable")
}

func TestScoreTransportErrorNotCached(t *testing.T) {
	client := &fakeClient{results: []fakeResult{{err: llm.ErrMissingAPIKey}, {text: positiveReply}}}
	s, gw := newTestScorer(t, client, budget.DefaultLimits(), testOptions())
	ctx := context.Background()

	got := s.Score(ctx, "text", "")
	assert.Equal(t, types.LabelNeutral, got.Label)
	assert.Zero(t, got.Confidence)
	assert.Equal(t, "Error: "+llm.ErrMissingAPIKey.Error(), got.Reasoning)
	assert.Equal(t, 1, client.Calls(), "missing key is not retried")
	assert.Zero(t, gw.Stats().RequestsToday)

	again := s.Score(ctx, "text", "")
	assert.Equal(t, types.LabelPositive, again.Label)
	assert.Equal(t, 2, client.Calls())
}

func TestScoreRetriesTransientErrors(t *testing.T) {
	boom := errors.New("connection reset")
	client := &fakeClient{results: []fakeResult{{err: boom}, {text: positiveReply}}}
	s, gw := newTestScorer(t, client, budget.DefaultLimits(), testOptions())

	got := s.Score(context.Background(), "text", "NVDA")

	assert.Equal(t, types.LabelPositive, got.Label)
	assert.Equal(t, 2, client.Calls())
	assert.Equal(t, 1, gw.Stats().RequestsToday, "only the successful call is recorded")
}

func TestScoreGivesUpAfterMaxRetries(t *testing.T) {
	boom := errors.New("503")
	client := &fakeClient{results: []fakeResult{{err: boom}}}
	opts := testOptions()
	opts.MaxRetries = 2
	s, _ := newTestScorer(t, client, budget.DefaultLimits(), opts)

	got := s.Score(context.Background(), "text", "NVDA")
	assert.Equal(t, "Error: 503", got.Reasoning)
	assert.Equal(t, 3, client.Calls())
}

func TestScoreParseFailureIsCached(t *testing.T) {
	client := &fakeClient{results: []fakeResult{{text: "no json here"}}}
	s, gw := newTestScorer(t, client, budget.DefaultLimits(), testOptions())
	ctx := context.Background()

	got := s.Score(ctx, "text", "AMD")
	assert.Equal(t, types.LabelNeutral, got.Label)
	assert.Zero(t, got.Confidence)
	assert.Equal(t, parseFailureReason, got.Reasoning)
	assert.Equal(t, 1, gw.Stats().RequestsToday)

	s.Score(ctx, "text", "AMD")
	assert.Equal(t, 1, client.Calls())
}

func items(texts ...string) []types.TextItem {
	out := make([]types.TextItem, len(texts))
	for i, t := range texts {
		out[i] = types.TextItem{Text: t, Source: "reddit"}
	}
	return out
}

func TestBatchScoreTruncates(t *testing.T) {
	client := &fakeClient{results: []fakeResult{{text: positiveReply}}}
	opts := testOptions()
	opts.MaxTextsPerRequest = 3
	s, _ := newTestScorer(t, client, budget.DefaultLimits(), opts)

	got := s.BatchScore(context.Background(), items("a", "b", "c", "d", "e"), "AAPL")
	require.Len(t, got, 3)
	for _, o := range got {
		assert.Equal(t, types.LabelPositive, o.Label)
		assert.Equal(t, "reddit", o.Source)
	}
}

func TestBatchScoreFillsWhenBatchPrecheckRefuses(t *testing.T) {
	client := &fakeClient{results: []fakeResult{{text: positiveReply}}}
	limits := budget.DefaultLimits()
	limits.MaxRequestsPerDay = 2
	opts := testOptions()
	opts.BatchSize = 2
	s, _ := newTestScorer(t, client, limits, opts)

	got := s.BatchScore(context.Background(), items("a", "b", "c", "d", "e"), "AAPL")

	require.Len(t, got, 5)
	assert.Equal(t, types.LabelPositive, got[0].Label)
	assert.Equal(t, types.LabelPositive, got[1].Label)
	for _, o := range got[2:] {
		assert.Equal(t, types.LabelNeutral, o.Label)
		assert.Equal(t, rateLimitedReason, o.Reasoning)
		assert.Zero(t, o.Confidence)
		assert.Zero(t, o.Score)
	}
	assert.Equal(t, 2, client.Calls())
}

func TestBatchScoreFillsAfterMidBatchRefusal(t *testing.T) {
	client := &fakeClient{results: []fakeResult{{text: positiveReply}}}
	limits := budget.DefaultLimits()
	limits.MaxRequestsPerDay = 3
	opts := testOptions()
	opts.BatchSize = 2
	s, _ := newTestScorer(t, client, limits, opts)

	got := s.BatchScore(context.Background(), items("a", "b", "c", "d", "e"), "AAPL")

	require.Len(t, got, 5)
	assert.Equal(t, types.LabelPositive, got[2].Label)
	assert.Equal(t, "Rate limit: Daily limit exceeded: 3 requests per day", got[3].Reasoning)
	assert.Equal(t, rateLimitedReason, got[4].Reasoning)
	assert.Equal(t, 3, client.Calls())
}

func TestBatchScoreEmpty(t *testing.T) {
	s, _ := newTestScorer(t, &fakeClient{results: []fakeResult{{text: positiveReply}}}, budget.DefaultLimits(), testOptions())
	assert.Empty(t, s.BatchScore(context.Background(), nil, "AAPL"))
}

func TestUsageStats(t *testing.T) {
	client := &fakeClient{results: []fakeResult{{text: positiveReply}}}
	s, _ := newTestScorer(t, client, budget.DefaultLimits(), testOptions())
	s.Score(context.Background(), "x", "AAPL")

	stats := s.UsageStats()
	assert.Equal(t, 1, stats.RequestsToday)
	assert.Equal(t, 10.0, stats.MaxDailyCost)
}
