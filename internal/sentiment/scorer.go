package sentiment

import (
	"context"
	"errors"
	"time"

	"sentiment-trading/internal/budget"
	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/llm"
	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/metrics"
	"sentiment-trading/internal/types"
)

const rateLimitedReason = "Rate limit reached"

type outcome string

const (
	outcomeCacheHit    outcome = "cache_hit"
	outcomeScored      outcome = "scored"
	outcomeRefused     outcome = "refused"
	outcomeParseFailed outcome = "parse_failed"
	outcomeError       outcome = "error"
)

// Options tune the scorer. Zero values are replaced by DefaultOptions.
type Options struct {
	MaxTextsPerRequest int
	BatchSize          int
	InterCallDelay     time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	WaitForMinuteSlot  bool
	Temperature        float32
	MaxTokens          int
}

func DefaultOptions() Options {
	return Options{
		MaxTextsPerRequest: 20,
		BatchSize:          5,
		InterCallDelay:     100 * time.Millisecond,
		MaxRetries:         2,
		RetryBackoff:       500 * time.Millisecond,
		WaitForMinuteSlot:  true,
		Temperature:        0.3,
		MaxTokens:          200,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxTextsPerRequest <= 0 {
		o.MaxTextsPerRequest = d.MaxTextsPerRequest
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.MaxTokens
	}
	return o
}

// Scorer turns text into SentimentObservations through a costed client,
// gated by a budget gateway and fronted by a cache.
type Scorer struct {
	client  interfaces.SentimentClient
	gateway *budget.Gateway
	cache   Cache
	opts    Options
	metrics *metrics.Recorder
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

var _ interfaces.SentimentScorer = (*Scorer)(nil)

type ScorerOption func(*Scorer)

func WithMetrics(m *metrics.Recorder) ScorerOption {
	return func(s *Scorer) { s.metrics = m }
}

func WithClock(now func() time.Time) ScorerOption {
	return func(s *Scorer) { s.now = now }
}

// WithSleeper overrides the pause used for inter-call delays and retry
// backoff.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) ScorerOption {
	return func(s *Scorer) { s.sleep = sleep }
}

// NewScorer wires a scorer. A nil cache gets an in-memory cache without
// expiry.
func NewScorer(client interfaces.SentimentClient, gateway *budget.Gateway, cache Cache, opts Options, options ...ScorerOption) *Scorer {
	if cache == nil {
		cache = NewMemoryCache(0)
	}
	s := &Scorer{
		client:  client,
		gateway: gateway,
		cache:   cache,
		opts:    opts.withDefaults(),
		now:     time.Now,
		sleep:   sleepCtx,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Score rates one text. It always returns a usable observation; refusals,
// transport errors and unparseable replies come back neutral with
// confidence 0.
func (s *Scorer) Score(ctx context.Context, text, ticker string) types.SentimentObservation {
	obs, _ := s.score(ctx, text, ticker)
	return obs
}

func (s *Scorer) score(ctx context.Context, text, ticker string) (types.SentimentObservation, outcome) {
	fp := Fingerprint(text, ticker)

	cached, err := s.cache.Get(ctx, fp)
	if err == nil {
		s.metrics.RecordScorerCall(string(outcomeCacheHit))
		return cached, outcomeCacheHit
	}
	if !errors.Is(err, ErrCacheMiss) {
		logger.Warn(ctx, "Sentiment cache read failed, scoring anyway", "error", err)
	}

	if s.opts.WaitForMinuteSlot {
		if err := s.gateway.WaitUntilAdmissible(ctx); err != nil {
			s.metrics.RecordScorerCall(string(outcomeError))
			return s.neutral(fp, ticker, "Error: "+err.Error()), outcomeError
		}
	}
	if d := s.gateway.Admit(ctx); !d.Allowed {
		s.metrics.RecordScorerCall(string(outcomeRefused))
		return s.neutral(fp, ticker, "Rate limit: "+d.Reason), outcomeRefused
	}

	prompt := BuildPrompt(text, ticker, s.opts.Temperature, s.opts.MaxTokens)
	completion, refusal, err := s.complete(ctx, prompt)
	if refusal != "" {
		s.metrics.RecordScorerCall(string(outcomeRefused))
		return s.neutral(fp, ticker, "Rate limit: "+refusal), outcomeRefused
	}
	if err != nil {
		logger.ErrorWithErr(ctx, "Error analyzing sentiment", err, "ticker", ticker)
		s.metrics.RecordScorerCall(string(outcomeError))
		return s.neutral(fp, ticker, "Error: "+err.Error()), outcomeError
	}

	if err := s.gateway.Record(ctx, completion.TotalTokens()); err != nil {
		// The call still counts in memory; UsageStats reports the failed save.
		logger.Warn(ctx, "Budget usage not persisted", "ticker", ticker, "error", err)
	}

	reply, ok := ParseReply(completion.Text)
	result := outcomeScored
	if !ok {
		logger.Warn(ctx, "Unparseable sentiment reply", "ticker", ticker, "reply_length", len(completion.Text))
		result = outcomeParseFailed
	}

	obs := types.SentimentObservation{
		Fingerprint: fp,
		Ticker:      ticker,
		Label:       reply.Label,
		Score:       reply.Score,
		Confidence:  reply.Confidence,
		Reasoning:   reply.Reasoning,
		Timestamp:   s.now(),
	}
	if err := s.cache.Set(ctx, fp, obs); err != nil {
		logger.Warn(ctx, "Sentiment cache write failed", "error", err)
	}
	s.metrics.RecordScorerCall(string(result))
	return obs, result
}

// complete calls the client with bounded retries. Each retry is re-admitted
// by the gateway so retries never bypass the budget; a non-empty refusal
// means a retry was refused.
func (s *Scorer) complete(ctx context.Context, p types.Prompt) (types.Completion, string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.opts.RetryBackoff*time.Duration(attempt)); err != nil {
				return types.Completion{}, "", err
			}
			if d := s.gateway.Admit(ctx); !d.Allowed {
				return types.Completion{}, d.Reason, nil
			}
			logger.Debug(ctx, "Retrying sentiment call", "attempt", attempt, "last_error", lastErr)
		}

		c, err := s.client.Complete(ctx, p)
		if err == nil {
			return c, "", nil
		}
		lastErr = err
		if !retryable(ctx, err) {
			break
		}
	}
	return types.Completion{}, "", lastErr
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, llm.ErrMissingAPIKey) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (s *Scorer) neutral(fp, ticker, reason string) types.SentimentObservation {
	return types.SentimentObservation{
		Fingerprint: fp,
		Ticker:      ticker,
		Label:       types.LabelNeutral,
		Reasoning:   reason,
		Timestamp:   s.now(),
	}
}

// BatchScore scores up to MaxTextsPerRequest items in BatchSize groups.
// When the gateway refuses, every text not yet scored is filled with a
// neutral "Rate limit reached" observation; the result always has one entry
// per (truncated) input.
func (s *Scorer) BatchScore(ctx context.Context, items []types.TextItem, ticker string) []types.SentimentObservation {
	if len(items) > s.opts.MaxTextsPerRequest {
		items = items[:s.opts.MaxTextsPerRequest]
	}

	results := make([]types.SentimentObservation, 0, len(items))
	fill := func(reason string) []types.SentimentObservation {
		for _, it := range items[len(results):] {
			obs := s.neutral(Fingerprint(it.Text, ticker), ticker, reason)
			obs.Source = it.Source
			results = append(results, obs)
		}
		return results
	}

	for i := 0; i < len(items); i += s.opts.BatchSize {
		end := i + s.opts.BatchSize
		if end > len(items) {
			end = len(items)
		}

		if d := s.gateway.Admit(ctx); !d.Allowed {
			logger.Warn(ctx, "Rate limit reached during batch processing", "reason", d.Reason, "remaining", len(items)-len(results))
			return fill(rateLimitedReason)
		}

		for j := i; j < end; j++ {
			obs, out := s.score(ctx, items[j].Text, ticker)
			obs.Source = items[j].Source
			results = append(results, obs)

			if out == outcomeRefused {
				return fill(rateLimitedReason)
			}
			if j < len(items)-1 {
				if err := s.sleep(ctx, s.opts.InterCallDelay); err != nil {
					return fill("Error: " + err.Error())
				}
			}
		}
	}
	return results
}

// UsageStats reports the gateway counters.
func (s *Scorer) UsageStats() budget.Stats {
	return s.gateway.Stats()
}
