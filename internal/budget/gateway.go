package budget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/metrics"
)

// Ceiling identifies which limit refused a call.
type Ceiling string

const (
	CeilingNone   Ceiling = ""
	CeilingMinute Ceiling = "per_minute"
	CeilingDay    Ceiling = "per_day"
	CeilingCost   Ceiling = "daily_cost"
)

const (
	inputShare  = 0.7
	outputShare = 0.3
)

var million = decimal.NewFromInt(1_000_000)

// Limits are the gateway ceilings and token prices.
type Limits struct {
	MaxRequestsPerMinute  int
	MaxRequestsPerDay     int
	MaxDailyCost          float64
	InputPricePerMillion  float64
	OutputPricePerMillion float64
}

// DefaultLimits matches gpt-4o-mini pricing with a $10/day budget.
func DefaultLimits() Limits {
	return Limits{
		MaxRequestsPerMinute:  60,
		MaxRequestsPerDay:     1000,
		MaxDailyCost:          10.0,
		InputPricePerMillion:  0.15,
		OutputPricePerMillion: 0.60,
	}
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	Reason  string
	Ceiling Ceiling
}

// Stats is a point-in-time view of gateway usage.
type Stats struct {
	RequestsLastMinute   int     `json:"requests_last_minute"`
	MaxRequestsPerMinute int     `json:"max_requests_per_minute"`
	RequestsToday        int     `json:"requests_today"`
	MaxRequestsPerDay    int     `json:"max_requests_per_day"`
	CostToday            float64 `json:"cost_today"`
	MaxDailyCost         float64 `json:"max_daily_cost"`
	RemainingDailyBudget float64 `json:"remaining_daily_budget"`
	CostThisWeek         float64 `json:"cost_this_week"`
	CostThisMonth        float64 `json:"cost_this_month"`
	StateSaveFailures    int     `json:"state_save_failures"`
	LastSaveError        string  `json:"last_save_error,omitempty"`
}

// Gateway enforces request and spend ceilings for a costed external scorer.
// One mutex serializes every check, record and persist in the process. With
// a store, checks re-read the shared counters and records go through
// StateStore.Update, so gateways in other processes see each other's calls.
type Gateway struct {
	mu      sync.Mutex
	limits  Limits
	state   *State
	store   StateStore
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	metrics *metrics.Recorder

	saveFailures int
	lastSaveErr  string
}

type Option func(*Gateway)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithSleeper overrides how WaitUntilAdmissible pauses.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(g *Gateway) { g.sleep = sleep }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(g *Gateway) { g.metrics = m }
}

// NewGateway builds a gateway and restores state from store. A nil store
// keeps state in memory only. A state that cannot be loaded is logged and
// replaced with an empty one.
func NewGateway(ctx context.Context, limits Limits, store StateStore, opts ...Option) *Gateway {
	g := &Gateway{
		limits: limits,
		state:  NewState(),
		store:  store,
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.refreshLocked(ctx)
	return g
}

// refreshLocked replaces the local view with the stored state. On a load
// failure the local counters stay in use.
func (g *Gateway) refreshLocked(ctx context.Context) {
	if g.store == nil {
		return
	}
	st, err := g.store.Load(ctx)
	switch {
	case err == nil:
		st.ensure()
		g.state = st
	case errors.Is(err, ErrStateNotFound):
	default:
		logger.Warn(ctx, "Failed to load budget state, using local counters", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Admit checks the three ceilings in order: per minute, per day, cost per
// day. It does not consume anything.
func (g *Gateway) Admit(ctx context.Context) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refreshLocked(ctx)
	d := g.checkLocked(g.now())
	g.metrics.RecordAdmission(d.Allowed)
	if !d.Allowed {
		logger.Budget(ctx, d.Reason, "ceiling", string(d.Ceiling))
	}
	return d
}

func (g *Gateway) checkLocked(now time.Time) Decision {
	g.state.rollover(now)
	g.state.pruneWindow(now)
	today := now.Format(dayLayout)

	if len(g.state.RecentRequests) >= g.limits.MaxRequestsPerMinute {
		return Decision{
			Reason:  fmt.Sprintf("Rate limit exceeded: %d requests per minute", g.limits.MaxRequestsPerMinute),
			Ceiling: CeilingMinute,
		}
	}
	if g.state.DailyRequests[today] >= g.limits.MaxRequestsPerDay {
		return Decision{
			Reason:  fmt.Sprintf("Daily limit exceeded: %d requests per day", g.limits.MaxRequestsPerDay),
			Ceiling: CeilingDay,
		}
	}
	if g.state.DailyCosts[today].GreaterThanOrEqual(decimal.NewFromFloat(g.limits.MaxDailyCost)) {
		return Decision{
			Reason:  fmt.Sprintf("Daily cost limit exceeded: $%.2f USD per day", g.limits.MaxDailyCost),
			Ceiling: CeilingCost,
		}
	}
	return Decision{Allowed: true}
}

// EstimateCost prices a token count with the 70/30 input/output split.
func (g *Gateway) EstimateCost(tokens int) decimal.Decimal {
	if tokens <= 0 {
		return decimal.Zero
	}
	in := int64(float64(tokens) * inputShare)
	out := int64(float64(tokens) * outputShare)
	inCost := decimal.NewFromInt(in).Mul(decimal.NewFromFloat(g.limits.InputPricePerMillion)).Div(million)
	outCost := decimal.NewFromInt(out).Mul(decimal.NewFromFloat(g.limits.OutputPricePerMillion)).Div(million)
	return inCost.Add(outCost)
}

// Record accounts for one completed call and persists the state. A save
// failure is returned and counted in Stats; the in-memory counters stay
// updated.
func (g *Gateway) Record(ctx context.Context, tokensUsed int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	today := now.Format(dayLayout)
	cost := g.EstimateCost(tokensUsed)
	apply := func(st *State) {
		st.ensure()
		st.rollover(now)
		st.RecentRequests = append(st.RecentRequests, now)
		st.DailyRequests[today]++
		st.DailyCosts[today] = st.DailyCosts[today].Add(cost)
		st.CostHistory[today] = st.CostHistory[today].Add(cost)
	}

	if g.store == nil {
		apply(g.state)
		g.metrics.SetCostToday(g.state.DailyCosts[today].InexactFloat64())
		return nil
	}

	st, err := g.store.Update(ctx, apply)
	if err != nil {
		apply(g.state)
		g.metrics.SetCostToday(g.state.DailyCosts[today].InexactFloat64())
		g.saveFailures++
		g.lastSaveErr = err.Error()
		g.metrics.RecordBudgetSaveFailure()
		logger.ErrorWithErr(ctx, "Failed to persist budget state", err)
		return fmt.Errorf("save budget state: %w", err)
	}
	g.state = st
	g.metrics.SetCostToday(g.state.DailyCosts[today].InexactFloat64())
	return nil
}

// WaitUntilAdmissible blocks until the per-minute window has room. Daily
// ceilings are not waited on; Admit reports them.
func (g *Gateway) WaitUntilAdmissible(ctx context.Context) error {
	for {
		g.mu.Lock()
		g.refreshLocked(ctx)
		now := g.now()
		g.state.pruneWindow(now)
		if len(g.state.RecentRequests) < g.limits.MaxRequestsPerMinute {
			g.mu.Unlock()
			return nil
		}
		wait := g.state.RecentRequests[0].Add(time.Minute).Sub(now)
		g.mu.Unlock()

		if wait <= 0 {
			continue
		}
		logger.Debug(ctx, "Waiting for per-minute budget window", "wait_ms", wait.Milliseconds())
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Stats reports usage as of the last Admit or Record. Costs are rounded to
// 4 decimals.
func (g *Gateway) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.state.rollover(now)
	g.state.pruneWindow(now)
	today := now.Format(dayLayout)
	costToday := g.state.DailyCosts[today]
	maxCost := decimal.NewFromFloat(g.limits.MaxDailyCost)

	return Stats{
		RequestsLastMinute:   len(g.state.RecentRequests),
		MaxRequestsPerMinute: g.limits.MaxRequestsPerMinute,
		RequestsToday:        g.state.DailyRequests[today],
		MaxRequestsPerDay:    g.limits.MaxRequestsPerDay,
		CostToday:            costToday.Round(4).InexactFloat64(),
		MaxDailyCost:         g.limits.MaxDailyCost,
		RemainingDailyBudget: maxCost.Sub(costToday).Round(4).InexactFloat64(),
		CostThisWeek:         g.state.costSince(now, 7).Round(4).InexactFloat64(),
		CostThisMonth:        g.state.costSince(now, 30).Round(4).InexactFloat64(),
		StateSaveFailures:    g.saveFailures,
		LastSaveError:        g.lastSaveErr,
	}
}

// Snapshot returns a copy of the current state.
func (g *Gateway) Snapshot() *State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Clone()
}
