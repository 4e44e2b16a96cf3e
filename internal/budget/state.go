package budget

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	counterRetentionDays = 7
	historyRetentionDays = 30
	dayLayout            = "2006-01-02"
)

// State is the persisted gateway state. Days are keyed YYYY-MM-DD.
type State struct {
	RecentRequests []time.Time                `json:"recent_requests"`
	DailyRequests  map[string]int             `json:"daily_requests"`
	DailyCosts     map[string]decimal.Decimal `json:"daily_costs"`
	CostHistory    map[string]decimal.Decimal `json:"cost_history"`
	LastRollover   string                     `json:"last_rollover,omitempty"`
}

func NewState() *State {
	s := &State{}
	s.ensure()
	return s
}

func (s *State) ensure() {
	if s.DailyRequests == nil {
		s.DailyRequests = make(map[string]int)
	}
	if s.DailyCosts == nil {
		s.DailyCosts = make(map[string]decimal.Decimal)
	}
	if s.CostHistory == nil {
		s.CostHistory = make(map[string]decimal.Decimal)
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := &State{
		RecentRequests: append([]time.Time(nil), s.RecentRequests...),
		DailyRequests:  make(map[string]int, len(s.DailyRequests)),
		DailyCosts:     make(map[string]decimal.Decimal, len(s.DailyCosts)),
		CostHistory:    make(map[string]decimal.Decimal, len(s.CostHistory)),
		LastRollover:   s.LastRollover,
	}
	for k, v := range s.DailyRequests {
		c.DailyRequests[k] = v
	}
	for k, v := range s.DailyCosts {
		c.DailyCosts[k] = v
	}
	for k, v := range s.CostHistory {
		c.CostHistory[k] = v
	}
	return c
}

// rollover drops counters that fell out of their retention windows. It runs
// at most once per calendar day.
func (s *State) rollover(today time.Time) {
	key := today.Format(dayLayout)
	if s.LastRollover == key {
		return
	}
	s.LastRollover = key

	counterCutoff := today.AddDate(0, 0, -counterRetentionDays).Format(dayLayout)
	for d := range s.DailyRequests {
		if d < counterCutoff {
			delete(s.DailyRequests, d)
		}
	}
	for d := range s.DailyCosts {
		if d < counterCutoff {
			delete(s.DailyCosts, d)
		}
	}

	historyCutoff := today.AddDate(0, 0, -historyRetentionDays).Format(dayLayout)
	for d := range s.CostHistory {
		if d < historyCutoff {
			delete(s.CostHistory, d)
		}
	}
}

// pruneWindow keeps only requests newer than one minute before now.
func (s *State) pruneWindow(now time.Time) {
	cutoff := now.Add(-time.Minute)
	kept := s.RecentRequests[:0]
	for _, ts := range s.RecentRequests {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	s.RecentRequests = kept
	sort.Slice(s.RecentRequests, func(i, j int) bool { return s.RecentRequests[i].Before(s.RecentRequests[j]) })
}

// costSince sums the history for days on or after today-days.
func (s *State) costSince(today time.Time, days int) decimal.Decimal {
	cutoff := today.AddDate(0, 0, -days).Format(dayLayout)
	total := decimal.Zero
	for d, v := range s.CostHistory {
		if d >= cutoff {
			total = total.Add(v)
		}
	}
	return total
}
