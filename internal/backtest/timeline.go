package backtest

import (
	"sort"

	"sentiment-trading/internal/types"
)

// defaultConfidence is used before the first sentiment aggregate is known.
const defaultConfidence = 0.3

// Timeline answers "what was the sentiment as of day D" from per-day
// aggregates without looking ahead.
type Timeline struct {
	days []types.DailySentiment
}

// NewTimeline copies and sorts the history by date.
func NewTimeline(history []types.DailySentiment) *Timeline {
	days := make([]types.DailySentiment, len(history))
	copy(days, history)
	sort.SliceStable(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return &Timeline{days: days}
}

// AsOf returns the snapshot of the latest aggregate dated on or before day
// (YYYY-MM-DD). Before any aggregate it returns a neutral snapshot with
// confidence 0.3 and no mentions. Replayed snapshots always carry a neutral
// outlook; only the scores drive the signal.
func (t *Timeline) AsOf(day string) types.SentimentSnapshot {
	i := sort.Search(len(t.days), func(i int) bool { return t.days[i].Date > day })
	if i == 0 {
		return types.SentimentSnapshot{
			Overall:    types.OutlookNeutral,
			Confidence: defaultConfidence,
		}
	}
	d := t.days[i-1]
	return types.SentimentSnapshot{
		Overall:       types.OutlookNeutral,
		AverageScore:  d.AvgScore,
		WeightedScore: d.AvgScore,
		Confidence:    d.AvgConfidence,
		TotalCount:    d.Count,
	}
}

func (t *Timeline) Len() int { return len(t.days) }
