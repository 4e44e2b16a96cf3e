package sentiment

import (
	"sort"
	"strings"

	"sentiment-trading/internal/types"
)

const outlookThreshold = 0.3

// Classify maps a weighted score to an outlook. Both thresholds are
// exclusive.
func Classify(weighted float64) types.Outlook {
	switch {
	case weighted > outlookThreshold:
		return types.OutlookBullish
	case weighted < -outlookThreshold:
		return types.OutlookBearish
	default:
		return types.OutlookNeutral
	}
}

// Aggregate folds observations into a ticker-level snapshot. An empty input
// yields the zero snapshot with a neutral outlook.
func Aggregate(obs []types.SentimentObservation) types.SentimentSnapshot {
	if len(obs) == 0 {
		return types.SentimentSnapshot{Overall: types.OutlookNeutral}
	}

	var sum, weightedSum, totalConf float64
	var pos, neg, neu int
	for _, o := range obs {
		sum += o.Score
		weightedSum += o.Score * o.Confidence
		totalConf += o.Confidence

		switch types.Label(strings.ToLower(string(o.Label))) {
		case types.LabelPositive:
			pos++
		case types.LabelNegative:
			neg++
		case types.LabelNeutral:
			neu++
		}
	}

	n := float64(len(obs))
	avg := sum / n
	weighted := avg
	if totalConf > 0 {
		weighted = weightedSum / totalConf
	}

	return types.SentimentSnapshot{
		Overall:            Classify(weighted),
		AverageScore:       avg,
		WeightedScore:      weighted,
		Confidence:         totalConf / n,
		PositiveCount:      pos,
		NegativeCount:      neg,
		NeutralCount:       neu,
		TotalCount:         len(obs),
		PositivePercentage: float64(pos) / n * 100,
		NegativePercentage: float64(neg) / n * 100,
	}
}

// DailyHistory groups observations by UTC calendar date, ascending.
func DailyHistory(obs []types.SentimentObservation) []types.DailySentiment {
	type acc struct {
		score, conf float64
		n           int
	}
	byDay := make(map[string]*acc)
	for _, o := range obs {
		day := o.Timestamp.UTC().Format(types.DateLayout)
		a, ok := byDay[day]
		if !ok {
			a = &acc{}
			byDay[day] = a
		}
		a.score += o.Score
		a.conf += o.Confidence
		a.n++
	}

	out := make([]types.DailySentiment, 0, len(byDay))
	for day, a := range byDay {
		out = append(out, types.DailySentiment{
			Date:          day,
			AvgScore:      a.score / float64(a.n),
			AvgConfidence: a.conf / float64(a.n),
			Count:         a.n,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
