package sentiment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sentiment-trading/internal/types"
)

func TestParseReply(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Reply
		ok   bool
	}{
		{
			name: "plain json",
			in:   `{"sentiment":"positive","score":0.8,"reasoning":"beat estimates","confidence":0.9}`,
			want: Reply{Label: types.LabelPositive, Score: 0.8, Confidence: 0.9, Reasoning: "beat estimates"},
			ok:   true,
		},
		{
			name: "json code fence",
			in:   "```json\n{\"sentiment\":\"negative\",\"score\":-0.5,\"reasoning\":\"miss\",\"confidence\":0.7}\n```",
			want: Reply{Label: types.LabelNegative, Score: -0.5, Confidence: 0.7, Reasoning: "miss"},
			ok:   true,
		},
		{
			name: "surrounding prose",
			in:   `Sure! Here you go: {"sentiment":"neutral","score":0.0,"reasoning":"flat","confidence":0.4} Hope that helps.`,
			want: Reply{Label: types.LabelNeutral, Score: 0, Confidence: 0.4, Reasoning: "flat"},
			ok:   true,
		},
		{
			name: "missing confidence defaults",
			in:   `{"sentiment":"positive","score":0.3}`,
			want: Reply{Label: types.LabelPositive, Score: 0.3, Confidence: 0.5},
			ok:   true,
		},
		{
			name: "out of range values are clamped",
			in:   `{"sentiment":"POSITIVE","score":4.2,"confidence":-1}`,
			want: Reply{Label: types.LabelPositive, Score: 1, Confidence: 0},
			ok:   true,
		},
		{
			name: "unknown label and quoted score",
			in:   `{"sentiment":"very bullish","score":"0.4","confidence":"0.6"}`,
			want: Reply{Label: types.LabelNeutral, Score: 0.4, Confidence: 0.6},
			ok:   true,
		},
		{
			name: "garbage",
			in:   "I cannot help with that.",
			want: Reply{Label: types.LabelNeutral, Reasoning: parseFailureReason},
		},
		{
			name: "broken braces",
			in:   `{"sentiment": "positive", "score": }`,
			want: Reply{Label: types.LabelNeutral, Reasoning: parseFailureReason},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseReply(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
