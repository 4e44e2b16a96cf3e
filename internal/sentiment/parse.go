package sentiment

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"sentiment-trading/internal/types"
)

const parseFailureReason = "Unable to parse sentiment"

// Reply is a validated scorer answer. Every field has a value in range.
type Reply struct {
	Label      types.Label
	Score      float64
	Confidence float64
	Reasoning  string
}

// flexFloat accepts a JSON number or a quoted number. Anything else leaves
// it unset.
type flexFloat struct {
	v   float64
	set bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		b = []byte(strings.TrimSpace(s))
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	f.v, f.set = v, true
	return nil
}

type rawReply struct {
	Sentiment  *string   `json:"sentiment"`
	Score      flexFloat `json:"score"`
	Confidence flexFloat `json:"confidence"`
	Reasoning  *string   `json:"reasoning"`
}

// ParseReply extracts the structured answer from a scorer reply. It strips
// code fences, tries the whole text, then the span from the first '{' to the
// last '}'. ok is false when nothing parses.
func ParseReply(content string) (Reply, bool) {
	content = stripFences(strings.TrimSpace(content))

	raw, ok := decodeObject(content)
	if !ok {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end <= start {
			return fallbackReply(), false
		}
		if raw, ok = decodeObject(content[start : end+1]); !ok {
			return fallbackReply(), false
		}
	}
	return normalize(raw), true
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	parts := strings.Split(s, "```")
	if len(parts) < 2 {
		return s
	}
	inner := strings.TrimPrefix(parts[1], "json")
	return strings.TrimSpace(inner)
}

func decodeObject(s string) (rawReply, bool) {
	var r rawReply
	if !strings.HasPrefix(strings.TrimSpace(s), "{") {
		return r, false
	}
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return r, false
	}
	return r, true
}

func normalize(r rawReply) Reply {
	out := Reply{Label: types.LabelNeutral, Confidence: 0.5}

	if r.Sentiment != nil {
		switch l := types.Label(strings.ToLower(strings.TrimSpace(*r.Sentiment))); l {
		case types.LabelPositive, types.LabelNegative, types.LabelNeutral:
			out.Label = l
		}
	}
	if r.Score.set {
		out.Score = clamp(r.Score.v, -1, 1)
	}
	if r.Confidence.set {
		out.Confidence = clamp(r.Confidence.v, 0, 1)
	}
	if r.Reasoning != nil {
		out.Reasoning = *r.Reasoning
	}
	return out
}

func fallbackReply() Reply {
	return Reply{Label: types.LabelNeutral, Reasoning: parseFailureReason}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
