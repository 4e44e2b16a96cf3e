package news

import (
	"regexp"
	"sort"
	"strings"
)

var cashtag = regexp.MustCompile(`\$([A-Z]{1,5})\b`)

// commonTickers are matched as bare substrings as well as cashtags.
var commonTickers = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "NFLX", "SPY", "QQQ", "DIA", "VIX"}

// ExtractMentions returns the sorted, de-duplicated tickers mentioned in
// text, either as $TICKER or as one of the common large-cap symbols.
func ExtractMentions(text string) []string {
	upper := strings.ToUpper(text)
	seen := make(map[string]struct{})
	for _, m := range cashtag.FindAllStringSubmatch(upper, -1) {
		seen[m[1]] = struct{}{}
	}
	for _, t := range commonTickers {
		if strings.Contains(upper, t) {
			seen[t] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Mentions reports whether text refers to ticker, by name or cashtag.
func Mentions(text, ticker string) bool {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(text), t)
}
