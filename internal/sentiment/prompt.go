package sentiment

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"sentiment-trading/internal/types"
)

const (
	systemPrompt = "You are a financial sentiment analyst. Always respond with valid JSON only."

	replyFormat = `Return a JSON object with the following structure:
{
    "sentiment": "positive", "negative", or "neutral",
    "score": a number between -1.0 (very negative) and 1.0 (very positive),
    "reasoning": a brief explanation (1-2 sentences),
    "confidence": a number between 0.0 and 1.0 indicating confidence in the analysis
}

Respond only with valid JSON, no additional text.`

	fingerprintChars = 200
)

// BuildPrompt renders the scoring request for one text. The ticker is
// optional.
func BuildPrompt(text, ticker string, temperature float32, maxTokens int) types.Prompt {
	var user string
	if ticker != "" {
		user = fmt.Sprintf("Analyze the sentiment for stock %s based on the following text:\n\n\"%s\"\n\n%s", ticker, text, replyFormat)
	} else {
		user = fmt.Sprintf("Analyze the sentiment of the following text regarding stocks/investing:\n\n\"%s\"\n\n%s", text, replyFormat)
	}
	return types.Prompt{
		System:      systemPrompt,
		User:        user,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// Fingerprint is the cache key for (ticker, text): md5 of "ticker:" plus the
// first 200 characters of text.
func Fingerprint(text, ticker string) string {
	r := []rune(text)
	if len(r) > fingerprintChars {
		r = r[:fingerprintChars]
	}
	sum := md5.Sum([]byte(ticker + ":" + string(r)))
	return hex.EncodeToString(sum[:])
}
