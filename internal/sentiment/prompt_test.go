package sentiment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	base := strings.Repeat("a", 200)

	assert.Equal(t, Fingerprint("hello", "AAPL"), Fingerprint("hello", "AAPL"))
	assert.NotEqual(t, Fingerprint("hello", "AAPL"), Fingerprint("hello", "MSFT"))
	assert.NotEqual(t, Fingerprint("hello", ""), Fingerprint("hello", "AAPL"))
	assert.Equal(t, Fingerprint(base+"tail one", "X"), Fingerprint(base+"tail two", "X"),
		"only the first 200 characters count")
	assert.Len(t, Fingerprint("x", ""), 32)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("Earnings beat", "TSLA", 0.3, 200)
	assert.Equal(t, systemPrompt, p.System)
	assert.True(t, strings.HasPrefix(p.User, "Analyze the sentiment for stock TSLA based on the following text:"))
	assert.Contains(t, p.User, `"Earnings beat"`)
	assert.Contains(t, p.User, "Respond only with valid JSON, no additional text.")
	assert.Equal(t, 200, p.MaxTokens)

	generic := BuildPrompt("Markets up", "", 0.3, 200)
	assert.True(t, strings.HasPrefix(generic.User, "Analyze the sentiment of the following text regarding stocks/investing:"))
}
