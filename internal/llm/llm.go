package llm

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrMissingAPIKey is returned when a provider is selected without its key.
var ErrMissingAPIKey = errors.New("api key missing")

// Options configure an HTTP scorer client. Empty fields fall back to the
// provider's defaults and environment.
type Options struct {
	Model    string
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// NewHTTPClient returns a resty client with JSON headers and a timeout.
func NewHTTPClient(timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := resty.New()
	c.SetTimeout(timeout)
	c.SetHeader("Content-Type", "application/json")
	return c
}

// ExtractText digs the assistant text out of a chat response body. It
// understands messages, completion-style and choices-style shapes, and falls
// back to the raw body when none match.
func ExtractText(body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return string(body)
	}

	if arr, ok := m["content"].([]any); ok {
		var sb strings.Builder
		for _, part := range arr {
			if p, ok := part.(map[string]any); ok {
				if s, ok := p["text"].(string); ok {
					sb.WriteString(s)
				}
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}

	if arr, ok := m["messages"].([]any); ok && len(arr) > 0 {
		if first, ok := arr[0].(map[string]any); ok {
			if s, ok := first["content"].(string); ok && strings.TrimSpace(s) != "" {
				return s
			}
		}
	}

	for _, k := range []string{"completion", "output", "output_text", "completion_text", "result"} {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}

	if arr, ok := m["choices"].([]any); ok && len(arr) > 0 {
		if c0, ok := arr[0].(map[string]any); ok {
			if msg, ok := c0["message"].(map[string]any); ok {
				if s, ok := msg["content"].(string); ok {
					return s
				}
			}
			if s, ok := c0["text"].(string); ok {
				return s
			}
		}
	}

	return string(body)
}
