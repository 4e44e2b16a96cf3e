package claude

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"sentiment-trading/internal/llm"
	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/trace"
	"sentiment-trading/internal/types"
)

const (
	DefaultEndpoint = "https://api.anthropic.com/v1/messages"
	DefaultModel    = "claude-3-5-haiku-latest"
	apiVersion      = "2023-06-01"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature"`
}

type messagesResponse struct {
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Client calls the Anthropic messages API.
type Client struct {
	http     *resty.Client
	endpoint string
	model    string
	apiKey   string
}

// New builds a client. The endpoint falls back to CLAUDE_API_ENDPOINT (for
// proxies) and the key to ANTHROPIC_API_KEY, then CLAUDE_API_KEY.
func New(opts llm.Options) *Client {
	c := &Client{
		http:     llm.NewHTTPClient(opts.Timeout),
		endpoint: opts.Endpoint,
		model:    opts.Model,
		apiKey:   opts.APIKey,
	}
	if c.endpoint == "" {
		c.endpoint = os.Getenv("CLAUDE_API_ENDPOINT")
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.apiKey == "" {
		c.apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.apiKey == "" {
		c.apiKey = os.Getenv("CLAUDE_API_KEY")
	}
	return c
}

func (c *Client) Complete(ctx context.Context, p types.Prompt) (types.Completion, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	if c.apiKey == "" {
		return types.Completion{}, fmt.Errorf("ANTHROPIC_API_KEY: %w", llm.ErrMissingAPIKey)
	}

	body := messagesRequest{
		Model:       c.model,
		System:      p.System,
		Messages:    []message{{Role: "user", Content: p.User}},
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}

	start := time.Now()
	var out messagesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.apiKey).
		SetHeader("anthropic-version", apiVersion).
		SetBody(body).
		SetResult(&out).
		Post(c.endpoint)
	if err != nil {
		return types.Completion{}, err
	}
	logger.Debug(ctx, "Received response from Claude",
		"status_code", resp.StatusCode(),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if resp.IsError() {
		return types.Completion{}, fmt.Errorf("claude http %d: %s", resp.StatusCode(), resp.String())
	}

	// Proxies in front of the API do not always keep the messages shape.
	text := strings.TrimSpace(llm.ExtractText(resp.Body()))

	return types.Completion{
		Text:             text,
		PromptTokens:     out.Usage.InputTokens,
		CompletionTokens: out.Usage.OutputTokens,
	}, nil
}
