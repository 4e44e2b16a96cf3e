package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"sentiment-trading/internal/llm"
	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/trace"
	"sentiment-trading/internal/types"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultModel    = "gpt-4o-mini"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Client calls the OpenAI chat completions API.
type Client struct {
	http     *resty.Client
	endpoint string
	model    string
	apiKey   string
}

// New builds a client. The key falls back to OPENAI_API_KEY.
func New(opts llm.Options) *Client {
	c := &Client{
		http:     llm.NewHTTPClient(opts.Timeout),
		endpoint: opts.Endpoint,
		model:    opts.Model,
		apiKey:   opts.APIKey,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.apiKey == "" {
		c.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return c
}

func (c *Client) Complete(ctx context.Context, p types.Prompt) (types.Completion, error) {
	ctx, span := trace.StartSpan(ctx, "openai-api-call")
	defer span.End()

	if c.apiKey == "" {
		return types.Completion{}, fmt.Errorf("OPENAI_API_KEY: %w", llm.ErrMissingAPIKey)
	}

	body := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}

	start := time.Now()
	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(body).
		SetResult(&out).
		Post(c.endpoint)
	if err != nil {
		return types.Completion{}, err
	}
	logger.Debug(ctx, "Received response from OpenAI",
		"status_code", resp.StatusCode(),
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if resp.IsError() {
		return types.Completion{}, fmt.Errorf("openai http %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Choices) == 0 {
		return types.Completion{}, errors.New("openai: no choices")
	}

	return types.Completion{
		Text:             out.Choices[0].Message.Content,
		PromptTokens:     out.Usage.PromptTokens,
		CompletionTokens: out.Usage.CompletionTokens,
	}, nil
}
