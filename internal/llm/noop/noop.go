package noop

import (
	"context"

	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/types"
)

const reply = `{"sentiment": "neutral", "score": 0.0, "confidence": 0.0, "reasoning": "No scorer configured"}`

// Client is the offline fallback used when no provider is configured. It
// always answers neutral and bills zero tokens.
type Client struct{}

func New() *Client {
	return &Client{}
}

func (c *Client) Complete(ctx context.Context, p types.Prompt) (types.Completion, error) {
	logger.Debug(ctx, "Noop scorer called - always returns neutral", "prompt_length", len(p.User))
	return types.Completion{Text: reply}, nil
}
