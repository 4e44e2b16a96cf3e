package llmobs

import (
	"context"
	"time"

	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/trace"
	"sentiment-trading/internal/types"
)

// observableClient wraps a SentimentClient with logging and tracing
type observableClient struct {
	client   interfaces.SentimentClient
	provider string
}

var _ interfaces.SentimentClient = (*observableClient)(nil)

// Wrap wraps a client with observability middleware
func Wrap(client interfaces.SentimentClient, provider string) interfaces.SentimentClient {
	return &observableClient{client: client, provider: provider}
}

func (oc *observableClient) Complete(ctx context.Context, p types.Prompt) (types.Completion, error) {
	ctx, span := trace.StartSpan(ctx, "llm.Complete")
	defer span.End()

	// skip 1 so the caller is reported, not this wrapper
	logger.DebugSkip(ctx, 1, "Requesting sentiment completion",
		"provider", oc.provider,
		"prompt_length", len(p.User),
	)

	start := time.Now()
	c, err := oc.client.Complete(ctx, p)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Sentiment completion failed", err,
			"provider", oc.provider,
			"latency_ms", time.Since(start).Milliseconds(),
		)
		return types.Completion{}, err
	}

	logger.InfoSkip(ctx, 1, "Sentiment completion received",
		"provider", oc.provider,
		"prompt_tokens", c.PromptTokens,
		"completion_tokens", c.CompletionTokens,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return c, nil
}
