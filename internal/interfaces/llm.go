package interfaces

import (
	"context"

	"sentiment-trading/internal/types"
)

// SentimentClient sends one prompt to a costed external scorer.
type SentimentClient interface {
	Complete(ctx context.Context, p types.Prompt) (types.Completion, error)
}
