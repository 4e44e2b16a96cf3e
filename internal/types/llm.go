package types

// Prompt is a single chat-style request to the external scorer.
type Prompt struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Completion is the scorer's reply plus the tokens it was billed for.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens is what the budget gateway charges for the call.
func (c Completion) TotalTokens() int { return c.PromptTokens + c.CompletionTokens }
