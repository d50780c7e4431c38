package provider

import "context"

// Message is one turn in a chat request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for one call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Total returns the combined token count.
func (u Usage) Total() int64 { return u.PromptTokens + u.CompletionTokens }

// ChatOptions tunes a single chat call.
type ChatOptions struct {
	Temperature *float64
	MaxTokens   int
	JSONMode    bool // request a JSON object response
}

// Provider is the LLM backend used by all agents.
type Provider interface {
	// Chat sends a structured conversation and returns the raw completion.
	Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (string, Usage, error)

	// Embed generates vector embeddings for the provided inputs.
	Embed(ctx context.Context, model string, input []string) ([][]float32, error)

	// Verify performs a cheap credential sanity check; failures are
	// startup-fatal for the pipeline.
	Verify(ctx context.Context) error

	// CostEstimate converts token usage into an approximate dollar cost.
	CostEstimate(model string, usage Usage) float64
}
