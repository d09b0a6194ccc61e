// Package llm provides a uniform contract over heterogeneous text-generation
// backends plus the shared tolerant JSON extraction they all converge on.
//
// The client knows nothing about papers or search; it is a generic model
// interface. Backend adapters live in the openai, anthropic and google
// subpackages and translate their SDK's failures into the taxonomy defined
// in errors.go.
package llm

import "context"

// Client is the uniform model contract.
//
// Complete returns the model's text response; an empty response yields an
// empty string, never an error. CompleteJSON returns a parsed JSON object;
// schema is a hint the backend may or may not honor. Neither method retries;
// callers own retry policy.
type Client interface {
	Complete(ctx context.Context, systemPrompt, userMessage string) (string, error)
	CompleteJSON(ctx context.Context, systemPrompt, userMessage string, schema map[string]any) (map[string]any, error)
}

// Config carries backend selection and generation parameters.
type Config struct {
	// Provider selects the backend: "openai", "claude" or "gemini".
	Provider string
	// Model is the backend-specific model name.
	Model string
	// APIKey authenticates against the backend.
	APIKey string
	// BaseURL overrides the backend endpoint when non-empty.
	BaseURL string
	// Temperature for generation. Zero by default; the pipeline wants
	// deterministic structured output.
	Temperature float64
	// MaxTokens caps the response length.
	MaxTokens int
}

// DefaultMaxTokens is applied when Config.MaxTokens is zero.
const DefaultMaxTokens = 4096
