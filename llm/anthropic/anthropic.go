// Package anthropic adapts the official anthropic-sdk-go SDK to the
// llm.Client contract.
//
// Claude has no native JSON mode, so JSON completions append a strict
// JSON-only instruction to the system prompt and rely on the shared tolerant
// extractor to peel any remaining markdown off the response.
package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/paperflow/llm"
)

const jsonInstruction = "\n\nYou MUST respond with valid JSON only." +
	" No markdown, no explanation, no extra text."

// Client implements llm.Client for Anthropic's Messages API.
type Client struct {
	inner messageAPI
}

// messageAPI is the narrow slice of the SDK this adapter needs.
// Tests substitute a fake.
type messageAPI interface {
	createMessage(ctx context.Context, system, user string) (string, error)
}

// New creates a Claude-backed client from cfg.
func New(cfg llm.Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	sdk := anthropic.NewClient(opts...)

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}

	return &Client{inner: &sdkClient{
		client:      &sdk,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int64(maxTokens),
	}}
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	text, err := c.inner.createMessage(ctx, systemPrompt, userMessage)
	if err != nil {
		return "", llm.WrapProviderError("claude", err)
	}
	return text, nil
}

// CompleteJSON implements llm.Client. The schema hint is folded into the
// prompt contract upstream; here it is ignored.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userMessage string, schema map[string]any) (map[string]any, error) {
	text, err := c.inner.createMessage(ctx, systemPrompt+jsonInstruction, userMessage)
	if err != nil {
		return nil, llm.WrapProviderError("claude", err)
	}
	return llm.ExtractJSON(text)
}

type sdkClient struct {
	client      *anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

func (s *sdkClient) createMessage(ctx context.Context, system, user string) (string, error) {
	message, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(s.model),
		MaxTokens:   s.maxTokens,
		Temperature: anthropic.Float(s.temperature),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
