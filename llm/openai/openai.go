// Package openai adapts the official openai-go SDK to the llm.Client
// contract. It also works against OpenAI-compatible endpoints via
// Config.BaseURL.
package openai

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/paperflow/llm"
)

// Client implements llm.Client for OpenAI's chat completion API.
// JSON completions use the API's native JSON mode.
type Client struct {
	inner completionAPI
}

// completionAPI is the narrow slice of the SDK this adapter needs.
// Tests substitute a fake.
type completionAPI interface {
	createCompletion(ctx context.Context, system, user string, jsonMode bool) (string, error)
}

// New creates an OpenAI-backed client from cfg.
func New(cfg llm.Config) *Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	sdk := openai.NewClient(opts...)

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
	text, err := c.inner.createCompletion(ctx, systemPrompt, userMessage, false)
	if err != nil {
		return "", llm.WrapProviderError("openai", err)
	}
	return text, nil
}

// CompleteJSON implements llm.Client. The schema hint is not forwarded;
// JSON mode already constrains the output to a single object.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userMessage string, schema map[string]any) (map[string]any, error) {
	text, err := c.inner.createCompletion(ctx, systemPrompt, userMessage, true)
	if err != nil {
		return nil, llm.WrapProviderError("openai", err)
	}
	return llm.ExtractJSON(text)
}

type sdkClient struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

func (s *sdkClient) createCompletion(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(s.temperature),
		MaxTokens:   openai.Int(s.maxTokens),
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: openai.Ptr(shared.NewResponseFormatJSONObjectParam()),
		}
	}

	completion, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", nil
	}
	return completion.Choices[0].Message.Content, nil
}
