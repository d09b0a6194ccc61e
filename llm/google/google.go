// Package google adapts the official generative-ai-go SDK to the llm.Client
// contract. JSON completions set the JSON response MIME type and forward the
// schema hint when it converts cleanly.
package google

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/paperflow/llm"
)

// Client implements llm.Client for Google's Gemini API.
type Client struct {
	inner generateAPI
	sdk   *genai.Client
}

// generateAPI is the narrow slice of the SDK this adapter needs.
// Tests substitute a fake.
type generateAPI interface {
	generate(ctx context.Context, system, user string, jsonMode bool, schema *genai.Schema) (string, error)
}

// New creates a Gemini-backed client from cfg. The context covers client
// construction only. Call Close when done.
func New(ctx context.Context, cfg llm.Config) (*Client, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	sdk, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}

	return &Client{
		sdk: sdk,
		inner: &sdkGenerator{
			client:      sdk,
			model:       cfg.Model,
			temperature: float32(cfg.Temperature),
			maxTokens:   int32(maxTokens),
		},
	}, nil
}

// Close releases the underlying SDK client.
func (c *Client) Close() error {
	if c.sdk != nil {
		return c.sdk.Close()
	}
	return nil
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	text, err := c.inner.generate(ctx, systemPrompt, userMessage, false, nil)
	if err != nil {
		return "", llm.WrapProviderError("gemini", err)
	}
	return text, nil
}

// CompleteJSON implements llm.Client.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userMessage string, schema map[string]any) (map[string]any, error) {
	text, err := c.inner.generate(ctx, systemPrompt, userMessage, true, convertSchema(schema))
	if err != nil {
		return nil, llm.WrapProviderError("gemini", err)
	}
	return llm.ExtractJSON(text)
}

type sdkGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

func (s *sdkGenerator) generate(ctx context.Context, system, user string, jsonMode bool, schema *genai.Schema) (string, error) {
	m := s.client.GenerativeModel(s.model)
	m.SetTemperature(s.temperature)
	m.SetMaxOutputTokens(s.maxTokens)
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if jsonMode {
		m.ResponseMIMEType = "application/json"
		m.ResponseSchema = schema
	}

	resp, err := m.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	return text, nil
}

// convertSchema translates a JSON-Schema-shaped mapping into the SDK's
// schema type. Best effort: any construct it does not recognize yields nil,
// and the MIME type constraint alone carries the request.
func convertSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return nil
	}

	typ, _ := schema["type"].(string)
	out := &genai.Schema{}

	switch typ {
	case "object":
		out.Type = genai.TypeObject
		if props, ok := schema["properties"].(map[string]any); ok {
			out.Properties = make(map[string]*genai.Schema, len(props))
			for name, raw := range props {
				sub, ok := raw.(map[string]any)
				if !ok {
					return nil
				}
				converted := convertSchema(sub)
				if converted == nil {
					return nil
				}
				out.Properties[name] = converted
			}
		}
		if required, ok := schema["required"].([]any); ok {
			for _, r := range required {
				name, ok := r.(string)
				if !ok {
					return nil
				}
				out.Required = append(out.Required, name)
			}
		}
	case "array":
		out.Type = genai.TypeArray
		items, ok := schema["items"].(map[string]any)
		if !ok {
			return nil
		}
		out.Items = convertSchema(items)
		if out.Items == nil {
			return nil
		}
	case "string":
		out.Type = genai.TypeString
		if enum, ok := schema["enum"].([]any); ok {
			for _, e := range enum {
				v, ok := e.(string)
				if !ok {
					return nil
				}
				out.Enum = append(out.Enum, v)
			}
		}
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		return nil
	}

	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	return out
}
