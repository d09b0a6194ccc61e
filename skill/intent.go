// Package skill implements the six pipeline stages: intent parsing, query
// building, searching, deduplication, relevance scoring, and organizing.
//
// Stages downstream of intent parsing share a degradation policy: when the
// model fails or returns garbage, the stage falls back to a deterministic
// result rather than aborting the run. Intent parsing is the exception;
// without a valid intent there is nothing meaningful to search for, so its
// failures surface to the caller. Context cancellation always propagates.
package skill

import (
	"context"
	"fmt"

	"github.com/dshills/paperflow/llm"
	"github.com/dshills/paperflow/paper"
	"github.com/dshills/paperflow/prompt"
)

// IntentParser turns a natural-language research query into a structured
// intent using an LLM.
type IntentParser struct {
	client llm.Client
	domain string
}

// NewIntentParser creates an IntentParser. domain selects an optional prompt
// glossary ("materials_science"); empty means general.
func NewIntentParser(client llm.Client, domain string) *IntentParser {
	return &IntentParser{client: client, domain: domain}
}

var intentSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"topic":    map[string]any{"type": "string"},
		"concepts": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"intent_type": map[string]any{
			"type": "string",
			"enum": []any{"survey", "method", "dataset", "baseline"},
		},
		"constraints": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"year_from":   map[string]any{"type": "integer"},
				"year_to":     map[string]any{"type": "integer"},
				"language":    map[string]any{"type": "string"},
				"max_results": map[string]any{"type": "integer"},
			},
		},
	},
	"required": []any{"topic", "concepts", "intent_type"},
}

// Parse extracts a ParsedIntent from query. Model failures and invalid
// responses are returned as errors; the engine treats them as fatal.
func (p *IntentParser) Parse(ctx context.Context, query string) (paper.ParsedIntent, error) {
	system := prompt.Compose(prompt.IntentParsing, p.domain)

	data, err := p.client.CompleteJSON(ctx, system, query, intentSchema)
	if err != nil {
		if ctx.Err() != nil {
			return paper.ParsedIntent{}, ctx.Err()
		}
		return paper.ParsedIntent{}, fmt.Errorf("intent: %w", err)
	}

	intent, err := paper.DecodeIntent(data)
	if err != nil {
		return paper.ParsedIntent{}, fmt.Errorf("intent: %w", err)
	}
	if intent.Constraints.MaxResults <= 0 {
		intent.Constraints.MaxResults = paper.DefaultConstraints().MaxResults
	}
	return intent, nil
}
