package skill

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/paperflow/llm"
	"github.com/dshills/paperflow/paper"
	"github.com/dshills/paperflow/prompt"
)

// maxResultsCap bounds any strategy's result budget regardless of what the
// model or the user asks for.
const maxResultsCap = 200

// QueryBuilder turns a parsed intent plus accumulated history into an
// executable search strategy.
type QueryBuilder struct {
	client           llm.Client
	availableSources []string
	domain           string

	// DefaultMaxResults overrides the package default result cap applied
	// when neither the model nor the intent supplies one.
	DefaultMaxResults int
}

// NewQueryBuilder creates a QueryBuilder restricted to availableSources.
func NewQueryBuilder(client llm.Client, availableSources []string, domain string) *QueryBuilder {
	return &QueryBuilder{
		client:           client,
		availableSources: availableSources,
		domain:           domain,
	}
}

var strategySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"queries": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"keywords": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"synonym_map": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"keyword":  map[string]any{"type": "string"},
								"synonyms": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
							},
						},
					},
					"boolean_query": map[string]any{"type": "string"},
				},
				"required": []any{"keywords", "boolean_query"},
			},
		},
		"sources": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"filters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"year_from":   map[string]any{"type": "integer"},
				"year_to":     map[string]any{"type": "integer"},
				"language":    map[string]any{"type": "string"},
				"max_results": map[string]any{"type": "integer"},
			},
		},
	},
	"required": []any{"queries", "sources"},
}

// Build produces a sanitized SearchStrategy for input. Model failures and
// undecodable responses degrade to a deterministic strategy derived from the
// intent; only context cancellation surfaces as an error.
func (b *QueryBuilder) Build(ctx context.Context, input paper.QueryBuilderInput) (paper.SearchStrategy, error) {
	system := prompt.Compose(prompt.QueryBuilding, b.domain)

	data, err := b.client.CompleteJSON(ctx, system, b.userMessage(input), strategySchema)
	if err != nil {
		if ctx.Err() != nil {
			return paper.SearchStrategy{}, ctx.Err()
		}
		return b.sanitize(b.fallbackStrategy(input.Intent), input.Intent), nil
	}

	strategy, err := paper.DecodeStrategy(data)
	if err != nil {
		return b.sanitize(b.fallbackStrategy(input.Intent), input.Intent), nil
	}
	return b.sanitize(strategy, input.Intent), nil
}

// userMessage assembles the builder's input as a structured message the
// prompt's schema instructions refer to.
func (b *QueryBuilder) userMessage(input paper.QueryBuilderInput) string {
	var sb strings.Builder

	intentJSON, _ := json.MarshalIndent(input.Intent, "", "  ")
	fmt.Fprintf(&sb, "Parsed intent:\n%s\n\n", intentJSON)
	fmt.Fprintf(&sb, "Available sources: %s\n", strings.Join(b.availableSources, ", "))

	if len(input.PreviousStrategies) > 0 {
		prevJSON, _ := json.MarshalIndent(input.PreviousStrategies, "", "  ")
		fmt.Fprintf(&sb, "\nPrevious strategies (avoid repeating these):\n%s\n", prevJSON)
	}
	if input.UserFeedback != nil {
		fbJSON, _ := json.MarshalIndent(input.UserFeedback, "", "  ")
		fmt.Fprintf(&sb, "\nUser feedback on the last round:\n%s\n", fbJSON)
	}
	return sb.String()
}

// sanitize enforces the strategy invariants whatever the model produced:
// sources restricted to the available set, ordered year range, result budget
// within bounds, and at least one usable query.
func (b *QueryBuilder) sanitize(strategy paper.SearchStrategy, intent paper.ParsedIntent) paper.SearchStrategy {
	available := make(map[string]bool, len(b.availableSources))
	for _, s := range b.availableSources {
		available[s] = true
	}
	var sources []string
	for _, s := range strategy.Sources {
		if available[s] {
			sources = append(sources, s)
		}
	}
	if len(sources) == 0 {
		sources = append(sources, b.availableSources...)
	}
	strategy.Sources = sources

	f := &strategy.Filters
	if f.YearFrom == 0 {
		f.YearFrom = intent.Constraints.YearFrom
	}
	if f.YearTo == 0 {
		f.YearTo = intent.Constraints.YearTo
	}
	if f.YearFrom != 0 && f.YearTo != 0 && f.YearFrom > f.YearTo {
		f.YearFrom, f.YearTo = f.YearTo, f.YearFrom
	}
	if f.Language == "" {
		f.Language = intent.Constraints.Language
	}
	if f.MaxResults <= 0 {
		f.MaxResults = intent.Constraints.MaxResults
	}
	if f.MaxResults <= 0 {
		f.MaxResults = b.DefaultMaxResults
	}
	if f.MaxResults <= 0 {
		f.MaxResults = paper.DefaultConstraints().MaxResults
	}
	if f.MaxResults > maxResultsCap {
		f.MaxResults = maxResultsCap
	}

	queries := strategy.Queries[:0]
	for _, q := range strategy.Queries {
		if q.BooleanQuery == "" && len(q.Keywords) == 0 {
			continue
		}
		if q.BooleanQuery == "" {
			q.BooleanQuery = strings.Join(q.Keywords, " AND ")
		}
		queries = append(queries, q)
	}
	if len(queries) == 0 {
		queries = append(queries, conceptQuery(intent))
	}
	strategy.Queries = queries

	return strategy
}

// fallbackStrategy is the deterministic no-model strategy: one query joining
// the intent's concepts with AND across every available source.
func (b *QueryBuilder) fallbackStrategy(intent paper.ParsedIntent) paper.SearchStrategy {
	return paper.SearchStrategy{
		Queries: []paper.SearchQuery{conceptQuery(intent)},
		Sources: append([]string(nil), b.availableSources...),
		Filters: intent.Constraints,
	}
}

func conceptQuery(intent paper.ParsedIntent) paper.SearchQuery {
	concepts := intent.Concepts
	if len(concepts) == 0 {
		concepts = []string{intent.Topic}
	}
	return paper.SearchQuery{
		Keywords:     append([]string(nil), concepts...),
		BooleanQuery: strings.Join(concepts, " AND "),
	}
}
