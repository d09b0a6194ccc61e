package skill

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dshills/paperflow/llm"
	"github.com/dshills/paperflow/paper"
	"github.com/dshills/paperflow/prompt"
)

const (
	// DefaultScoreBatchSize is how many papers go to the model per request.
	DefaultScoreBatchSize = 10
	// DefaultScoreConcurrency caps in-flight scoring requests.
	DefaultScoreConcurrency = 3

	scoreTitleLimit   = 200
	scoreSnippetLimit = 500
)

// RelevanceScorer scores papers against the research intent in concurrent
// batches.
type RelevanceScorer struct {
	client      llm.Client
	batchSize   int
	concurrency int
	domain      string
}

// NewRelevanceScorer creates a RelevanceScorer. Non-positive batchSize and
// concurrency take the defaults.
func NewRelevanceScorer(client llm.Client, batchSize, concurrency int, domain string) *RelevanceScorer {
	if batchSize <= 0 {
		batchSize = DefaultScoreBatchSize
	}
	if concurrency <= 0 {
		concurrency = DefaultScoreConcurrency
	}
	return &RelevanceScorer{
		client:      client,
		batchSize:   batchSize,
		concurrency: concurrency,
		domain:      domain,
	}
}

var scoreSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"results": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"paper_id":         map[string]any{"type": "string"},
					"relevance_score":  map[string]any{"type": "number"},
					"relevance_reason": map[string]any{"type": "string"},
					"tags": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "string",
							"enum": []any{"method", "review", "empirical", "theoretical", "dataset"},
						},
					},
				},
				"required": []any{"paper_id", "relevance_score", "relevance_reason"},
			},
		},
	},
	"required": []any{"results"},
}

// Score evaluates every paper against intent. Output order matches input
// order. A failed batch degrades its papers to score zero with an
// "unavailable" reason instead of failing the stage; only context
// cancellation surfaces as an error.
func (s *RelevanceScorer) Score(ctx context.Context, intent paper.ParsedIntent, papers []paper.RawPaper) ([]paper.ScoredPaper, error) {
	if len(papers) == 0 {
		return nil, nil
	}

	var batches [][]paper.RawPaper
	for start := 0; start < len(papers); start += s.batchSize {
		end := start + s.batchSize
		if end > len(papers) {
			end = len(papers)
		}
		batches = append(batches, papers[start:end])
	}

	system := prompt.Compose(prompt.RelevanceScoring, s.domain)

	batchResults := make([][]paper.ScoredPaper, len(batches))
	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []paper.RawPaper) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			batchResults[i] = s.scoreBatch(ctx, system, intent, batch)
		}(i, batch)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	scored := make([]paper.ScoredPaper, 0, len(papers))
	for _, br := range batchResults {
		scored = append(scored, br...)
	}
	return scored, nil
}

// scoreBatch scores one batch, filling unscored or failed papers with the
// zero-score default.
func (s *RelevanceScorer) scoreBatch(ctx context.Context, system string, intent paper.ParsedIntent, batch []paper.RawPaper) []paper.ScoredPaper {
	byID := make(map[string]paper.ScoredPaper, len(batch))

	data, err := s.client.CompleteJSON(ctx, system, batchMessage(intent, batch), scoreSchema)
	if err == nil {
		if results, ok := data["results"].([]any); ok {
			for _, raw := range results {
				item, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				id, _ := item["paper_id"].(string)
				if id == "" {
					continue
				}
				score, _ := item["relevance_score"].(float64)
				reason, _ := item["relevance_reason"].(string)
				var tagStrings []string
				if rawTags, ok := item["tags"].([]any); ok {
					for _, rt := range rawTags {
						if t, ok := rt.(string); ok {
							tagStrings = append(tagStrings, t)
						}
					}
				}
				byID[id] = paper.ScoredPaper{
					RelevanceScore:  paper.ClampScore(score),
					RelevanceReason: reason,
					Tags:            paper.FilterTags(tagStrings),
				}
			}
		}
	}

	out := make([]paper.ScoredPaper, len(batch))
	for i, p := range batch {
		sp, ok := byID[p.ID]
		if !ok {
			sp = paper.ScoredPaper{
				RelevanceScore:  0,
				RelevanceReason: "Scoring unavailable",
			}
		}
		sp.Paper = p
		out[i] = sp
	}
	return out
}

// batchMessage formats the topic, concepts, and paper summaries for one
// scoring request. Titles and snippets are truncated to keep requests small.
func batchMessage(intent paper.ParsedIntent, batch []paper.RawPaper) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research topic: %s\n", intent.Topic)
	fmt.Fprintf(&sb, "Key concepts: %s\n\n", strings.Join(intent.Concepts, ", "))
	sb.WriteString("Papers to score:\n")
	for _, p := range batch {
		fmt.Fprintf(&sb, "- ID: %s\n", p.ID)
		fmt.Fprintf(&sb, "  Title: %s\n", truncate(p.Title, scoreTitleLimit))
		fmt.Fprintf(&sb, "  Snippet: %s\n", truncate(p.Snippet, scoreSnippetLimit))
		if p.Year > 0 {
			fmt.Fprintf(&sb, "  Year: %d\n", p.Year)
		}
		if p.Venue != "" {
			fmt.Fprintf(&sb, "  Venue: %s\n", p.Venue)
		}
	}
	return sb.String()
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
