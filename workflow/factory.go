package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/paperflow/config"
	"github.com/dshills/paperflow/llm"
	"github.com/dshills/paperflow/llm/anthropic"
	"github.com/dshills/paperflow/llm/google"
	"github.com/dshills/paperflow/llm/openai"
	"github.com/dshills/paperflow/skill"
	"github.com/dshills/paperflow/source"
	"github.com/dshills/paperflow/source/scholar"
)

// FromConfig assembles a complete engine from runtime configuration: model
// client, search sources, the six stages, and the checkpoint settings.
// Options are applied after the config-derived defaults, so they win.
//
// ctx covers client construction only (the Gemini SDK dials during setup).
func FromConfig(ctx context.Context, cfg config.Config, opts ...Option) (*Engine, error) {
	client, err := NewClient(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}

	if cfg.Source.SerpAPIKey == "" {
		return nil, errors.New("workflow: SERPAPI_API_KEY is required")
	}
	scholarClient, err := scholar.New(scholar.Config{
		APIKey:            cfg.Source.SerpAPIKey,
		RequestsPerSecond: cfg.Source.RequestsPerSecond,
		MaxRetries:        cfg.Source.MaxRetries,
		MaxCalls:          cfg.Source.MaxCalls,
	})
	if err != nil {
		return nil, err
	}
	sources := []source.Source{scholarClient}
	names := []string{scholarClient.Name()}

	parser := skill.NewIntentParser(client, cfg.Domain)
	builder := skill.NewQueryBuilder(client, names, cfg.Domain)
	builder.DefaultMaxResults = cfg.DefaultMaxResults
	dedup := skill.NewDeduplicator(client, cfg.DedupEnableLLMPass, cfg.DedupLLMMaxCandidates)
	scorer := skill.NewRelevanceScorer(client, cfg.ScoreBatchSize, cfg.ScoreMaxConcurrency, cfg.Domain)
	organizer := skill.NewOrganizer()

	baseOpts := []Option{
		WithMaxIterations(cfg.MaxIterations),
		WithStrategyCheckpoint(cfg.StrategyCheckpoint),
	}
	baseOpts = append(baseOpts, opts...)

	eng, err := New(parser, builder, skill.NewSearcher(sources, nil), dedup, scorer, organizer, baseOpts...)
	if err != nil {
		return nil, err
	}
	// Rebuild the searcher now that options have settled the emitter, so
	// per-source failures reach the same backend as engine events.
	eng.searcher = skill.NewSearcher(sources, eng.emitter)
	return eng, nil
}

// NewClient builds the configured model backend.
func NewClient(ctx context.Context, cfg config.LLMConfig) (llm.Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("workflow: no API key configured for provider %q", cfg.Provider)
	}
	llmCfg := llm.Config{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.New(llmCfg), nil
	case config.ProviderClaude:
		return anthropic.New(llmCfg), nil
	case config.ProviderGemini:
		return google.New(ctx, llmCfg)
	default:
		return nil, fmt.Errorf("workflow: unknown provider %q", cfg.Provider)
	}
}
