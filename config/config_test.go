package config

import (
	"testing"
	"time"
)

// clearLLMEnv blanks every variable Load reads so the host environment
// cannot leak into assertions.
func clearLLMEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LLM_PROVIDER", "LLM_MODEL", "LLM_API_KEY", "LLM_BASE_URL",
		"LLM_TEMPERATURE", "LLM_MAX_TOKENS",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
		"SERPAPI_API_KEY", "SERPAPI_RPS", "SERPAPI_MAX_RETRIES", "SERPAPI_MAX_CALLS",
		"SESSION_DECIDE_TIMEOUT_S", "SESSION_POLL_INTERVAL_S", "REQUIRE_USER_RESPONSE",
		"DOMAIN", "DEFAULT_MAX_RESULTS", "MAX_ITERATIONS", "ENABLE_STRATEGY_CHECKPOINT",
		"RELEVANCE_BATCH_SIZE", "RELEVANCE_MAX_CONCURRENCY",
		"DEDUP_ENABLE_LLM_PASS", "DEDUP_LLM_MAX_CANDIDATES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearLLMEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Provider != ProviderOpenAI || cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.LLM.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d", cfg.LLM.MaxTokens)
	}
	if cfg.Source.RequestsPerSecond != 1.0 || cfg.Source.MaxRetries != 3 {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if cfg.Session.DecideTimeout != 15*time.Second || cfg.Session.PollInterval != 50*time.Millisecond {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.DefaultMaxResults != 100 || cfg.MaxIterations != 5 {
		t.Errorf("pipeline defaults = %+v", cfg)
	}
	if !cfg.DedupEnableLLMPass || cfg.DedupLLMMaxCandidates != 50 {
		t.Errorf("dedup defaults = %+v", cfg)
	}
	if cfg.ScoreBatchSize != 10 || cfg.ScoreMaxConcurrency != 3 {
		t.Errorf("scoring defaults = %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("ANTHROPIC_API_KEY", "ak-test")
	t.Setenv("LLM_MODEL", "claude-3-opus")
	t.Setenv("SERPAPI_API_KEY", "sk-test")
	t.Setenv("SERPAPI_RPS", "2.5")
	t.Setenv("SESSION_DECIDE_TIMEOUT_S", "0.5")
	t.Setenv("MAX_ITERATIONS", "3")
	t.Setenv("ENABLE_STRATEGY_CHECKPOINT", "true")
	t.Setenv("DEDUP_ENABLE_LLM_PASS", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.Provider != ProviderClaude || cfg.LLM.Model != "claude-3-opus" || cfg.LLM.APIKey != "ak-test" {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.Source.SerpAPIKey != "sk-test" || cfg.Source.RequestsPerSecond != 2.5 {
		t.Errorf("Source = %+v", cfg.Source)
	}
	if cfg.Session.DecideTimeout != 500*time.Millisecond {
		t.Errorf("DecideTimeout = %v", cfg.Session.DecideTimeout)
	}
	if cfg.MaxIterations != 3 || !cfg.StrategyCheckpoint || cfg.DedupEnableLLMPass {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadUnknownProvider(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("LLM_PROVIDER", "watson")

	if _, err := Load(); err == nil {
		t.Error("Load() with unknown provider should fail")
	}
}

func TestAPIKeyResolution(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("OPENAI_API_KEY", "openai-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	if got := apiKeyFor(ProviderOpenAI); got != "openai-key" {
		t.Errorf("apiKeyFor(openai) = %q", got)
	}
	if got := apiKeyFor(ProviderGemini); got != "gemini-key" {
		t.Errorf("apiKeyFor(gemini) = %q", got)
	}

	// LLM_API_KEY wins over provider-specific variables.
	t.Setenv("LLM_API_KEY", "override")
	if got := apiKeyFor(ProviderOpenAI); got != "override" {
		t.Errorf("apiKeyFor with LLM_API_KEY = %q", got)
	}
}

func TestMalformedValuesFallBack(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("LLM_MAX_TOKENS", "lots")
	t.Setenv("SERPAPI_RPS", "fast")
	t.Setenv("SESSION_DECIDE_TIMEOUT_S", "-3")
	t.Setenv("DEDUP_ENABLE_LLM_PASS", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d", cfg.LLM.MaxTokens)
	}
	if cfg.Source.RequestsPerSecond != 1.0 {
		t.Errorf("RequestsPerSecond = %v", cfg.Source.RequestsPerSecond)
	}
	if cfg.Session.DecideTimeout != 15*time.Second {
		t.Errorf("DecideTimeout = %v", cfg.Session.DecideTimeout)
	}
	if !cfg.DedupEnableLLMPass {
		t.Error("malformed bool should keep the default")
	}
}
