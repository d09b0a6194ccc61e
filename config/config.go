// Package config loads runtime configuration from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Supported model providers.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

var defaultModels = map[string]string{
	ProviderOpenAI: "gpt-4o-mini",
	ProviderClaude: "claude-3-5-sonnet-20241022",
	ProviderGemini: "gemini-1.5-flash",
}

// LLMConfig selects and parameterizes the model backend.
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// SourceConfig parameterizes the external search client.
type SourceConfig struct {
	SerpAPIKey        string
	RequestsPerSecond float64
	MaxRetries        int
	MaxCalls          int
}

// SessionConfig parameterizes the session layer's wait loops.
type SessionConfig struct {
	DecideTimeout       time.Duration
	PollInterval        time.Duration
	RequireUserResponse bool
}

// Config is the full runtime configuration.
type Config struct {
	LLM     LLMConfig
	Source  SourceConfig
	Session SessionConfig

	Domain             string
	DefaultMaxResults  int
	MaxIterations      int
	StrategyCheckpoint bool

	ScoreBatchSize        int
	ScoreMaxConcurrency   int
	DedupEnableLLMPass    bool
	DedupLLMMaxCandidates int
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	provider := getString("LLM_PROVIDER", ProviderOpenAI)
	if _, ok := defaultModels[provider]; !ok {
		return Config{}, fmt.Errorf("config: unknown LLM_PROVIDER %q", provider)
	}

	cfg := Config{
		LLM: LLMConfig{
			Provider:    provider,
			Model:       getString("LLM_MODEL", defaultModels[provider]),
			APIKey:      apiKeyFor(provider),
			BaseURL:     getString("LLM_BASE_URL", ""),
			Temperature: getFloat("LLM_TEMPERATURE", 0),
			MaxTokens:   getInt("LLM_MAX_TOKENS", 4096),
		},
		Source: SourceConfig{
			SerpAPIKey:        getString("SERPAPI_API_KEY", ""),
			RequestsPerSecond: getFloat("SERPAPI_RPS", 1.0),
			MaxRetries:        getInt("SERPAPI_MAX_RETRIES", 3),
			MaxCalls:          getInt("SERPAPI_MAX_CALLS", 0),
		},
		Session: SessionConfig{
			DecideTimeout:       getSeconds("SESSION_DECIDE_TIMEOUT_S", 15*time.Second),
			PollInterval:        getSeconds("SESSION_POLL_INTERVAL_S", 50*time.Millisecond),
			RequireUserResponse: getBool("REQUIRE_USER_RESPONSE", false),
		},
		Domain:             getString("DOMAIN", ""),
		DefaultMaxResults:  getInt("DEFAULT_MAX_RESULTS", 100),
		MaxIterations:      getInt("MAX_ITERATIONS", 5),
		StrategyCheckpoint: getBool("ENABLE_STRATEGY_CHECKPOINT", false),

		ScoreBatchSize:        getInt("RELEVANCE_BATCH_SIZE", 10),
		ScoreMaxConcurrency:   getInt("RELEVANCE_MAX_CONCURRENCY", 3),
		DedupEnableLLMPass:    getBool("DEDUP_ENABLE_LLM_PASS", true),
		DedupLLMMaxCandidates: getInt("DEDUP_LLM_MAX_CANDIDATES", 50),
	}
	return cfg, nil
}

// apiKeyFor resolves the model API key: LLM_API_KEY overrides everything,
// otherwise the provider's conventional variable.
func apiKeyFor(provider string) string {
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		return key
	}
	switch provider {
	case ProviderClaude:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderGemini:
		return os.Getenv("GEMINI_API_KEY")
	default:
		return os.Getenv("OPENAI_API_KEY")
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// getSeconds reads a float number of seconds.
func getSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return fallback
	}
	return time.Duration(f * float64(time.Second))
}
