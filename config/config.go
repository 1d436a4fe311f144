// Package config centralizes environment-driven tunables. Values come
// from the process environment, optionally seeded from a .env file via
// godotenv; every knob has a usable default so a bare environment still
// yields a working configuration (minus provider credentials).
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvOpenAIAPIKey     = "OPENAI_API_KEY"
	EnvOpenAIBaseURL    = "OPENAI_API_BASE_URL"
	EnvOpenAIModel      = "OPENAI_MODEL"
	EnvAnthropicAPIKey  = "ANTHROPIC_API_KEY"
	EnvAnthropicBaseURL = "ANTHROPIC_API_BASE_URL"
	EnvAnthropicModel   = "ANTHROPIC_MODEL"
	EnvCacheSize        = "CACHE_SIZE"
	EnvCacheTTL         = "CACHE_TTL"
	EnvMonthlyAllowance = "MONTHLY_TOKEN_ALLOWANCE"
	EnvProbeInterval    = "SESSION_PROBE_INTERVAL"
	EnvCallTimeout      = "PROVIDER_CALL_TIMEOUT"
	EnvHistoryDBPath    = "HISTORY_DB_PATH"
)

// Defaults applied when a variable is unset or unparsable.
const (
	DefaultOpenAIModel      = "gpt-4o-mini"
	DefaultAnthropicModel   = "claude-3-5-haiku-latest"
	DefaultCacheSize        = 256
	DefaultCacheTTL         = 5 * time.Minute
	DefaultMonthlyAllowance = int64(1_000_000)
	DefaultProbeInterval    = 30 * time.Second
	DefaultCallTimeout      = 30 * time.Second
	DefaultHistoryDBPath    = "duet.db"
)

// Config is the resolved runtime configuration.
type Config struct {
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIModel      string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicModel   string

	CacheSize        int
	CacheTTL         time.Duration
	MonthlyAllowance int64
	ProbeInterval    time.Duration
	CallTimeout      time.Duration
	HistoryDBPath    string
}

// Load reads a .env file when present, then resolves the configuration
// from the environment. A missing .env is not an error.
func Load() Config {
	_ = godotenv.Load()

	return FromEnv()
}

// FromEnv resolves the configuration from the current environment only.
func FromEnv() Config {
	return Config{
		OpenAIAPIKey:     os.Getenv(EnvOpenAIAPIKey),
		OpenAIBaseURL:    os.Getenv(EnvOpenAIBaseURL),
		OpenAIModel:      stringOr(EnvOpenAIModel, DefaultOpenAIModel),
		AnthropicAPIKey:  os.Getenv(EnvAnthropicAPIKey),
		AnthropicBaseURL: os.Getenv(EnvAnthropicBaseURL),
		AnthropicModel:   stringOr(EnvAnthropicModel, DefaultAnthropicModel),
		CacheSize:        intOr(EnvCacheSize, DefaultCacheSize),
		CacheTTL:         durationOr(EnvCacheTTL, DefaultCacheTTL),
		MonthlyAllowance: int64Or(EnvMonthlyAllowance, DefaultMonthlyAllowance),
		ProbeInterval:    durationOr(EnvProbeInterval, DefaultProbeInterval),
		CallTimeout:      durationOr(EnvCallTimeout, DefaultCallTimeout),
		HistoryDBPath:    stringOr(EnvHistoryDBPath, DefaultHistoryDBPath),
	}
}

func stringOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func intOr(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}

func int64Or(key string, fallback int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}

// durationOr accepts Go duration syntax ("90s", "5m").
func durationOr(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}

	return parsed
}
