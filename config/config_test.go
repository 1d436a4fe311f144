package config

import (
	"testing"
	"time"
)

// ========== Defaults ==========

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.OpenAIModel != DefaultOpenAIModel {
		t.Errorf("expected default openai model, got %q", cfg.OpenAIModel)
	}

	if cfg.CacheSize != DefaultCacheSize {
		t.Errorf("expected default cache size, got %d", cfg.CacheSize)
	}

	if cfg.CacheTTL != DefaultCacheTTL {
		t.Errorf("expected default cache ttl, got %v", cfg.CacheTTL)
	}

	if cfg.MonthlyAllowance != DefaultMonthlyAllowance {
		t.Errorf("expected default allowance, got %d", cfg.MonthlyAllowance)
	}

	if cfg.ProbeInterval != DefaultProbeInterval {
		t.Errorf("expected default probe interval, got %v", cfg.ProbeInterval)
	}

	if cfg.CallTimeout != 30*time.Second {
		t.Errorf("expected 30s call timeout, got %v", cfg.CallTimeout)
	}

	if cfg.HistoryDBPath != DefaultHistoryDBPath {
		t.Errorf("expected default db path, got %q", cfg.HistoryDBPath)
	}
}

// ========== Overrides ==========

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv(EnvOpenAIAPIKey, "sk-test")
	t.Setenv(EnvOpenAIModel, "gpt-custom")
	t.Setenv(EnvCacheSize, "42")
	t.Setenv(EnvCacheTTL, "90s")
	t.Setenv(EnvMonthlyAllowance, "5000")
	t.Setenv(EnvProbeInterval, "10s")
	t.Setenv(EnvCallTimeout, "2m")
	t.Setenv(EnvHistoryDBPath, "/tmp/turns.db")

	cfg := FromEnv()

	if cfg.OpenAIAPIKey != "sk-test" || cfg.OpenAIModel != "gpt-custom" {
		t.Errorf("unexpected openai settings: %+v", cfg)
	}

	if cfg.CacheSize != 42 {
		t.Errorf("expected cache size 42, got %d", cfg.CacheSize)
	}

	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("expected ttl 90s, got %v", cfg.CacheTTL)
	}

	if cfg.MonthlyAllowance != 5000 {
		t.Errorf("expected allowance 5000, got %d", cfg.MonthlyAllowance)
	}

	if cfg.ProbeInterval != 10*time.Second {
		t.Errorf("expected probe interval 10s, got %v", cfg.ProbeInterval)
	}

	if cfg.CallTimeout != 2*time.Minute {
		t.Errorf("expected call timeout 2m, got %v", cfg.CallTimeout)
	}

	if cfg.HistoryDBPath != "/tmp/turns.db" {
		t.Errorf("expected overridden db path, got %q", cfg.HistoryDBPath)
	}
}

// ========== Invalid values ==========

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv(EnvCacheSize, "not-a-number")
	t.Setenv(EnvCacheTTL, "-5s")
	t.Setenv(EnvMonthlyAllowance, "0")
	t.Setenv(EnvProbeInterval, "soon")

	cfg := FromEnv()

	if cfg.CacheSize != DefaultCacheSize {
		t.Errorf("expected fallback cache size, got %d", cfg.CacheSize)
	}

	if cfg.CacheTTL != DefaultCacheTTL {
		t.Errorf("expected fallback ttl, got %v", cfg.CacheTTL)
	}

	if cfg.MonthlyAllowance != DefaultMonthlyAllowance {
		t.Errorf("expected fallback allowance, got %d", cfg.MonthlyAllowance)
	}

	if cfg.ProbeInterval != DefaultProbeInterval {
		t.Errorf("expected fallback probe interval, got %v", cfg.ProbeInterval)
	}
}
