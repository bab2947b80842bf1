package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GENERATION_API_KEY", "env-key")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "120")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: "8090"
logLevel: "info"
generationProvider: "ollama"
generationBaseURL: "http://localhost:11434"
generationModel: "llama3"
redisAddr: "localhost:6379"
rateLimitPerMinute: 60
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.GenerationAPIKey != "env-key" {
		t.Fatalf("generationAPIKey = %q, want env override", cfg.GenerationAPIKey)
	}
	if cfg.RedisAddr != "redis:6380" {
		t.Fatalf("redisAddr = %q, want env override", cfg.RedisAddr)
	}
	if cfg.RateLimitPerMinute != 120 {
		t.Fatalf("rateLimitPerMinute = %d, want 120", cfg.RateLimitPerMinute)
	}
	if cfg.GenerationModel != "llama3" {
		t.Fatalf("generationModel = %q, want llama3", cfg.GenerationModel)
	}
}

func TestLoadRequiresPort(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(`logLevel: "info"`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(cfgPath); err == nil {
		t.Fatalf("expected missing port to fail")
	}
}

func TestValidateConfigRejectsProviderWithoutModel(t *testing.T) {
	cfg := FileConfig{
		Port:               "8090",
		GenerationProvider: "gemini",
	}
	if err := validateConfig(cfg); err == nil {
		t.Fatalf("validateConfig() expected error for missing generation model")
	}
}

func TestValidateConfigRejectsLowAboveTarget(t *testing.T) {
	cfg := FileConfig{
		Port:           "8090",
		BarkPoolTarget: 10,
		BarkPoolLow:    15,
	}
	if err := validateConfig(cfg); err == nil {
		t.Fatalf("validateConfig() expected error for barkPoolLow above target")
	}
}

func TestValidateConfigRejectsSecretWithoutIssuers(t *testing.T) {
	cfg := FileConfig{
		Port:               "8090",
		ServiceTokenSecret: "0123456789abcdef0123456789abcdef",
	}
	if err := validateConfig(cfg); err == nil {
		t.Fatalf("validateConfig() expected error for missing issuers")
	}
}
