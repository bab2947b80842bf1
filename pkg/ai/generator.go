package ai

import (
	"context"
	"fmt"
	"strings"
)

// TextGenerator generates text from a system prompt and user prompt.
// All providers (Ollama, Gemini, OpenAI-compatible) implement this interface.
// Callers must treat every implementation as slow and unreliable.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config selects and configures a generation provider.
type Config struct {
	// Provider is one of "ollama", "gemini", "openai" or "" (disabled).
	Provider string
	// BaseURL applies to ollama and openai providers.
	BaseURL string
	// APIKey applies to gemini and openai providers.
	APIKey string
	// Model is the provider-specific model name.
	Model string
	// Temperature is passed through when the provider supports it.
	// Zero means provider default.
	Temperature float64
}

// New builds a TextGenerator for the configured provider. It returns
// (nil, nil) when no provider is configured, which callers treat as
// "generator permanently unavailable".
func New(cfg Config) (TextGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, nil
	case "ollama":
		return NewOllamaGenerator(NewOllamaClient(cfg.BaseURL), cfg.Model, cfg.Temperature), nil
	case "gemini":
		client, err := NewGeminiClient(cfg.APIKey)
		if err != nil {
			return nil, err
		}
		return NewGeminiGenerator(client, cfg.Model), nil
	case "openai":
		return NewOpenAICompatGenerator(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
