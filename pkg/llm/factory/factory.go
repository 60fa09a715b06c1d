package factory

import (
	"errors"
	"fmt"

	"ai-secretary-funnel-be/pkg/llm"
	"ai-secretary-funnel-be/pkg/llm/ollama"
	"ai-secretary-funnel-be/pkg/llm/openai"
)

// ErrMissingCredentials is a configuration error: the provider needs an API key.
var ErrMissingCredentials = errors.New("llm provider credentials are not configured")

type ProviderConfig struct {
	Provider string // "openai" or "ollama"
	Model    string
	BaseURL  string
	APIKey   string
}

func NewLLMProvider(cfg ProviderConfig) (llm.LLMProvider, error) {
	switch cfg.Provider {
	case "openai", "":
		if cfg.APIKey == "" {
			return nil, ErrMissingCredentials
		}
		return openai.NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model), nil
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
