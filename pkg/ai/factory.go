package ai

import (
	"context"
	"fmt"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType
	APIKey   string
	BaseURL  string
}

// NewTransport builds the Transport for cfg.Provider.
func NewTransport(ctx context.Context, cfg Config) (Transport, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, fmt.Errorf("classifier.api_key is required for the %s provider", ProviderOpenAI)
		}
		return NewOpenAITransport(cfg.APIKey, cfg.BaseURL, nil), nil
	case ProviderOllama:
		return NewOllamaTransport(cfg.BaseURL), nil
	case ProviderGemini:
		return NewGeminiTransport(ctx, cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}
