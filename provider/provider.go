package provider

import (
	"context"
	"errors"

	"github.com/voiceshop/assistant/config"
	openai_provider "github.com/voiceshop/assistant/provider/openai"
)

// Provider is the single capability the model-backed pipeline stages need:
// a chat completion constrained to a JSON object response.
type Provider interface {
	CompleteJSON(ctx context.Context, system, user string) (string, error)
}

// NewProvider builds an LLM client from config. An empty provider name means
// the deployment runs rule-based stages only.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			return nil, errors.New("llm.api_key not set")
		}
		return openai_provider.NewClient(cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	case "":
		return nil, errors.New("llm.provider not configured")
	default:
		return nil, errors.New("unsupported LLM provider: " + cfg.Provider)
	}
}
