// Package openai provides the OpenAI provider adapter.
package openai

import (
	"go.uber.org/zap"

	"github.com/BaSui01/mcpflow/llm"
	"github.com/BaSui01/mcpflow/llm/providers/openaicompat"
)

// Provider implements the OpenAI LLM provider.
type Provider struct {
	*openaicompat.Provider
}

// New creates an OpenAI provider instance.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}

	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName: "openai",
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}, logger),
	}
}
