// Package deepseek provides the DeepSeek provider adapter. DeepSeek speaks
// the OpenAI-compatible API format, so this package embeds
// openaicompat.Provider and only customizes the differences.
package deepseek

import (
	"go.uber.org/zap"

	"github.com/BaSui01/mcpflow/llm"
	"github.com/BaSui01/mcpflow/llm/providers/openaicompat"
)

// Provider implements the DeepSeek LLM provider.
type Provider struct {
	*openaicompat.Provider
}

// New creates a DeepSeek provider instance.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com"
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}

	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName: "deepseek",
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
			EndpointPath: "/chat/completions",
		}, logger),
	}
}
