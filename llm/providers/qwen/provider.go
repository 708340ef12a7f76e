// Package qwen provides the Qwen (DashScope) provider adapter via the
// OpenAI-compatible endpoint.
package qwen

import (
	"go.uber.org/zap"

	"github.com/BaSui01/mcpflow/llm"
	"github.com/BaSui01/mcpflow/llm/providers/openaicompat"
)

// Provider implements the Qwen LLM provider.
type Provider struct {
	*openaicompat.Provider
}

// New creates a Qwen provider instance.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://dashscope.aliyuncs.com/compatible-mode"
	}
	if cfg.Model == "" {
		cfg.Model = "qwen-plus"
	}

	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName: "qwen",
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}, logger),
	}
}
