// Package providers selects concrete LLM providers by tag. The switch is
// deliberately closed: adding a provider means adding a case here, not
// probing capabilities at runtime.
package providers

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/mcpflow/llm"
	"github.com/BaSui01/mcpflow/llm/providers/deepseek"
	"github.com/BaSui01/mcpflow/llm/providers/openai"
	"github.com/BaSui01/mcpflow/llm/providers/qwen"
)

// New builds a provider for the given tag and typed configuration.
func New(tag llm.ProviderTag, cfg llm.ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	switch tag {
	case llm.ProviderOpenAI:
		return openai.New(cfg, logger), nil
	case llm.ProviderDeepSeek:
		return deepseek.New(cfg, logger), nil
	case llm.ProviderQwen:
		return qwen.New(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider tag %q", tag)
	}
}
