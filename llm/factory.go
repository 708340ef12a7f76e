package llm

import "time"

// ProviderTag identifies a supported provider family. The set is closed:
// selection happens through the explicit factory in llm/providers, never by
// runtime capability probing.
type ProviderTag string

const (
	ProviderOpenAI   ProviderTag = "openai"
	ProviderDeepSeek ProviderTag = "deepseek"
	ProviderQwen     ProviderTag = "qwen"
)

// ProviderConfig is the typed configuration accepted by the provider
// factory.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}
