package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BaSui01/mcpflow/types"
)

// ErrorCode aligns provider failures with HTTP status and retryability.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "LLM_INVALID_REQUEST"
	ErrUnauthorized        ErrorCode = "LLM_UNAUTHORIZED"
	ErrForbidden           ErrorCode = "LLM_FORBIDDEN"
	ErrRateLimited         ErrorCode = "LLM_RATE_LIMITED"
	ErrUpstreamTimeout     ErrorCode = "LLM_UPSTREAM_TIMEOUT"
	ErrUpstreamError       ErrorCode = "LLM_UPSTREAM_ERROR"
	ErrProviderUnavailable ErrorCode = "LLM_PROVIDER_UNAVAILABLE"
)

// Error is the typed failure surfaced by providers.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// ToolCall represents a tool invocation request returned by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ChatRequest is the canonical request handed to a Provider.
type ChatRequest struct {
	Model        string             `json:"model"`
	Messages     []types.Message    `json:"messages"`
	SystemPrompt string             `json:"system_prompt,omitempty"`
	MaxTokens    int                `json:"max_tokens,omitempty"`
	Temperature  float32            `json:"temperature,omitempty"`
	TopP         float32            `json:"top_p,omitempty"`
	TopK         int                `json:"top_k,omitempty"`
	Stop         []string           `json:"stop,omitempty"`
	Tools        []types.ToolSchema `json:"tools,omitempty"`
	Stream       bool               `json:"stream,omitempty"`
	Metadata     map[string]string  `json:"metadata,omitempty"`
}

// ChatUsage reports token accounting from the provider.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatResponse is the normalized provider output: generated text and/or
// structured tool-call requests plus metadata. When a call fails at the
// gateway boundary, Metadata carries an "error" entry and Content holds a
// human-readable fallback instead of the failure being raised.
type ChatResponse struct {
	ID        string            `json:"id,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	Model     string            `json:"model,omitempty"`
	Content   string            `json:"content,omitempty"`
	ToolCalls []ToolCall        `json:"tool_calls,omitempty"`
	Usage     ChatUsage         `json:"usage,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
}

// Failed reports whether the response carries a gateway error marker.
func (r *ChatResponse) Failed() bool {
	if r == nil {
		return true
	}
	_, ok := r.Metadata["error"]
	return ok
}

// Provider is the unified LLM adapter interface. Tool schemas travel in
// ChatRequest.Tools; the model answers with ToolCalls and the actual
// execution belongs to the tools package.
type Provider interface {
	// Completion performs a synchronous chat request.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name returns the provider's unique identifier.
	Name() string

	// SupportsNativeFunctionCalling reports whether the provider accepts
	// tool schemas natively.
	SupportsNativeFunctionCalling() bool
}
