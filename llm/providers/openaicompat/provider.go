// Package openaicompat is the shared implementation for all
// OpenAI-compatible chat providers. DeepSeek, Qwen and OpenAI itself embed
// this and only override what differs (name, base URL, default model).
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mcpflow/llm"
	"github.com/BaSui01/mcpflow/types"
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName is the unique identifier (e.g. "deepseek", "qwen").
	ProviderName string

	// APIKey authenticates against the provider's API.
	APIKey string

	// BaseURL is the API root (e.g. "https://api.deepseek.com").
	BaseURL string

	// DefaultModel is used when the request does not name a model.
	DefaultModel string

	// Timeout is the HTTP client timeout. Defaults to 30s if zero.
	Timeout time.Duration

	// EndpointPath is the chat completions path. Defaults to
	// "/v1/chat/completions".
	EndpointPath string

	// SupportsTools reports native function-calling support. Defaults to
	// true when nil.
	SupportsTools *bool
}

// Provider is the base implementation for OpenAI-compatible providers.
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New creates an OpenAI-compatible provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("component", "provider"), zap.String("provider", cfg.ProviderName)),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.cfg.ProviderName }

// SupportsNativeFunctionCalling reports tool-calling support.
func (p *Provider) SupportsNativeFunctionCalling() bool {
	if p.cfg.SupportsTools != nil {
		return *p.cfg.SupportsTools
	}
	return true
}

func (p *Provider) endpoint() string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + p.cfg.EndpointPath
}

// wireMessage is the OpenAI chat message wire format.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// wireTool is the OpenAI tool schema wire format.
type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type wireResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Index        int    `json:"index"`
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string          `json:"name"`
					Arguments json.RawMessage `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Completion performs a non-streaming chat completion.
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}

	body := wireRequest{
		Model:       model,
		Messages:    convertMessages(req),
		Tools:       convertTools(req.Tools),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &llm.Error{
				Code: llm.ErrUpstreamTimeout, Message: err.Error(),
				HTTPStatus: http.StatusGatewayTimeout, Retryable: true, Provider: p.Name(),
			}
		}
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, readErrorMessage(resp.Body), p.Name())
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, &llm.Error{
			Code: llm.ErrUpstreamError, Message: fmt.Sprintf("malformed response: %v", err),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}

	out := &llm.ChatResponse{
		ID:       wire.ID,
		Provider: p.Name(),
		Model:    wire.Model,
		Usage: llm.ChatUsage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		},
	}
	if wire.Created != 0 {
		out.CreatedAt = time.Unix(wire.Created, 0)
	}
	if len(wire.Choices) > 0 {
		choice := wire.Choices[0]
		out.Content = choice.Message.Content
		for _, tc := range choice.Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
	}
	return out, nil
}

// convertMessages prepends the system prompt, if any, and flattens to the
// wire format.
func convertMessages(req *llm.ChatRequest) []wireMessage {
	out := make([]wireMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		out = append(out, wireMessage{Role: string(types.RoleSystem), Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		out = append(out, wireMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

func convertTools(tools []types.ToolSchema) []wireTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		var wt wireTool
		wt.Type = "function"
		wt.Function.Name = t.Name
		wt.Function.Description = t.Description
		wt.Function.Parameters = t.Parameters
		out = append(out, wt)
	}
	return out
}

// readErrorMessage extracts a short error message from an error body.
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(data))
}

// mapHTTPError converts an upstream status code into a typed error.
func mapHTTPError(status int, msg, provider string) *llm.Error {
	code := llm.ErrUpstreamError
	retryable := status >= 500
	switch status {
	case http.StatusBadRequest:
		code = llm.ErrInvalidRequest
	case http.StatusUnauthorized:
		code = llm.ErrUnauthorized
	case http.StatusForbidden:
		code = llm.ErrForbidden
	case http.StatusTooManyRequests:
		code = llm.ErrRateLimited
		retryable = true
	case http.StatusGatewayTimeout:
		code = llm.ErrUpstreamTimeout
		retryable = true
	case http.StatusServiceUnavailable:
		code = llm.ErrProviderUnavailable
		retryable = true
	}
	if msg == "" {
		msg = fmt.Sprintf("upstream returned status %d", status)
	}
	return &llm.Error{
		Code:       code,
		Message:    msg,
		HTTPStatus: status,
		Retryable:  retryable,
		Provider:   provider,
	}
}
