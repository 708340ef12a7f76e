package llm

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mcpflow/metrics"
)

// Gateway fronts a Provider for the agent pipeline. It applies the per-call
// timeout, consults the response cache for deterministic requests, and
// normalizes every failure (timeout, transport error, bad status, malformed
// payload) into a degraded ChatResponse whose Metadata carries the error.
// Pipeline nodes therefore always receive a well-formed response and treat
// Metadata["error"] as signal, not exception.
type Gateway struct {
	provider Provider
	cache    *ResponseCache
	timeout  time.Duration
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithCache attaches a response cache.
func WithCache(c *ResponseCache) GatewayOption {
	return func(g *Gateway) { g.cache = c }
}

// WithTimeout sets the per-call timeout. Zero disables the deadline.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) { g.timeout = d }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// WithLogger sets the gateway logger.
func WithLogger(l *zap.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = l }
}

// NewGateway wraps a provider.
func NewGateway(provider Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		provider: provider,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(zap.String("component", "model_gateway"))
	return g
}

// Provider returns the wrapped provider.
func (g *Gateway) Provider() Provider { return g.provider }

// Name returns the wrapped provider's name.
func (g *Gateway) Name() string { return g.provider.Name() }

// Generate performs one model call and never returns an error: failures are
// folded into the response (see Gateway doc).
func (g *Gateway) Generate(ctx context.Context, req *ChatRequest) *ChatResponse {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.cache.Do(ctx, g.provider.Name(), req, func(ctx context.Context) (*ChatResponse, error) {
		return g.provider.Completion(ctx, req)
	})
	duration := time.Since(start)

	if err != nil {
		g.metrics.RecordLLMRequest(g.provider.Name(), req.Model, "error", duration)
		return g.degraded(req, err)
	}

	g.metrics.RecordLLMRequest(g.provider.Name(), req.Model, "ok", duration)
	return resp
}

// degraded builds the error-carrying response for a failed call.
func (g *Gateway) degraded(req *ChatRequest, err error) *ChatResponse {
	code := ErrUpstreamError
	var typed *Error
	switch {
	case errors.As(err, &typed):
		code = typed.Code
	case errors.Is(err, context.DeadlineExceeded):
		code = ErrUpstreamTimeout
	}

	g.logger.Warn("model call failed",
		zap.String("provider", g.provider.Name()),
		zap.String("model", req.Model),
		zap.String("code", string(code)),
		zap.Error(err),
	)

	return &ChatResponse{
		Provider: g.provider.Name(),
		Model:    req.Model,
		Content:  "I was unable to reach the language model to complete this request.",
		Metadata: map[string]string{
			"error":      err.Error(),
			"error_code": string(code),
		},
	}
}
