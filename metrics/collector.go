// Package metrics provides prometheus collectors for the agent pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector aggregates pipeline metrics. All record methods are safe to
// call on a nil receiver so components can treat metrics as optional.
type Collector struct {
	agentRunsTotal   *prometheus.CounterVec
	agentRunDuration *prometheus.HistogramVec
	nodeTransitions  *prometheus.CounterVec

	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec

	toolExecutionsTotal *prometheus.CounterVec

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a collector registered against reg. A nil reg uses
// the default prometheus registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.agentRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_runs_total",
			Help:      "Total number of agent runs",
		},
		[]string{"status"},
	)

	c.agentRunDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_run_duration_seconds",
			Help:      "Agent run duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	c.nodeTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_node_transitions_total",
			Help:      "Total number of workflow node transitions",
		},
		[]string{"node"},
	)

	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	c.toolExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_executions_total",
			Help:      "Total number of tool executions",
		},
		[]string{"tool", "status"},
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache"},
	)

	return c
}

// RecordAgentRun records a finished agent run.
func (c *Collector) RecordAgentRun(status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.agentRunsTotal.WithLabelValues(status).Inc()
	c.agentRunDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordNodeTransition records one workflow node execution.
func (c *Collector) RecordNodeTransition(node string) {
	if c == nil {
		return
	}
	c.nodeTransitions.WithLabelValues(node).Inc()
}

// RecordLLMRequest records an LLM call outcome.
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordToolExecution records one tool invocation outcome.
func (c *Collector) RecordToolExecution(tool, status string) {
	if c == nil {
		return
	}
	c.toolExecutionsTotal.WithLabelValues(tool, status).Inc()
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit(name string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(name).Inc()
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(name string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(name).Inc()
}
