package tools

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mcpflow/metrics"
	"github.com/BaSui01/mcpflow/types"
)

// ErrInvalidPlan wraps plan validation failures surfaced by ExecutePlan.
type ErrInvalidPlan struct {
	Reason string
}

func (e *ErrInvalidPlan) Error() string {
	return "invalid plan: " + e.Reason
}

// ExecutorConfig configures plan execution.
type ExecutorConfig struct {
	// StepTimeout bounds each tool invocation. Zero means no per-step
	// timeout beyond the caller's context.
	StepTimeout time.Duration
}

// Executor runs plan steps against a registry, producing one execution
// record per step. Step failures never abort the plan: later steps still
// run and the failure is captured in its record.
type Executor struct {
	registry *Registry
	cfg      ExecutorConfig
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewExecutor creates a plan executor over the given registry.
func NewExecutor(registry *Registry, cfg ExecutorConfig, collector *metrics.Collector, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		registry: registry,
		cfg:      cfg,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "tool_executor")),
	}
}

// ValidatePlan checks structural integrity: unique step ids and
// dependencies that reference steps present in the plan.
func ValidatePlan(plan *types.Plan) error {
	if plan == nil {
		return &ErrInvalidPlan{Reason: "plan is nil"}
	}
	ids := make(map[string]struct{}, len(plan.Steps))
	for _, step := range plan.Steps {
		if step.ID == "" {
			return &ErrInvalidPlan{Reason: "step has empty id"}
		}
		if _, dup := ids[step.ID]; dup {
			return &ErrInvalidPlan{Reason: fmt.Sprintf("duplicate step id %q", step.ID)}
		}
		ids[step.ID] = struct{}{}
	}
	for _, step := range plan.Steps {
		for _, dep := range step.Dependencies {
			if _, ok := ids[dep]; !ok {
				return &ErrInvalidPlan{Reason: fmt.Sprintf("step %q depends on unknown step %q", step.ID, dep)}
			}
		}
	}
	return nil
}

// ExecutePlan runs every step in plan order and returns a record per step.
// The only error return is plan validation failure; tool errors are
// reported through the records.
func (e *Executor) ExecutePlan(ctx context.Context, plan *types.Plan, runContext map[string]any) ([]types.ExecutionRecord, error) {
	if err := ValidatePlan(plan); err != nil {
		return nil, err
	}

	records := make([]types.ExecutionRecord, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		records = append(records, e.executeStep(ctx, step, runContext))
	}
	return records, nil
}

func (e *Executor) executeStep(ctx context.Context, step types.PlanStep, runContext map[string]any) types.ExecutionRecord {
	record := types.ExecutionRecord{
		StepID:   step.ID,
		StepName: step.Name,
		Tool:     step.Tool,
	}

	if step.Tool == "" {
		// Steps without a tool are planning/reasoning markers.
		record.Status = types.StepStatusCompleted
		e.logger.Debug("step has no tool, marking completed", zap.String("step", step.ID))
		return record
	}

	tool, ok := e.registry.Get(step.Tool)
	if !ok {
		record.Status = types.StepStatusError
		record.Error = fmt.Sprintf("tool '%s' not found", step.Tool)
		e.metrics.RecordToolExecution(step.Tool, "error")
		e.logger.Warn("tool not found", zap.String("step", step.ID), zap.String("tool", step.Tool))
		return record
	}

	stepCtx := ctx
	if e.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, e.cfg.StepTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := e.invoke(stepCtx, tool, step.ToolInput, runContext)
	elapsed := time.Since(start)

	if err != nil {
		record.Status = types.StepStatusError
		record.Error = err.Error()
		e.metrics.RecordToolExecution(step.Tool, "error")
		e.logger.Warn("tool execution failed",
			zap.String("step", step.ID),
			zap.String("tool", step.Tool),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return record
	}

	record.Status = types.StepStatusSuccess
	record.Result = result
	e.metrics.RecordToolExecution(step.Tool, "success")
	e.logger.Debug("tool executed",
		zap.String("step", step.ID),
		zap.String("tool", step.Tool),
		zap.Duration("elapsed", elapsed))
	return record
}

// invoke runs a single tool call, converting panics into errors so one
// misbehaving tool cannot take the run down.
func (e *Executor) invoke(ctx context.Context, tool Tool, params map[string]any, runContext map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return tool.Execute(ctx, params, runContext)
}
