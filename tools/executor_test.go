package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mcpflow/types"
)

func echoTool(name string) Tool {
	return NewFuncTool(name, "echoes its input", json.RawMessage(`{"type":"object"}`),
		func(_ context.Context, params map[string]any, _ map[string]any) (any, error) {
			return params["value"], nil
		})
}

func failTool(name string) Tool {
	return NewFuncTool(name, "always fails", nil,
		func(_ context.Context, _ map[string]any, _ map[string]any) (any, error) {
			return nil, fmt.Errorf("boom")
		})
}

func newTestExecutor(t *testing.T, toolset ...Tool) *Executor {
	t.Helper()
	reg := NewRegistry(nil)
	reg.RegisterAll(toolset...)
	return NewExecutor(reg, ExecutorConfig{}, nil, nil)
}

func TestRegistryRegisterAndList(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(echoTool("zeta"))
	reg.Register(echoTool("alpha"))

	assert.Equal(t, []string{"alpha", "zeta"}, reg.List())
	assert.Equal(t, 2, reg.Len())

	_, ok := reg.Get("alpha")
	assert.True(t, ok)
	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistryOverwrite(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(echoTool("dup"))
	reg.Register(failTool("dup"))

	tool, ok := reg.Get("dup")
	require.True(t, ok)
	assert.Equal(t, "always fails", tool.Description())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryDescriptorsSorted(t *testing.T) {
	reg := NewRegistry(nil)
	reg.RegisterAll(echoTool("b"), echoTool("a"), echoTool("c"))

	descs := reg.Descriptors()
	require.Len(t, descs, 3)
	assert.Equal(t, "a", descs[0].Name)
	assert.Equal(t, "c", descs[2].Name)
}

func TestExecutePlanSuccess(t *testing.T) {
	e := newTestExecutor(t, echoTool("echo"))

	plan := &types.Plan{Steps: []types.PlanStep{
		{ID: "step-1", Name: "Echo", Tool: "echo", ToolInput: map[string]any{"value": 42}},
	}}

	records, err := e.ExecutePlan(context.Background(), plan, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.StepStatusSuccess, records[0].Status)
	assert.Equal(t, 42, records[0].Result)
	assert.Empty(t, records[0].Error)
}

func TestExecutePlanFailForward(t *testing.T) {
	e := newTestExecutor(t, echoTool("echo"), failTool("bomb"))

	plan := &types.Plan{Steps: []types.PlanStep{
		{ID: "step-1", Name: "A", Tool: "bomb"},
		{ID: "step-2", Name: "B", Tool: "echo", ToolInput: map[string]any{"value": "ok"}},
		{ID: "step-3", Name: "C", Tool: "missing"},
	}}

	records, err := e.ExecutePlan(context.Background(), plan, nil)
	require.NoError(t, err)
	require.Len(t, records, 3, "a failed step must not stop later steps")

	assert.Equal(t, types.StepStatusError, records[0].Status)
	assert.Equal(t, "boom", records[0].Error)

	assert.Equal(t, types.StepStatusSuccess, records[1].Status)
	assert.Equal(t, "ok", records[1].Result)

	assert.Equal(t, types.StepStatusError, records[2].Status)
	assert.Equal(t, "tool 'missing' not found", records[2].Error)
}

func TestExecutePlanNoToolStepCompleted(t *testing.T) {
	e := newTestExecutor(t)

	plan := &types.Plan{Steps: []types.PlanStep{
		{ID: "step-1", Name: "Think", Description: "reason about the task"},
	}}

	records, err := e.ExecutePlan(context.Background(), plan, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.StepStatusCompleted, records[0].Status)
	assert.Nil(t, records[0].Result)
}

func TestExecutePlanPanicRecovered(t *testing.T) {
	panicky := NewFuncTool("panicky", "panics", nil,
		func(_ context.Context, _ map[string]any, _ map[string]any) (any, error) {
			panic("tool bug")
		})
	e := newTestExecutor(t, panicky, echoTool("echo"))

	plan := &types.Plan{Steps: []types.PlanStep{
		{ID: "step-1", Name: "A", Tool: "panicky"},
		{ID: "step-2", Name: "B", Tool: "echo", ToolInput: map[string]any{"value": 1}},
	}}

	records, err := e.ExecutePlan(context.Background(), plan, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, types.StepStatusError, records[0].Status)
	assert.Contains(t, records[0].Error, "tool panicked")
	assert.Equal(t, types.StepStatusSuccess, records[1].Status)
}

func TestExecutePlanStepTimeout(t *testing.T) {
	slow := NewFuncTool("slow", "sleeps", nil,
		func(ctx context.Context, _ map[string]any, _ map[string]any) (any, error) {
			select {
			case <-time.After(time.Second):
				return "done", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
	reg := NewRegistry(nil)
	reg.Register(slow)
	e := NewExecutor(reg, ExecutorConfig{StepTimeout: 10 * time.Millisecond}, nil, nil)

	plan := &types.Plan{Steps: []types.PlanStep{{ID: "step-1", Name: "Slow", Tool: "slow"}}}
	records, err := e.ExecutePlan(context.Background(), plan, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StepStatusError, records[0].Status)
}

func TestExecutePlanRunContextShared(t *testing.T) {
	writer := NewFuncTool("writer", "writes to run context", nil,
		func(_ context.Context, _ map[string]any, runContext map[string]any) (any, error) {
			runContext["token"] = "abc"
			return nil, nil
		})
	reader := NewFuncTool("reader", "reads from run context", nil,
		func(_ context.Context, _ map[string]any, runContext map[string]any) (any, error) {
			return runContext["token"], nil
		})
	e := newTestExecutor(t, writer, reader)

	plan := &types.Plan{Steps: []types.PlanStep{
		{ID: "step-1", Name: "W", Tool: "writer"},
		{ID: "step-2", Name: "R", Tool: "reader", Dependencies: []string{"step-1"}},
	}}

	records, err := e.ExecutePlan(context.Background(), plan, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "abc", records[1].Result)
}

func TestValidatePlan(t *testing.T) {
	assert.Error(t, ValidatePlan(nil))

	assert.Error(t, ValidatePlan(&types.Plan{Steps: []types.PlanStep{{ID: ""}}}))

	assert.Error(t, ValidatePlan(&types.Plan{Steps: []types.PlanStep{
		{ID: "a"}, {ID: "a"},
	}}), "duplicate ids must be rejected")

	assert.Error(t, ValidatePlan(&types.Plan{Steps: []types.PlanStep{
		{ID: "a", Dependencies: []string{"ghost"}},
	}}), "dangling dependencies must be rejected")

	assert.NoError(t, ValidatePlan(&types.Plan{Steps: []types.PlanStep{
		{ID: "a"}, {ID: "b", Dependencies: []string{"a"}},
	}}))
}

func TestExecutePlanRejectsInvalidPlan(t *testing.T) {
	e := newTestExecutor(t)

	_, err := e.ExecutePlan(context.Background(), &types.Plan{Steps: []types.PlanStep{
		{ID: "a", Dependencies: []string{"ghost"}},
	}}, nil)
	require.Error(t, err)

	var invalid *ErrInvalidPlan
	assert.ErrorAs(t, err, &invalid)
}
