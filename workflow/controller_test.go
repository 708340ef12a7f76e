package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mcpflow/types"
)

func appendNode(trace *[]string, name string) Handler {
	return func(_ context.Context, _ *State) error {
		*trace = append(*trace, name)
		return nil
	}
}

func TestLinearFlow(t *testing.T) {
	var trace []string
	c := NewController(nil, nil)
	c.AddNode("a", appendNode(&trace, "a"))
	c.AddNode("b", appendNode(&trace, "b"))
	c.SetEntryPoint("a")
	c.AddEdge("a", "b")
	c.AddEdge("b", End)

	state := NewState(types.AgentInput{Query: "q"})
	require.NoError(t, c.Process(context.Background(), state))
	assert.Equal(t, []string{"a", "b"}, trace)
}

func TestConditionalRouting(t *testing.T) {
	var trace []string
	c := NewController(nil, nil)
	c.AddNode("decide", func(_ context.Context, s *State) error {
		s.Context["route"] = "left"
		return nil
	})
	c.AddNode("left", appendNode(&trace, "left"))
	c.AddNode("right", appendNode(&trace, "right"))
	c.SetEntryPoint("decide")
	c.AddConditionalEdge("decide", func(s *State) string {
		return s.Context["route"].(string)
	}, map[string]string{"left": "left", "right": "right"})
	c.AddEdge("left", End)
	c.AddEdge("right", End)

	state := NewState(types.AgentInput{})
	require.NoError(t, c.Process(context.Background(), state))
	assert.Equal(t, []string{"left"}, trace)
}

func TestAddToolNodeRecordsResult(t *testing.T) {
	c := NewController(nil, nil)
	c.AddToolNode("fetch", func(_ context.Context, _ *State) (any, error) {
		return "payload", nil
	})
	c.SetEntryPoint("fetch")
	c.AddEdge("fetch", End)

	state := NewState(types.AgentInput{})
	require.NoError(t, c.Process(context.Background(), state))
	require.Len(t, state.Records, 1)
	assert.Equal(t, "fetch", state.Records[0].StepName)
	assert.Equal(t, types.StepStatusSuccess, state.Records[0].Status)
	assert.Equal(t, "payload", state.Records[0].Result)
}

func TestAddToolNodeErrorRecordedNotFatal(t *testing.T) {
	c := NewController(nil, nil)
	c.AddToolNode("flaky", func(_ context.Context, _ *State) (any, error) {
		return nil, fmt.Errorf("upstream gone")
	})
	c.AddNode("after", func(_ context.Context, s *State) error {
		s.Context["reached"] = true
		return nil
	})
	c.SetEntryPoint("flaky")
	c.AddEdge("flaky", "after")
	c.AddEdge("after", End)

	state := NewState(types.AgentInput{})
	require.NoError(t, c.Process(context.Background(), state))
	require.Len(t, state.Records, 1)
	assert.Equal(t, types.StepStatusError, state.Records[0].Status)
	assert.Equal(t, "upstream gone", state.Records[0].Error)
	assert.Nil(t, state.Records[0].Result)
	assert.Equal(t, true, state.Context["reached"], "a failed tool node must not stop the run")
}

func TestUnmappedOutcomeFails(t *testing.T) {
	c := NewController(nil, nil)
	c.AddNode("decide", func(_ context.Context, _ *State) error { return nil })
	c.AddNode("next", func(_ context.Context, _ *State) error { return nil })
	c.SetEntryPoint("decide")
	c.AddConditionalEdge("decide", func(_ *State) string { return "mystery" },
		map[string]string{"known": "next"})
	c.AddEdge("next", End)

	err := c.Process(context.Background(), NewState(types.AgentInput{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmapped outcome")
}

func TestHandlerErrorPropagates(t *testing.T) {
	c := NewController(nil, nil)
	c.AddNode("bad", func(_ context.Context, _ *State) error {
		return fmt.Errorf("handler exploded")
	})
	c.SetEntryPoint("bad")
	c.AddEdge("bad", End)

	err := c.Process(context.Background(), NewState(types.AgentInput{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `node "bad"`)
	assert.Contains(t, err.Error(), "handler exploded")
}

func TestValidationNoEntryPoint(t *testing.T) {
	c := NewController(nil, nil)
	c.AddNode("a", func(_ context.Context, _ *State) error { return nil })
	c.AddEdge("a", End)

	err := c.Process(context.Background(), NewState(types.AgentInput{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry point")
}

func TestValidationUnknownEdgeTarget(t *testing.T) {
	c := NewController(nil, nil)
	c.AddNode("a", func(_ context.Context, _ *State) error { return nil })
	c.SetEntryPoint("a")
	c.AddEdge("a", "ghost")

	err := c.Process(context.Background(), NewState(types.AgentInput{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestValidationDeadEnd(t *testing.T) {
	c := NewController(nil, nil)
	c.AddNode("a", func(_ context.Context, _ *State) error { return nil })
	c.AddNode("b", func(_ context.Context, _ *State) error { return nil })
	c.SetEntryPoint("a")
	c.AddEdge("a", "b")
	// b has no outgoing edge: it can never reach END.

	err := c.Process(context.Background(), NewState(types.AgentInput{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reach END")
}

func TestRebuildAfterMutation(t *testing.T) {
	var trace []string
	c := NewController(nil, nil)
	c.AddNode("a", appendNode(&trace, "a"))
	c.SetEntryPoint("a")
	c.AddEdge("a", End)

	require.NoError(t, c.Process(context.Background(), NewState(types.AgentInput{})))

	// Mutating the graph after a run revalidates it on the next run.
	c.AddNode("b", appendNode(&trace, "b"))
	c.AddEdge("a", "b")
	c.AddEdge("b", End)

	trace = nil
	require.NoError(t, c.Process(context.Background(), NewState(types.AgentInput{})))
	assert.Equal(t, []string{"a", "b"}, trace)
}

func TestContextCancellationStopsRun(t *testing.T) {
	c := NewController(nil, nil)
	c.AddNode("loop", func(_ context.Context, _ *State) error { return nil })
	c.SetEntryPoint("loop")
	c.AddConditionalEdge("loop", func(_ *State) string { return "again" },
		map[string]string{"again": "loop", "done": End})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Process(ctx, NewState(types.AgentInput{}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessSyncMatchesProcess(t *testing.T) {
	var trace []string
	c := NewController(nil, nil)
	c.AddNode("a", appendNode(&trace, "a"))
	c.SetEntryPoint("a")
	c.AddEdge("a", End)

	require.NoError(t, c.ProcessSync(context.Background(), NewState(types.AgentInput{})))
	assert.Equal(t, []string{"a"}, trace)
}
