// Package workflow provides a small directed-graph execution engine: named
// handler nodes connected by static or conditional edges, driven from an
// entry point to the END marker while threading a mutable run state.
package workflow

import (
	"github.com/BaSui01/mcpflow/types"
)

// End is the reserved terminal node name. Routing to End finishes the run.
const End = "END"

// State is the mutable payload threaded through a workflow run. Handlers
// read and update it in place; the engine only inspects Status for
// bookkeeping.
type State struct {
	Input          types.AgentInput
	Output         types.AgentOutput
	Context        map[string]any
	Plan           *types.Plan
	Records        []types.ExecutionRecord
	ConversationID string
	Status         types.RunStatus
}

// NewState creates a run state for the given input with an empty context.
func NewState(input types.AgentInput) *State {
	return &State{
		Input:   input,
		Context: make(map[string]any),
		Status:  types.RunStatusStarted,
	}
}
