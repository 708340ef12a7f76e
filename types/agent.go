package types

// AgentInput is the caller-facing input of a single agent run.
// It is treated as immutable once constructed.
type AgentInput struct {
	// Query is the natural-language objective.
	Query string `json:"query"`
	// History carries prior conversation turns, oldest first.
	History []Message `json:"history,omitempty"`
	// Context is an open key-value map made available to planner and tools.
	Context map[string]any `json:"context,omitempty"`
	// Constraints are hard rules the plan must respect.
	Constraints []string `json:"constraints,omitempty"`
}

// AgentOutput is the result of a single agent run. The pipeline always
// produces one; failures degrade the content and annotate Metadata instead
// of surfacing as errors (workflow configuration errors excepted).
type AgentOutput struct {
	Response string            `json:"response"`
	Actions  []ExecutionRecord `json:"actions,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

// RunStatus tracks the lifecycle of a conversation state envelope.
type RunStatus string

const (
	RunStatusStarted    RunStatus = "STARTED"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusCompleted  RunStatus = "COMPLETED"
)
