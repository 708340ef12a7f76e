package types

// PlanStep is a single step of an execution plan produced by the planner.
type PlanStep struct {
	// ID is unique within a plan.
	ID string `json:"id"`
	// Name is a short human-readable label.
	Name string `json:"name"`
	// Description explains what the step accomplishes.
	Description string `json:"description"`
	// Tool is the name of the tool to invoke, empty for pure planning steps.
	Tool string `json:"tool,omitempty"`
	// ToolInput holds the parameters passed to the tool.
	ToolInput map[string]any `json:"tool_input,omitempty"`
	// Dependencies lists step IDs that must precede this step.
	// Referential integrity is validated before execution; ordering is
	// taken from the plan itself, not recomputed from this field.
	Dependencies []string `json:"dependencies,omitempty"`
}

// Plan is an ordered sequence of steps plus the planner's free-text
// reasoning. Steps execute in slice order.
type Plan struct {
	Steps     []PlanStep     `json:"plan"`
	Reasoning string         `json:"reasoning,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// StepStatus is the outcome class of one executed plan step.
type StepStatus string

const (
	// StepStatusSuccess marks a tool invocation that returned a result.
	StepStatusSuccess StepStatus = "SUCCESS"
	// StepStatusError marks a tool invocation that failed or a missing tool.
	StepStatusError StepStatus = "ERROR"
	// StepStatusCompleted marks a step with no tool binding.
	StepStatusCompleted StepStatus = "COMPLETED"
)

// ExecutionRecord is the per-step outcome of running a plan.
type ExecutionRecord struct {
	StepID   string     `json:"step_id"`
	StepName string     `json:"step_name"`
	Tool     string     `json:"tool,omitempty"`
	Result   any        `json:"result,omitempty"`
	Error    string     `json:"error,omitempty"`
	Status   StepStatus `json:"status"`
}
