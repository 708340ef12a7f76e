package types

import "encoding/json"

// ToolSchema defines a tool's interface for LLM function calling.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolDescriptor is the name/description pair handed to the planner so it
// can reference tools in generated plans.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
