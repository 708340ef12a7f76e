// Package tools defines the executable capabilities available to the agent
// pipeline: the Tool contract, the named Registry the planner draws from,
// and the Executor that runs a plan's steps against it.
package tools

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/mcpflow/types"
)

// Tool is a named, schema-described executable capability.
type Tool interface {
	// Name returns the unique tool name.
	Name() string
	// Description returns a short human-readable description.
	Description() string
	// Schema returns the JSON Schema of accepted parameters.
	Schema() json.RawMessage
	// Execute runs the tool. params carries the step's tool input and
	// runContext the run-wide shared context.
	Execute(ctx context.Context, params map[string]any, runContext map[string]any) (any, error)
}

// FuncTool adapts a plain function into a Tool.
type FuncTool struct {
	name        string
	description string
	schema      json.RawMessage
	fn          func(ctx context.Context, params map[string]any, runContext map[string]any) (any, error)
}

// NewFuncTool creates a function-backed tool.
func NewFuncTool(name, description string, schema json.RawMessage, fn func(ctx context.Context, params map[string]any, runContext map[string]any) (any, error)) *FuncTool {
	return &FuncTool{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	}
}

func (t *FuncTool) Name() string { return t.name }

func (t *FuncTool) Description() string { return t.description }

func (t *FuncTool) Schema() json.RawMessage { return t.schema }

func (t *FuncTool) Execute(ctx context.Context, params map[string]any, runContext map[string]any) (any, error) {
	return t.fn(ctx, params, runContext)
}

// Registry maps tool names to implementations. Registering an existing name
// overwrites the previous tool.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *zap.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger.With(zap.String("component", "tool_registry")),
	}
}

// Register adds a tool, replacing any previous registration of the name.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name()]; exists {
		r.logger.Debug("overwriting tool registration", zap.String("tool", tool.Name()))
	}
	r.tools[tool.Name()] = tool
}

// RegisterAll adds multiple tools.
func (r *Registry) RegisterAll(tools ...Tool) {
	for _, t := range tools {
		r.Register(t)
	}
}

// Unregister removes a tool and reports whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; ok {
		delete(r.tools, name)
		return true
	}
	return false
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// List returns the registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns name/description pairs for the planner prompt,
// sorted by name.
func (r *Registry) Descriptors() []types.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, types.ToolDescriptor{Name: t.Name(), Description: t.Description()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Schemas returns the tool schemas for LLM function calling, sorted by
// name.
func (r *Registry) Schemas() []types.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, types.ToolSchema{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Schema(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
