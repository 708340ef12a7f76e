// Package planner turns a user objective into a structured execution plan
// by prompting a language model and parsing its JSON output. Malformed
// model output degrades to a single direct-response step instead of
// failing the run.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/mcpflow/llm"
	"github.com/BaSui01/mcpflow/types"
)

const planSystemPrompt = `You are a task planning assistant. Break the user's request into a sequence of executable steps.

Respond with a single JSON object and nothing else, in this exact shape:
{
  "plan": [
    {
      "id": "step-1",
      "name": "short step name",
      "description": "what this step accomplishes",
      "tool": "tool name or empty string if no tool is needed",
      "tool_input": {},
      "dependencies": []
    }
  ],
  "reasoning": "one or two sentences on why the plan is structured this way"
}

Rules:
- Use only tools from the provided list. If no tool fits, leave "tool" empty.
- "dependencies" lists ids of earlier steps whose output this step needs.
- Keep plans minimal; one step is fine for simple requests.`

// Input carries everything a planning pass needs.
type Input struct {
	// Objective is the user's request.
	Objective string
	// Context holds run-wide key/values surfaced to the model.
	Context map[string]any
	// Constraints are hard rules the plan must respect.
	Constraints []string
	// Tools lists the capabilities the plan may use.
	Tools []types.ToolDescriptor
}

// Planner produces an execution plan for an objective.
type Planner interface {
	Plan(ctx context.Context, in Input) (*types.Plan, error)
}

// LLMPlanner implements Planner over a model gateway.
type LLMPlanner struct {
	gateway *llm.Gateway
	model   string
	logger  *zap.Logger
}

// NewLLMPlanner creates a planner backed by the given gateway. model may be
// empty to use the provider default.
func NewLLMPlanner(gateway *llm.Gateway, model string, logger *zap.Logger) *LLMPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMPlanner{
		gateway: gateway,
		model:   model,
		logger:  logger.With(zap.String("component", "planner")),
	}
}

// Plan asks the model for a step plan. The returned plan is always
// structurally valid; when the model's output cannot be parsed, a
// single-step fallback plan carrying Metadata["parsing_error"]=true is
// returned instead of an error.
func (p *LLMPlanner) Plan(ctx context.Context, in Input) (*types.Plan, error) {
	req := &llm.ChatRequest{
		Model:        p.model,
		SystemPrompt: buildSystemPrompt(in.Constraints),
		Messages: []types.Message{
			types.NewUserMessage(buildTaskPrompt(in)),
		},
	}

	resp := p.gateway.Generate(ctx, req)
	if resp.Failed() {
		p.logger.Warn("model unavailable during planning, using fallback plan",
			zap.String("error", resp.Metadata["error"]))
		return fallbackPlan(in.Objective, "model request failed: "+resp.Metadata["error"]), nil
	}

	plan, err := parsePlan(resp.Content)
	if err != nil {
		p.logger.Warn("failed to parse plan from model output",
			zap.Error(err),
			zap.Int("output_len", len(resp.Content)))
		return fallbackPlan(in.Objective, err.Error()), nil
	}

	if err := validatePlan(plan); err != nil {
		p.logger.Warn("model produced structurally invalid plan", zap.Error(err))
		return fallbackPlan(in.Objective, err.Error()), nil
	}

	p.logger.Debug("plan generated", zap.Int("steps", len(plan.Steps)))
	return plan, nil
}

func buildSystemPrompt(constraints []string) string {
	if len(constraints) == 0 {
		return planSystemPrompt
	}
	var b strings.Builder
	b.WriteString(planSystemPrompt)
	b.WriteString("\n\nConstraints the plan must respect:\n")
	for _, c := range constraints {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	return b.String()
}

func buildTaskPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("Available tools:\n")
	if len(in.Tools) == 0 {
		b.WriteString("(none)\n")
	}
	for _, t := range in.Tools {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}

	if len(in.Context) > 0 {
		b.WriteString("\nContext:\n")
		keys := make([]string, 0, len(in.Context))
		for k := range in.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, in.Context[k])
		}
	}

	b.WriteString("\nUser request:\n")
	b.WriteString(in.Objective)
	return b.String()
}

// parsePlan extracts the first balanced JSON object from raw model output
// and decodes it. Models often wrap JSON in prose or code fences, so the
// surrounding text is ignored.
func parsePlan(raw string) (*types.Plan, error) {
	fragment, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	var plan types.Plan
	if err := json.Unmarshal([]byte(fragment), &plan); err != nil {
		return nil, fmt.Errorf("decode plan json: %w", err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan contains no steps")
	}
	return &plan, nil
}

// extractJSONObject returns the first balanced {...} region of s, honoring
// string literals and escapes.
func extractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no json object in model output")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced json object in model output")
}

func validatePlan(plan *types.Plan) error {
	ids := make(map[string]struct{}, len(plan.Steps))
	for i := range plan.Steps {
		step := &plan.Steps[i]
		if step.ID == "" {
			step.ID = fmt.Sprintf("step-%d", i+1)
		}
		if _, dup := ids[step.ID]; dup {
			return fmt.Errorf("duplicate step id %q", step.ID)
		}
		ids[step.ID] = struct{}{}
	}
	for _, step := range plan.Steps {
		for _, dep := range step.Dependencies {
			if _, ok := ids[dep]; !ok {
				return fmt.Errorf("step %q depends on unknown step %q", step.ID, dep)
			}
		}
	}
	return nil
}

// fallbackPlan builds the degraded single-step plan used when the model's
// output is unusable. The step's description is the objective itself, it
// carries no tool, and the executor marks it COMPLETED so the synthesizer
// answers from the objective alone.
func fallbackPlan(objective, reason string) *types.Plan {
	return &types.Plan{
		Steps: []types.PlanStep{
			{
				ID:          "step-1",
				Name:        "Respond directly",
				Description: objective,
			},
		},
		Reasoning: "Falling back to a direct response without tool assistance.",
		Metadata: map[string]any{
			"parsing_error": true,
			"error_detail":  reason,
		},
	}
}
