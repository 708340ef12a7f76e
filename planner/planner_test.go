package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/mcpflow/llm"
	"github.com/BaSui01/mcpflow/types"
)

type scriptedProvider struct {
	content  string
	err      error
	requests []*llm.ChatRequest
}

func (p *scriptedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.ChatResponse{Provider: "scripted", Content: p.content}, nil
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) SupportsNativeFunctionCalling() bool { return false }

func newTestPlanner(content string, err error) (*LLMPlanner, *scriptedProvider) {
	provider := &scriptedProvider{content: content, err: err}
	gw := llm.NewGateway(provider)
	return NewLLMPlanner(gw, "", nil), provider
}

var testTools = []types.ToolDescriptor{
	{Name: "calculator", Description: "arithmetic"},
	{Name: "search", Description: "web search"},
}

func TestPlanParsesCleanJSON(t *testing.T) {
	p, _ := newTestPlanner(`{
		"plan": [
			{"id": "step-1", "name": "Compute", "description": "add", "tool": "calculator", "tool_input": {"a": 1, "b": 2}, "dependencies": []},
			{"id": "step-2", "name": "Report", "description": "report result", "tool": "", "dependencies": ["step-1"]}
		],
		"reasoning": "two steps"
	}`, nil)

	plan, err := p.Plan(context.Background(), Input{Objective: "add 1 and 2", Tools: testTools})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "calculator", plan.Steps[0].Tool)
	assert.Equal(t, []string{"step-1"}, plan.Steps[1].Dependencies)
	assert.Equal(t, "two steps", plan.Reasoning)
	assert.Nil(t, plan.Metadata["parsing_error"])
}

func TestPlanExtractsJSONFromProse(t *testing.T) {
	p, _ := newTestPlanner("Sure! Here is the plan:\n```json\n"+
		`{"plan": [{"id": "step-1", "name": "Go", "description": "d", "tool": "search", "tool_input": {"q": "golang {braces} \"quoted\""}}], "reasoning": "r"}`+
		"\n```\nLet me know if that works.", nil)

	plan, err := p.Plan(context.Background(), Input{Objective: "search", Tools: testTools})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "search", plan.Steps[0].Tool)
}

func TestPlanPromptCarriesContextAndConstraints(t *testing.T) {
	p, provider := newTestPlanner(`{"plan": [{"id": "step-1", "name": "A", "description": "d"}], "reasoning": "r"}`, nil)

	_, err := p.Plan(context.Background(), Input{
		Objective:   "summarize the report",
		Context:     map[string]any{"report_id": "r-42", "audience": "exec"},
		Constraints: []string{"no external calls", "answer in French"},
		Tools:       testTools,
	})
	require.NoError(t, err)
	require.Len(t, provider.requests, 1)

	req := provider.requests[0]
	assert.Contains(t, req.SystemPrompt, "no external calls")
	assert.Contains(t, req.SystemPrompt, "answer in French")

	task := req.Messages[len(req.Messages)-1].Content
	assert.Contains(t, task, "report_id: r-42")
	assert.Contains(t, task, "audience: exec")
	assert.Contains(t, task, "summarize the report")
}

func TestPlanFallbackOnGarbage(t *testing.T) {
	p, _ := newTestPlanner("I cannot produce a plan right now, sorry.", nil)

	plan, err := p.Plan(context.Background(), Input{Objective: "do something", Tools: testTools})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Empty(t, plan.Steps[0].Tool)
	assert.Equal(t, true, plan.Metadata["parsing_error"])
}

func TestPlanFallbackDescriptionIsObjective(t *testing.T) {
	p, _ := newTestPlanner("definitely not json", nil)

	objective := "add two numbers"
	plan, err := p.Plan(context.Background(), Input{Objective: objective, Tools: testTools})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, objective, plan.Steps[0].Description)
}

func TestPlanFallbackOnEmptyPlan(t *testing.T) {
	p, _ := newTestPlanner(`{"plan": [], "reasoning": "nothing to do"}`, nil)

	plan, err := p.Plan(context.Background(), Input{Objective: "noop", Tools: testTools})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, true, plan.Metadata["parsing_error"])
}

func TestPlanFallbackOnDanglingDependency(t *testing.T) {
	p, _ := newTestPlanner(`{"plan": [
		{"id": "step-1", "name": "A", "description": "d", "tool": "search", "dependencies": ["step-9"]}
	], "reasoning": "r"}`, nil)

	plan, err := p.Plan(context.Background(), Input{Objective: "q", Tools: testTools})
	require.NoError(t, err)
	assert.Equal(t, true, plan.Metadata["parsing_error"])
}

func TestPlanFallbackOnModelFailure(t *testing.T) {
	p, _ := newTestPlanner("", &llm.Error{Code: llm.ErrProviderUnavailable, Message: "down"})

	plan, err := p.Plan(context.Background(), Input{Objective: "q", Tools: testTools})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, true, plan.Metadata["parsing_error"])
	assert.Equal(t, "q", plan.Steps[0].Description)
}

func TestPlanAssignsMissingStepIDs(t *testing.T) {
	p, _ := newTestPlanner(`{"plan": [
		{"name": "A", "description": "d", "tool": "search"},
		{"name": "B", "description": "d", "tool": ""}
	], "reasoning": "r"}`, nil)

	plan, err := p.Plan(context.Background(), Input{Objective: "q", Tools: testTools})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "step-1", plan.Steps[0].ID)
	assert.Equal(t, "step-2", plan.Steps[1].ID)
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`{"a": 1}`, `{"a": 1}`, false},
		{`prefix {"a": {"b": 2}} suffix`, `{"a": {"b": 2}}`, false},
		{`{"s": "brace } in string"}`, `{"s": "brace } in string"}`, false},
		{`{"s": "escaped \" quote }"}`, `{"s": "escaped \" quote }"}`, false},
		{`no object here`, "", true},
		{`{"unterminated": 1`, "", true},
	}
	for _, tc := range cases {
		got, err := extractJSONObject(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
