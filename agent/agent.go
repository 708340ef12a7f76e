// Package agent assembles the full execution pipeline: plan the query,
// execute the plan's tool steps, and synthesize a final response, driven by
// a workflow graph. Every run produces a response; upstream failures
// degrade rather than error.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/mcpflow/llm"
	"github.com/BaSui01/mcpflow/memory"
	"github.com/BaSui01/mcpflow/metrics"
	"github.com/BaSui01/mcpflow/planner"
	"github.com/BaSui01/mcpflow/tools"
	"github.com/BaSui01/mcpflow/types"
	"github.com/BaSui01/mcpflow/workflow"
)

const (
	nodeStart   = "start"
	nodePlan    = "plan"
	nodeExecute = "execute"
	nodeRespond = "respond"
)

const respondSystemPrompt = `You are a helpful assistant. Compose the final answer to the user's request.

When step results are provided, base the answer on them: report what succeeded, use the results, and mention any step that failed without inventing its outcome. When no step results are provided, answer directly.`

// Agent runs the plan/execute/respond pipeline for a query.
type Agent struct {
	gateway      *llm.Gateway
	planner      planner.Planner
	registry     *tools.Registry
	executor     *tools.Executor
	conversation *memory.Conversation
	controller   *workflow.Controller
	metrics      *metrics.Collector
	logger       *zap.Logger
	model        string
	stepTimeout  time.Duration
}

// Option customizes an Agent.
type Option func(*Agent)

// WithPlanner replaces the default LLM planner.
func WithPlanner(p planner.Planner) Option {
	return func(a *Agent) { a.planner = p }
}

// WithRegistry sets the tool registry.
func WithRegistry(r *tools.Registry) Option {
	return func(a *Agent) { a.registry = r }
}

// WithMemory attaches conversation memory. Without it, runs are stateless.
func WithMemory(c *memory.Conversation) Option {
	return func(a *Agent) { a.conversation = c }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// WithModel overrides the provider's default model for planning and
// synthesis.
func WithModel(model string) Option {
	return func(a *Agent) { a.model = model }
}

// WithStepTimeout bounds each tool invocation.
func WithStepTimeout(d time.Duration) Option {
	return func(a *Agent) { a.stepTimeout = d }
}

// New creates an agent over the given gateway.
func New(gateway *llm.Gateway, opts ...Option) *Agent {
	a := &Agent{
		gateway:     gateway,
		logger:      zap.NewNop(),
		stepTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("component", "agent"))
	if a.registry == nil {
		a.registry = tools.NewRegistry(a.logger)
	}
	if a.planner == nil {
		a.planner = planner.NewLLMPlanner(gateway, a.model, a.logger)
	}
	a.executor = tools.NewExecutor(a.registry, tools.ExecutorConfig{StepTimeout: a.stepTimeout}, a.metrics, a.logger)
	a.controller = a.buildWorkflow()
	return a
}

// Registry exposes the agent's tool registry for registration.
func (a *Agent) Registry() *tools.Registry {
	return a.registry
}

func (a *Agent) buildWorkflow() *workflow.Controller {
	c := workflow.NewController(a.metrics, a.logger)
	c.AddNode(nodeStart, a.startNode)
	c.AddNode(nodePlan, a.planNode)
	c.AddNode(nodeExecute, a.executeNode)
	c.AddNode(nodeRespond, a.respondNode)
	c.SetEntryPoint(nodeStart)
	c.AddEdge(nodeStart, nodePlan)
	c.AddEdge(nodePlan, nodeExecute)
	c.AddEdge(nodeExecute, nodeRespond)
	c.AddEdge(nodeRespond, workflow.End)
	return c
}

// Run executes the pipeline for input and returns the final output. The
// returned error covers engine failures only; model and tool failures
// surface inside the output.
func (a *Agent) Run(ctx context.Context, input types.AgentInput) (*types.AgentOutput, error) {
	start := time.Now()
	state := workflow.NewState(input)
	state.ConversationID = uuid.NewString()

	a.logger.Info("run started",
		zap.String("conversation_id", state.ConversationID),
		zap.Int("query_len", len(input.Query)))

	if err := a.controller.Process(ctx, state); err != nil {
		a.metrics.RecordAgentRun("error", time.Since(start))
		return nil, fmt.Errorf("workflow: %w", err)
	}

	a.metrics.RecordAgentRun("completed", time.Since(start))
	a.logger.Info("run completed",
		zap.String("conversation_id", state.ConversationID),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("actions", len(state.Output.Actions)))
	return &state.Output, nil
}

// RunSync is Run; both block the caller. It exists for symmetry with
// workflow.ProcessSync.
func (a *Agent) RunSync(ctx context.Context, input types.AgentInput) (*types.AgentOutput, error) {
	return a.Run(ctx, input)
}

func (a *Agent) startNode(ctx context.Context, state *workflow.State) error {
	state.Status = types.RunStatusProcessing
	if state.Context == nil {
		state.Context = make(map[string]any)
	}
	for k, v := range state.Input.Context {
		state.Context[k] = v
	}

	if a.conversation != nil {
		state.Input.History = a.conversation.History(0)
		a.conversation.Record(ctx, types.NewUserMessage(state.Input.Query))
	}
	return nil
}

func (a *Agent) planNode(ctx context.Context, state *workflow.State) error {
	plan, err := a.planner.Plan(ctx, planner.Input{
		Objective:   state.Input.Query,
		Context:     state.Context,
		Constraints: state.Input.Constraints,
		Tools:       a.registry.Descriptors(),
	})
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}
	state.Plan = plan
	return nil
}

func (a *Agent) executeNode(ctx context.Context, state *workflow.State) error {
	records, err := a.executor.ExecutePlan(ctx, state.Plan, state.Context)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	state.Records = records
	return nil
}

func (a *Agent) respondNode(ctx context.Context, state *workflow.State) error {
	req := &llm.ChatRequest{
		Model:        a.model,
		SystemPrompt: respondSystemPrompt,
		Messages:     a.synthesisMessages(state),
	}

	resp := a.gateway.Generate(ctx, req)
	content := resp.Content
	if resp.Failed() {
		content = degradedResponse(state)
	}

	state.Output = types.AgentOutput{
		Response: content,
		Actions:  state.Records,
		Metadata: map[string]any{
			"conversation_id": state.ConversationID,
		},
	}
	if state.Plan != nil && state.Plan.Metadata != nil {
		if v, ok := state.Plan.Metadata["parsing_error"]; ok {
			state.Output.Metadata["parsing_error"] = v
		}
	}
	state.Status = types.RunStatusCompleted

	if a.conversation != nil {
		a.conversation.Record(ctx, types.NewAssistantMessage(content))
	}
	return nil
}

func (a *Agent) synthesisMessages(state *workflow.State) []types.Message {
	msgs := make([]types.Message, 0, len(state.Input.History)+1)
	msgs = append(msgs, state.Input.History...)

	var b strings.Builder
	b.WriteString("User request:\n")
	b.WriteString(state.Input.Query)

	if len(state.Records) > 0 {
		b.WriteString("\n\nStep results:\n")
		for _, rec := range state.Records {
			fmt.Fprintf(&b, "- %s (%s): %s", rec.StepName, rec.Tool, rec.Status)
			if rec.Error != "" {
				fmt.Fprintf(&b, " error=%s", rec.Error)
			}
			if rec.Result != nil {
				if data, err := json.Marshal(rec.Result); err == nil {
					fmt.Fprintf(&b, " result=%s", data)
				}
			}
			b.WriteByte('\n')
		}
	}

	msgs = append(msgs, types.NewUserMessage(b.String()))
	return msgs
}

// degradedResponse is used when synthesis itself fails: it reports whatever
// the tool steps produced so a run never ends empty-handed.
func degradedResponse(state *workflow.State) string {
	if len(state.Records) == 0 {
		return "I was unable to reach the language model to complete this request."
	}
	var b strings.Builder
	b.WriteString("I could not compose a full answer, but here is what the steps produced:\n")
	for _, rec := range state.Records {
		fmt.Fprintf(&b, "- %s: %s", rec.StepName, rec.Status)
		if rec.Error != "" {
			fmt.Fprintf(&b, " (%s)", rec.Error)
		}
		if rec.Result != nil {
			if data, err := json.Marshal(rec.Result); err == nil {
				fmt.Fprintf(&b, " -> %s", data)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
