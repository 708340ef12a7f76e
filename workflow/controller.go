package workflow

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/mcpflow/metrics"
	"github.com/BaSui01/mcpflow/types"
)

// Handler executes one node's work against the run state and returns an
// error to abort the run.
type Handler func(ctx context.Context, state *State) error

// ToolHandler runs a tool-style operation against the state and returns its
// result. Used with AddToolNode.
type ToolHandler func(ctx context.Context, state *State) (any, error)

// Predicate inspects the state after a node runs and names the outcome used
// to pick the next node on a conditional edge.
type Predicate func(state *State) string

type node struct {
	name    string
	handler Handler
}

type conditionalEdge struct {
	predicate Predicate
	outcomes  map[string]string
}

// Controller is a workflow graph builder and runner. Nodes and edges may be
// added in any order; the graph is validated lazily on the first run after a
// mutation.
type Controller struct {
	mu         sync.Mutex
	nodes      map[string]*node
	edges      map[string]string
	condEdges  map[string]*conditionalEdge
	entryPoint string
	dirty      bool
	built      bool
	buildErr   error
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewController creates an empty workflow controller.
func NewController(collector *metrics.Collector, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		nodes:     make(map[string]*node),
		edges:     make(map[string]string),
		condEdges: make(map[string]*conditionalEdge),
		metrics:   collector,
		logger:    logger.With(zap.String("component", "workflow")),
	}
}

// AddNode registers a handler under name, replacing any existing node of
// that name.
func (c *Controller) AddNode(name string, handler Handler) *Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[name] = &node{name: name, handler: handler}
	c.dirty = true
	return c
}

// AddToolNode registers a tool-style handler under name. The handler's
// result is appended to the state's records; a handler error is captured in
// the record instead of aborting the run.
func (c *Controller) AddToolNode(name string, handler ToolHandler) *Controller {
	return c.AddNode(name, func(ctx context.Context, state *State) error {
		result, err := handler(ctx, state)
		record := types.ExecutionRecord{
			StepID:   name,
			StepName: name,
			Status:   types.StepStatusSuccess,
			Result:   result,
		}
		if err != nil {
			record.Status = types.StepStatusError
			record.Error = err.Error()
			record.Result = nil
		}
		state.Records = append(state.Records, record)
		return nil
	})
}

// AddEdge connects from to to unconditionally. A node holds either a static
// edge or a conditional edge; setting one clears the other.
func (c *Controller) AddEdge(from, to string) *Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edges[from] = to
	delete(c.condEdges, from)
	c.dirty = true
	return c
}

// AddConditionalEdge routes from using predicate: the predicate's outcome
// string is looked up in outcomes to find the next node.
func (c *Controller) AddConditionalEdge(from string, predicate Predicate, outcomes map[string]string) *Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.condEdges[from] = &conditionalEdge{predicate: predicate, outcomes: outcomes}
	delete(c.edges, from)
	c.dirty = true
	return c
}

// SetEntryPoint names the node a run starts at.
func (c *Controller) SetEntryPoint(name string) *Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entryPoint = name
	c.dirty = true
	return c
}

// build validates the graph. Called with c.mu held.
func (c *Controller) build() error {
	if c.built && !c.dirty {
		return c.buildErr
	}
	c.built = true
	c.dirty = false
	c.buildErr = c.validate()
	return c.buildErr
}

func (c *Controller) validate() error {
	if c.entryPoint == "" {
		return fmt.Errorf("workflow has no entry point")
	}
	if _, ok := c.nodes[c.entryPoint]; !ok {
		return fmt.Errorf("entry point %q is not a registered node", c.entryPoint)
	}
	for from, to := range c.edges {
		if _, ok := c.nodes[from]; !ok {
			return fmt.Errorf("edge source %q is not a registered node", from)
		}
		if to != End {
			if _, ok := c.nodes[to]; !ok {
				return fmt.Errorf("edge %q -> %q targets unknown node", from, to)
			}
		}
	}
	for from, ce := range c.condEdges {
		if _, ok := c.nodes[from]; !ok {
			return fmt.Errorf("conditional edge source %q is not a registered node", from)
		}
		if len(ce.outcomes) == 0 {
			return fmt.Errorf("conditional edge from %q maps no outcomes", from)
		}
		for outcome, to := range ce.outcomes {
			if to != End {
				if _, ok := c.nodes[to]; !ok {
					return fmt.Errorf("conditional edge %q outcome %q targets unknown node", from, outcome)
				}
			}
		}
	}

	// Every node reachable from the entry point must be able to reach END.
	reachable := c.reachableFrom(c.entryPoint)
	for name := range reachable {
		if !c.canReachEnd(name) {
			return fmt.Errorf("node %q cannot reach END", name)
		}
	}
	return nil
}

func (c *Controller) successors(name string) []string {
	if to, ok := c.edges[name]; ok {
		return []string{to}
	}
	if ce, ok := c.condEdges[name]; ok {
		out := make([]string, 0, len(ce.outcomes))
		for _, to := range ce.outcomes {
			out = append(out, to)
		}
		return out
	}
	return nil
}

func (c *Controller) reachableFrom(start string) map[string]struct{} {
	seen := map[string]struct{}{}
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == End {
			continue
		}
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		stack = append(stack, c.successors(cur)...)
	}
	return seen
}

func (c *Controller) canReachEnd(start string) bool {
	seen := map[string]struct{}{}
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == End {
			return true
		}
		if _, ok := seen[cur]; ok {
			continue
		}
		seen[cur] = struct{}{}
		stack = append(stack, c.successors(cur)...)
	}
	return false
}

// Process runs the workflow from the entry point until END, mutating state
// in place. A handler error or an unroutable node aborts the run with an
// error.
func (c *Controller) Process(ctx context.Context, state *State) error {
	c.mu.Lock()
	if err := c.build(); err != nil {
		c.mu.Unlock()
		return err
	}
	current := c.entryPoint
	c.mu.Unlock()

	for current != End {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.mu.Lock()
		n, ok := c.nodes[current]
		c.mu.Unlock()
		if !ok {
			return fmt.Errorf("node %q not found", current)
		}

		c.logger.Debug("entering node", zap.String("node", current))
		c.metrics.RecordNodeTransition(current)

		if err := n.handler(ctx, state); err != nil {
			return fmt.Errorf("node %q: %w", current, err)
		}

		next, err := c.route(current, state)
		if err != nil {
			return err
		}
		current = next
	}
	return nil
}

// ProcessSync is Process under a different name for callers that want to be
// explicit about blocking semantics. Both run in the caller's goroutine.
func (c *Controller) ProcessSync(ctx context.Context, state *State) error {
	return c.Process(ctx, state)
}

func (c *Controller) route(from string, state *State) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if to, ok := c.edges[from]; ok {
		return to, nil
	}
	if ce, ok := c.condEdges[from]; ok {
		outcome := ce.predicate(state)
		to, mapped := ce.outcomes[outcome]
		if !mapped {
			return "", fmt.Errorf("node %q produced unmapped outcome %q", from, outcome)
		}
		return to, nil
	}
	return "", fmt.Errorf("node %q has no outgoing edge", from)
}
