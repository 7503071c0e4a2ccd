// Package composition implements the sequential, parallel, fallback,
// and conditional agent-graph patterns of §4.N, grounded on
// original_source/agenkit/composition/*.py.
package composition

import (
	"context"
	"fmt"

	"github.com/scttfrdmn/agenkit-sub000/agent"
)

// Sequential feeds the output of agent i as the input to agent i+1,
// returning the last agent's output.
type Sequential struct {
	name   string
	agents []agent.Agent
}

// NewSequential builds a Sequential composition. It panics if agents is
// empty, matching the original's "requires at least one agent" guard
// surfaced as a construction-time invariant rather than a runtime error.
func NewSequential(name string, agents []agent.Agent) *Sequential {
	if len(agents) == 0 {
		panic("composition: sequential requires at least one agent")
	}
	return &Sequential{name: name, agents: agents}
}

// Name implements agent.Name.
func (s *Sequential) Name() string { return s.name }

// Agents returns the wrapped agents in execution order.
func (s *Sequential) Agents() []agent.Agent { return s.agents }

// Process runs every agent in order, propagating each step's output as
// the next step's input.
func (s *Sequential) Process(ctx context.Context, msg agent.Message) (agent.Message, error) {
	current := msg
	for i, a := range s.agents {
		result, err := a.Process(ctx, current)
		if err != nil {
			return agent.Message{}, fmt.Errorf("step %d (%s) failed: %w", i+1, agentName(a, i), err)
		}
		current = result
	}
	return current, nil
}

func agentName(a agent.Agent, idx int) string {
	if n, ok := a.(agent.Name); ok {
		return n.Name()
	}
	return fmt.Sprintf("agent[%d]", idx)
}
