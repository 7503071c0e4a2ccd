package composition

import (
	"context"
	"fmt"
	"strings"

	"github.com/scttfrdmn/agenkit-sub000/agent"
)

// Fallback tries sub-agents in order, returning the first success
// tagged with metadata.fallback_agent_used and .fallback_attempt.
type Fallback struct {
	name   string
	agents []agent.Agent
}

// NewFallback builds a Fallback composition.
func NewFallback(name string, agents []agent.Agent) *Fallback {
	if len(agents) == 0 {
		panic("composition: fallback requires at least one agent")
	}
	return &Fallback{name: name, agents: agents}
}

// Name implements agent.Name.
func (f *Fallback) Name() string { return f.name }

// Process tries each agent in order until one succeeds.
func (f *Fallback) Process(ctx context.Context, msg agent.Message) (agent.Message, error) {
	var errs []string
	for i, a := range f.agents {
		name := agentName(a, i)
		result, err := a.Process(ctx, msg)
		if err != nil {
			errs = append(errs, fmt.Sprintf("agent %d (%s): %v", i+1, name, err))
			continue
		}
		result = result.WithMetadata("fallback_agent_used", name)
		result = result.WithMetadata("fallback_attempt", i+1)
		return result, nil
	}
	return agent.Message{}, fmt.Errorf("all %d agents failed: %s", len(f.agents), strings.Join(errs, "; "))
}
