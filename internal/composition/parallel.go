package composition

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/scttfrdmn/agenkit-sub000/agent"
)

// AgentResult is the outcome of one sub-agent's run inside a Parallel
// call, passed to the Aggregator.
type AgentResult struct {
	AgentName string
	Message   agent.Message
	Err       error
}

// Aggregator combines the per-agent results of a Parallel call into a
// single response message.
type Aggregator func(results []AgentResult) agent.Message

// DefaultAggregator returns the first agent's message with every
// sub-agent's result attached under metadata.parallel_results, matching
// the distilled specification's literal default (the original Python
// implementation instead joins every agent's content; that behavior is
// available as JoinContentAggregator for callers that want it).
func DefaultAggregator(results []AgentResult) agent.Message {
	if len(results) == 0 {
		return agent.NewMessage("agent", "")
	}
	parallelResults := make([]map[string]interface{}, len(results))
	for i, r := range results {
		parallelResults[i] = map[string]interface{}{
			"agent_name": r.AgentName,
			"content":    r.Message.Content,
		}
	}
	resp := results[0].Message.Clone()
	return resp.WithMetadata("parallel_results", parallelResults)
}

// JoinContentAggregator joins each agent's "[name]: content" line and
// merges metadata under an "agentName.key" prefix, mirroring
// original_source/agenkit/composition/parallel.py's _combine_responses.
func JoinContentAggregator(results []AgentResult) agent.Message {
	var parts []string
	combined := make(map[string]interface{})
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("[%s]: %v", r.AgentName, r.Message.Content))
		for k, v := range r.Message.Metadata {
			combined[r.AgentName+"."+k] = v
		}
	}
	resp := agent.NewMessage("agent", strings.Join(parts, "\n"))
	resp.Metadata = combined
	return resp
}

// Parallel dispatches the same message to every sub-agent concurrently.
// Any sub-agent failure fails the whole call.
type Parallel struct {
	name       string
	agents     []agent.Agent
	aggregator Aggregator
}

// NewParallel builds a Parallel composition. agg may be nil, in which
// case DefaultAggregator is used.
func NewParallel(name string, agents []agent.Agent, agg Aggregator) *Parallel {
	if len(agents) == 0 {
		panic("composition: parallel requires at least one agent")
	}
	if agg == nil {
		agg = DefaultAggregator
	}
	return &Parallel{name: name, agents: agents, aggregator: agg}
}

// Name implements agent.Name.
func (p *Parallel) Name() string { return p.name }

// Process runs every sub-agent concurrently and aggregates their
// results, or returns a composite error naming every sub-agent that
// failed if any did.
func (p *Parallel) Process(ctx context.Context, msg agent.Message) (agent.Message, error) {
	results := make([]AgentResult, len(p.agents))
	var wg sync.WaitGroup
	wg.Add(len(p.agents))
	for i, a := range p.agents {
		i, a := i, a
		name := agentName(a, i)
		go func() {
			defer wg.Done()
			m, err := a.Process(ctx, msg)
			results[i] = AgentResult{AgentName: name, Message: m, Err: err}
		}()
	}
	wg.Wait()

	var failures []string
	for _, r := range results {
		if r.Err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", r.AgentName, r.Err))
		}
	}
	if len(failures) > 0 {
		return agent.Message{}, fmt.Errorf("parallel execution had errors: %s", strings.Join(failures, "; "))
	}

	return p.aggregator(results), nil
}
