package composition

import (
	"context"
	"fmt"
	"strings"

	"github.com/scttfrdmn/agenkit-sub000/agent"
)

// Condition reports whether a route should handle msg.
type Condition func(msg agent.Message) bool

type route struct {
	condition Condition
	agent     agent.Agent
}

// Conditional routes a message to the first agent whose condition
// matches, falling back to a default agent when none do.
type Conditional struct {
	name         string
	routes       []route
	defaultAgent agent.Agent
}

// NewConditional builds a Conditional composition with no routes yet;
// use AddRoute to add them.
func NewConditional(name string, defaultAgent agent.Agent) *Conditional {
	return &Conditional{name: name, defaultAgent: defaultAgent}
}

// Name implements agent.Name.
func (c *Conditional) Name() string { return c.name }

// AddRoute appends a (condition, agent) route, tried in the order added.
func (c *Conditional) AddRoute(cond Condition, a agent.Agent) {
	c.routes = append(c.routes, route{condition: cond, agent: a})
}

// Process routes msg to the first matching route, or the default agent
// if none match.
func (c *Conditional) Process(ctx context.Context, msg agent.Message) (agent.Message, error) {
	for i, r := range c.routes {
		if !r.condition(msg) {
			continue
		}
		name := agentName(r.agent, i)
		result, err := r.agent.Process(ctx, msg)
		if err != nil {
			return agent.Message{}, fmt.Errorf("route %d (%s) failed: %w", i+1, name, err)
		}
		result = result.WithMetadata("conditional_agent_used", name)
		result = result.WithMetadata("conditional_route", i+1)
		return result, nil
	}

	if c.defaultAgent == nil {
		return agent.Message{}, fmt.Errorf("no condition matched and no default agent configured")
	}
	name := agentName(c.defaultAgent, -1)
	result, err := c.defaultAgent.Process(ctx, msg)
	if err != nil {
		return agent.Message{}, fmt.Errorf("default agent (%s) failed: %w", name, err)
	}
	result = result.WithMetadata("conditional_agent_used", name)
	result = result.WithMetadata("conditional_route", "default")
	return result, nil
}

// ContentContains returns a condition matching when msg.Content, coerced
// to a string, contains substr.
func ContentContains(substr string) Condition {
	return func(msg agent.Message) bool {
		s, ok := msg.Content.(string)
		return ok && strings.Contains(s, substr)
	}
}

// RoleEquals returns a condition matching when msg.Role equals role.
func RoleEquals(role string) Condition {
	return func(msg agent.Message) bool { return msg.Role == role }
}

// MetadataHasKey returns a condition matching when msg.Metadata contains
// key.
func MetadataHasKey(key string) Condition {
	return func(msg agent.Message) bool {
		_, ok := msg.Metadata[key]
		return ok
	}
}

// MetadataEquals returns a condition matching when msg.Metadata[key]
// equals value.
func MetadataEquals(key string, value interface{}) Condition {
	return func(msg agent.Message) bool {
		v, ok := msg.Metadata[key]
		return ok && v == value
	}
}

// AndConditions combines conditions with AND logic.
func AndConditions(conditions ...Condition) Condition {
	return func(msg agent.Message) bool {
		for _, c := range conditions {
			if !c(msg) {
				return false
			}
		}
		return true
	}
}

// OrConditions combines conditions with OR logic.
func OrConditions(conditions ...Condition) Condition {
	return func(msg agent.Message) bool {
		for _, c := range conditions {
			if c(msg) {
				return true
			}
		}
		return false
	}
}

// NotCondition negates cond.
func NotCondition(cond Condition) Condition {
	return func(msg agent.Message) bool { return !cond(msg) }
}
