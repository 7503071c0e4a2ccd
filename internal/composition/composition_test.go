package composition

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/agenkit-sub000/agent"
)

func upper() agent.Agent {
	return agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		s, _ := msg.Content.(string)
		return agent.NewMessage("agent", s+"!"), nil
	})
}

func failing(msg string) agent.Agent {
	return agent.Func(func(ctx context.Context, m agent.Message) (agent.Message, error) {
		return agent.Message{}, fmt.Errorf("%s", msg)
	})
}

func TestSequential_ChainsOutputToInput(t *testing.T) {
	s := NewSequential("chain", []agent.Agent{upper(), upper()})
	result, err := s.Process(context.Background(), agent.NewMessage("user", "x"))
	require.NoError(t, err)
	assert.Equal(t, "x!!", result.Content)
}

func TestSequential_FailurePropagatesWithStepIndex(t *testing.T) {
	s := NewSequential("chain", []agent.Agent{upper(), failing("boom")})
	_, err := s.Process(context.Background(), agent.NewMessage("user", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 2")
}

func TestParallel_DefaultAggregator(t *testing.T) {
	p := NewParallel("par", []agent.Agent{upper(), upper()}, nil)
	result, err := p.Process(context.Background(), agent.NewMessage("user", "x"))
	require.NoError(t, err)
	assert.Equal(t, "x!", result.Content)
	pr, ok := result.Metadata["parallel_results"].([]map[string]interface{})
	require.True(t, ok)
	assert.Len(t, pr, 2)
}

func TestParallel_JoinContentAggregator(t *testing.T) {
	p := NewParallel("par", []agent.Agent{upper(), upper()}, JoinContentAggregator)
	result, err := p.Process(context.Background(), agent.NewMessage("user", "x"))
	require.NoError(t, err)
	assert.Contains(t, result.Content, "x!")
}

func TestParallel_AnyFailureFailsWholeCall(t *testing.T) {
	p := NewParallel("par", []agent.Agent{upper(), failing("boom")}, nil)
	_, err := p.Process(context.Background(), agent.NewMessage("user", "x"))
	require.Error(t, err)
}

func TestFallback_ReturnsFirstSuccess(t *testing.T) {
	f := NewFallback("fb", []agent.Agent{failing("first down"), upper()})
	result, err := f.Process(context.Background(), agent.NewMessage("user", "x"))
	require.NoError(t, err)
	assert.Equal(t, "x!", result.Content)
	assert.Equal(t, 2, result.Metadata["fallback_attempt"])
}

func TestFallback_AllFail(t *testing.T) {
	f := NewFallback("fb", []agent.Agent{failing("a"), failing("b")})
	_, err := f.Process(context.Background(), agent.NewMessage("user", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 agents failed")
}

func TestConditional_RoutesOnFirstMatch(t *testing.T) {
	c := NewConditional("cond", failing("no default"))
	c.AddRoute(RoleEquals("admin"), upper())

	result, err := c.Process(context.Background(), agent.NewMessage("admin", "x"))
	require.NoError(t, err)
	assert.Equal(t, "x!", result.Content)
	assert.Equal(t, 1, result.Metadata["conditional_route"])
}

func TestConditional_FallsBackToDefault(t *testing.T) {
	c := NewConditional("cond", upper())
	c.AddRoute(RoleEquals("admin"), failing("never runs"))

	result, err := c.Process(context.Background(), agent.NewMessage("user", "x"))
	require.NoError(t, err)
	assert.Equal(t, "x!", result.Content)
	assert.Equal(t, "default", result.Metadata["conditional_route"])
}

func TestConditionHelpers(t *testing.T) {
	msg := agent.NewMessage("user", "hello world")
	msg = msg.WithMetadata("k", "v")

	assert.True(t, ContentContains("world")(msg))
	assert.False(t, ContentContains("xyz")(msg))
	assert.True(t, RoleEquals("user")(msg))
	assert.True(t, MetadataHasKey("k")(msg))
	assert.True(t, MetadataEquals("k", "v")(msg))
	assert.True(t, AndConditions(RoleEquals("user"), MetadataHasKey("k"))(msg))
	assert.True(t, OrConditions(RoleEquals("nope"), MetadataHasKey("k"))(msg))
	assert.True(t, NotCondition(RoleEquals("nope"))(msg))
}
