package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/internal/config"
)

func TestWrapMiddleware_NoneEnabledReturnsUnwrappedAgent(t *testing.T) {
	base := agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		return msg, nil
	})
	cfg := &config.Config{}
	wrapped := wrapMiddleware("test", base, cfg)

	resp, err := wrapped.Process(context.Background(), agent.NewMessage("user", "x"))
	require.NoError(t, err)
	assert.Equal(t, "x", resp.Content)
}

func TestWrapMiddleware_AllEnabledStillDispatches(t *testing.T) {
	calls := 0
	base := agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		calls++
		return agent.NewMessage("agent", "ok"), nil
	})
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.RateLimit.Enabled = true
	cfg.Breaker.Enabled = true
	cfg.Cache.Enabled = true
	cfg.Retry.Enabled = true

	wrapped := wrapMiddleware("test", base, cfg)
	resp, err := wrapped.Process(context.Background(), agent.NewMessage("user", "hello"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 1, calls)
}
