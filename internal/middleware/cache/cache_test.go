package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/agenkit-sub000/agent"
)

// TestCache_LRUAndTTL_S5 mirrors scenario S5: max_size=2, ttl=0.2s. Put
// A, B; lookup A (hit); put C (evicts B, not A, since A was touched most
// recently); sleep 0.25s; lookup A -> miss (expired).
func TestCache_LRUAndTTL_S5(t *testing.T) {
	var calls int64
	backend := agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		atomic.AddInt64(&calls, 1)
		return agent.NewMessage("agent", msg.Content), nil
	})

	c := New(backend, Config{MaxSize: 2, DefaultTTL: 200 * time.Millisecond})

	a := agent.NewMessage("user", "A")
	b := agent.NewMessage("user", "B")
	d := agent.NewMessage("user", "C")

	_, err := c.Process(context.Background(), a)
	require.NoError(t, err)
	_, err = c.Process(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls)

	_, err = c.Process(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls, "A should be a cache hit")

	_, err = c.Process(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls)
	assert.LessOrEqual(t, c.Size(), 2)

	time.Sleep(250 * time.Millisecond)

	_, err = c.Process(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(4), calls, "A should have expired")

	m := c.Metrics()
	assert.GreaterOrEqual(t, m.Hits, int64(1))
}

func TestCache_Invalidate(t *testing.T) {
	var calls int64
	backend := agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		atomic.AddInt64(&calls, 1)
		return agent.NewMessage("agent", msg.Content), nil
	})
	c := New(backend, Config{MaxSize: 10, DefaultTTL: time.Minute})

	msg := agent.NewMessage("user", "x")
	_, err := c.Process(context.Background(), msg)
	require.NoError(t, err)
	_, err = c.Process(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls)

	c.Invalidate(&msg)

	_, err = c.Process(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls)
}
