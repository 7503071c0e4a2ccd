package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

func echoAgent() agent.Agent {
	return agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		return agent.NewMessage("agent", msg.Content), nil
	})
}

// TestLimiter_Burst_S6 mirrors scenario S6's burst: rate=10/s, capacity=5;
// five immediate calls succeed without waiting. The limiter runs in
// fail-fast mode here, so the sixth is rejected with RATE_LIMITED instead
// of blocking.
func TestLimiter_Burst_S6(t *testing.T) {
	l := New(echoAgent(), Config{Rate: 10, Capacity: 5, TokensPerRequest: 1, Wait: false})

	for i := 0; i < 5; i++ {
		_, err := l.Process(context.Background(), agent.NewMessage("user", "x"))
		require.NoError(t, err)
	}

	_, err := l.Process(context.Background(), agent.NewMessage("user", "x"))
	require.Error(t, err)
	pe := err.(*protocolerr.ProtocolError)
	assert.Equal(t, protocolerr.RateLimited, pe.Code)
}

func TestLimiter_WaitMode_AdmitsAfterDelay(t *testing.T) {
	l := New(echoAgent(), Config{Rate: 20, Capacity: 1, TokensPerRequest: 1, Wait: true})

	_, err := l.Process(context.Background(), agent.NewMessage("user", "x"))
	require.NoError(t, err)

	start := time.Now()
	_, err = l.Process(context.Background(), agent.NewMessage("user", "x"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}
