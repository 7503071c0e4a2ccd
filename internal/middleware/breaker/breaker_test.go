package breaker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// TestCircuitBreaker_OpensAndRecovers_S4 mirrors scenario S4.
func TestCircuitBreaker_OpensAndRecovers_S4(t *testing.T) {
	var calls int64
	flaky := agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		n := atomic.AddInt64(&calls, 1)
		if n <= 3 {
			return agent.Message{}, protocolerr.New(protocolerr.InternalError, "boom", nil)
		}
		return agent.NewMessage("agent", "ok"), nil
	})

	cb := New(flaky, "flaky", Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		RecoveryTimeout:  100 * time.Millisecond,
		Timeout:          time.Second,
	})

	for i := 0; i < 3; i++ {
		_, err := cb.Process(context.Background(), agent.NewMessage("user", "x"))
		require.Error(t, err)
	}
	assert.Equal(t, Open, cb.State())

	_, err := cb.Process(context.Background(), agent.NewMessage("user", "x"))
	require.Error(t, err)
	pe := err.(*protocolerr.ProtocolError)
	assert.Equal(t, protocolerr.CircuitOpen, pe.Code)

	time.Sleep(110 * time.Millisecond)

	_, err = cb.Process(context.Background(), agent.NewMessage("user", "x"))
	require.NoError(t, err)
	assert.Equal(t, HalfOpen, cb.State())

	_, err = cb.Process(context.Background(), agent.NewMessage("user", "x"))
	require.NoError(t, err)
	assert.Equal(t, Closed, cb.State())
}

func TestCircuitBreaker_TimeoutCountsAsFailure(t *testing.T) {
	slow := agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		select {
		case <-ctx.Done():
			return agent.Message{}, ctx.Err()
		case <-time.After(2 * time.Second):
			return agent.NewMessage("agent", "late"), nil
		}
	})

	cb := New(slow, "slow", Config{FailureThreshold: 1, SuccessThreshold: 1, RecoveryTimeout: time.Second, Timeout: 50 * time.Millisecond})

	_, err := cb.Process(context.Background(), agent.NewMessage("user", "x"))
	require.Error(t, err)
	pe := err.(*protocolerr.ProtocolError)
	assert.Equal(t, protocolerr.AgentTimeout, pe.Code)
	assert.Equal(t, Open, cb.State())
}
