package retry

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

func TestRetrier_SucceedsAfterTransientFailures(t *testing.T) {
	var calls int64
	flaky := agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		n := atomic.AddInt64(&calls, 1)
		if n < 3 {
			return agent.Message{}, protocolerr.New(protocolerr.ConnectionFailed, "dropped", nil)
		}
		return agent.NewMessage("agent", "ok"), nil
	})

	r := New(flaky, Config{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond})

	msg, err := r.Process(context.Background(), agent.NewMessage("user", "x"))
	require.NoError(t, err)
	assert.Equal(t, "ok", msg.Content)
	assert.Equal(t, int64(3), calls)
	assert.Equal(t, int64(1), r.Metrics().Succeeded)
}

func TestRetrier_ExhaustsAttempts(t *testing.T) {
	var calls int64
	alwaysFails := agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		atomic.AddInt64(&calls, 1)
		return agent.Message{}, protocolerr.New(protocolerr.AgentTimeout, "slow", nil)
	})

	r := New(alwaysFails, Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	_, err := r.Process(context.Background(), agent.NewMessage("user", "x"))
	require.Error(t, err)
	assert.Equal(t, int64(3), calls)
	assert.Equal(t, int64(1), r.Metrics().ExhaustedRetries)
}

// TestRetrier_ShortCircuitsOnCircuitOpen verifies a CIRCUIT_OPEN error is
// not retried: the retrier gives up on the first attempt.
func TestRetrier_ShortCircuitsOnCircuitOpen(t *testing.T) {
	var calls int64
	open := agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		atomic.AddInt64(&calls, 1)
		return agent.Message{}, protocolerr.New(protocolerr.CircuitOpen, "open", nil)
	})

	r := New(open, Config{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	_, err := r.Process(context.Background(), agent.NewMessage("user", "x"))
	require.Error(t, err)
	assert.Equal(t, int64(1), calls)
	assert.Equal(t, int64(1), r.Metrics().ShortCircuited)
}

func TestRetrier_NonRetryableFailsFast(t *testing.T) {
	var calls int64
	bad := agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		atomic.AddInt64(&calls, 1)
		return agent.Message{}, protocolerr.New(protocolerr.InvalidMessage, "bad envelope", nil)
	})

	r := New(bad, Config{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	_, err := r.Process(context.Background(), agent.NewMessage("user", "x"))
	require.Error(t, err)
	assert.Equal(t, int64(1), calls)
}
