package batch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/agenkit-sub000/agent"
)

// TestBatcher_CoalescesConcurrentRequests verifies that concurrent calls
// land in the same batch and each resolves with its own result.
func TestBatcher_CoalescesConcurrentRequests(t *testing.T) {
	backend := agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		return agent.NewMessage("agent", msg.Content), nil
	})

	b := New(backend, Config{MaxBatchSize: 5, MaxWaitTime: 50 * time.Millisecond, MaxQueueSize: 20})

	var wg sync.WaitGroup
	results := make([]agent.Message, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := b.Process(context.Background(), agent.NewMessage("user", fmt.Sprintf("req-%d", i)))
			require.NoError(t, err)
			results[i] = msg
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("req-%d", i), results[i].Content)
	}

	m := b.Metrics()
	assert.GreaterOrEqual(t, m.TotalRequests, int64(5))
	assert.GreaterOrEqual(t, m.TotalBatches, int64(1))
	b.Shutdown()
}

// TestBatcher_PartialFailureDoesNotContaminateSiblings mirrors testable
// property 10: every enqueued request resolves with exactly one result,
// and one failing sibling doesn't break the others.
func TestBatcher_PartialFailureDoesNotContaminateSiblings(t *testing.T) {
	backend := agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		if msg.Content == "bad" {
			return agent.Message{}, fmt.Errorf("boom")
		}
		return agent.NewMessage("agent", msg.Content), nil
	})

	b := New(backend, Config{MaxBatchSize: 3, MaxWaitTime: 50 * time.Millisecond, MaxQueueSize: 10})

	var wg sync.WaitGroup
	errs := make([]error, 3)
	msgs := make([]agent.Message, 3)
	contents := []string{"good1", "bad", "good2"}
	for i, c := range contents {
		wg.Add(1)
		go func(i int, c string) {
			defer wg.Done()
			m, err := b.Process(context.Background(), agent.NewMessage("user", c))
			msgs[i], errs[i] = m, err
		}(i, c)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.Error(t, errs[1])
	require.NoError(t, errs[2])
	assert.Equal(t, "good1", msgs[0].Content)
	assert.Equal(t, "good2", msgs[2].Content)

	m := b.Metrics()
	assert.GreaterOrEqual(t, m.PartialBatches, int64(1))
	b.Shutdown()
}

func TestBatcher_QueueFullBackpressure(t *testing.T) {
	blocked := make(chan struct{})
	backend := agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		<-blocked
		return agent.NewMessage("agent", msg.Content), nil
	})

	b := New(backend, Config{MaxBatchSize: 1, MaxWaitTime: 10 * time.Millisecond, MaxQueueSize: 1})
	defer b.Shutdown()

	// "first" is taken by the collector and blocks in the backend; "second"
	// then occupies the queue's only slot, so "third" finds it full.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = b.Process(context.Background(), agent.NewMessage("user", "first"))
	}()
	time.Sleep(20 * time.Millisecond)
	go func() {
		defer wg.Done()
		_, _ = b.Process(context.Background(), agent.NewMessage("user", "second"))
	}()
	time.Sleep(20 * time.Millisecond)

	_, err := b.Process(context.Background(), agent.NewMessage("user", "third"))
	assert.Error(t, err)
	close(blocked)
	wg.Wait()
}
