// Package batch implements the request-coalescing middleware of §4.M,
// grounded on agenkit/middleware/batching.py's collect/process loop:
// a background goroutine collects a batch bounded by size or wait time
// from a bounded channel, then dispatches every item concurrently and
// resolves each caller's own result independently.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scttfrdmn/agenkit-sub000/agent"
)

// Config parameterizes the batcher.
type Config struct {
	MaxBatchSize int
	MaxWaitTime  time.Duration
	MaxQueueSize int
}

// Metrics tracks batch composition and outcome counts.
type Metrics struct {
	TotalRequests    int64
	TotalBatches     int64
	SuccessfulBatches int64
	FailedBatches    int64
	PartialBatches   int64
	TotalWaitTime    time.Duration
	MinBatchSize     int
	MaxBatchSize     int
}

// AvgBatchSize returns TotalRequests / TotalBatches, or 0 if no batch has
// run yet.
func (m Metrics) AvgBatchSize() float64 {
	if m.TotalBatches == 0 {
		return 0
	}
	return float64(m.TotalRequests) / float64(m.TotalBatches)
}

// AvgWaitTime returns TotalWaitTime / TotalRequests, or 0 if no request
// has been processed yet.
func (m Metrics) AvgWaitTime() time.Duration {
	if m.TotalRequests == 0 {
		return 0
	}
	return m.TotalWaitTime / time.Duration(m.TotalRequests)
}

type item struct {
	msg       agent.Message
	enqueued  time.Time
	resultCh  chan result
}

type result struct {
	msg agent.Message
	err error
}

// Batcher wraps an agent, coalescing concurrent Process calls into
// batches dispatched together to the wrapped agent.
type Batcher struct {
	next agent.Agent
	cfg  Config
	q    chan *item

	mu      sync.Mutex
	metrics Metrics

	startOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New wraps next with a batching queue. The background collector starts
// lazily on the first Process call.
func New(next agent.Agent, cfg Config) *Batcher {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 10
	}
	if cfg.MaxWaitTime <= 0 {
		cfg.MaxWaitTime = 100 * time.Millisecond
	}
	if cfg.MaxQueueSize < cfg.MaxBatchSize {
		cfg.MaxQueueSize = cfg.MaxBatchSize
	}
	return &Batcher{
		next:   next,
		cfg:    cfg,
		q:      make(chan *item, cfg.MaxQueueSize),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (b *Batcher) ensureStarted() {
	b.startOnce.Do(func() {
		go b.run()
	})
}

// Process enqueues msg and blocks until it has been resolved as part of
// a batch, or until ctx is cancelled.
func (b *Batcher) Process(ctx context.Context, msg agent.Message) (agent.Message, error) {
	b.ensureStarted()

	it := &item{msg: msg, enqueued: time.Now(), resultCh: make(chan result, 1)}

	select {
	case b.q <- it:
	case <-time.After(time.Second):
		return agent.Message{}, fmt.Errorf("batch: enqueue timed out, queue is full (size=%d)", len(b.q))
	case <-ctx.Done():
		return agent.Message{}, ctx.Err()
	}

	select {
	case r := <-it.resultCh:
		return r.msg, r.err
	case <-ctx.Done():
		return agent.Message{}, ctx.Err()
	}
}

// Shutdown stops accepting the collector loop, flushing any items still
// queued before returning.
func (b *Batcher) Shutdown() {
	select {
	case <-b.stopCh:
	default:
		close(b.stopCh)
	}
	<-b.doneCh
}

func (b *Batcher) run() {
	defer close(b.doneCh)
	for {
		select {
		case <-b.stopCh:
			b.flush()
			return
		default:
		}

		items := b.collect()
		if len(items) > 0 {
			b.dispatch(items)
		}
	}
}

func (b *Batcher) collect() []*item {
	var batch []*item

	select {
	case first := <-b.q:
		batch = append(batch, first)
	case <-time.After(100 * time.Millisecond):
		return nil
	case <-b.stopCh:
		return nil
	}

	deadline := time.Now().Add(b.cfg.MaxWaitTime)
	for len(batch) < b.cfg.MaxBatchSize {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		select {
		case it := <-b.q:
			batch = append(batch, it)
		case <-time.After(remaining):
			return batch
		}
	}
	return batch
}

func (b *Batcher) flush() {
	for {
		var batch []*item
		for len(batch) < b.cfg.MaxBatchSize {
			select {
			case it := <-b.q:
				batch = append(batch, it)
			default:
				goto drained
			}
		}
	drained:
		if len(batch) == 0 {
			return
		}
		b.dispatch(batch)
	}
}

func (b *Batcher) dispatch(items []*item) {
	size := len(items)

	b.mu.Lock()
	b.metrics.TotalBatches++
	b.metrics.TotalRequests += int64(size)
	if b.metrics.MinBatchSize == 0 || size < b.metrics.MinBatchSize {
		b.metrics.MinBatchSize = size
	}
	if size > b.metrics.MaxBatchSize {
		b.metrics.MaxBatchSize = size
	}
	now := time.Now()
	for _, it := range items {
		b.metrics.TotalWaitTime += now.Sub(it.enqueued)
	}
	b.mu.Unlock()

	var wg sync.WaitGroup
	var successes, failures int64
	var mu sync.Mutex
	wg.Add(size)
	for _, it := range items {
		it := it
		go func() {
			defer wg.Done()
			msg, err := b.next.Process(context.Background(), it.msg)
			it.resultCh <- result{msg: msg, err: err}
			mu.Lock()
			if err != nil {
				failures++
			} else {
				successes++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	b.mu.Lock()
	switch {
	case failures == 0:
		b.metrics.SuccessfulBatches++
	case successes == 0:
		b.metrics.FailedBatches++
	default:
		b.metrics.PartialBatches++
	}
	b.mu.Unlock()
}

// Metrics returns a snapshot of batching counters.
func (b *Batcher) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}
