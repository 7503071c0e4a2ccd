// Package breaker implements the 3-state circuit breaker middleware of
// §4.K over github.com/sony/gobreaker as the state-machine engine.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// State mirrors the spec's CLOSED/OPEN/HALF_OPEN vocabulary.
type State string

const (
	Closed   State = "CLOSED"
	Open     State = "OPEN"
	HalfOpen State = "HALF_OPEN"
)

// Config parameterizes the breaker.
type Config struct {
	FailureThreshold uint32
	SuccessThreshold uint32
	RecoveryTimeout  time.Duration
	Timeout          time.Duration
}

// Metrics tracks call outcomes and state transitions.
type Metrics struct {
	Total         int64
	Successful    int64
	Failed        int64
	RejectedOpen  int64
	StateChanges  map[string]int64
}

// CircuitBreaker wraps an agent with a per-call timeout and a 3-state
// fault-isolation wrapper.
type CircuitBreaker struct {
	next agent.Agent
	name string
	cfg  Config
	cb   *gobreaker.CircuitBreaker

	mu      sync.Mutex
	metrics Metrics
}

// New wraps next with a circuit breaker named name.
func New(next agent.Agent, name string, cfg Config) *CircuitBreaker {
	successThreshold := cfg.SuccessThreshold
	if successThreshold == 0 {
		successThreshold = 1
	}
	c := &CircuitBreaker{
		next:    next,
		name:    name,
		cfg:     cfg,
		metrics: Metrics{StateChanges: make(map[string]int64)},
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: successThreshold,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			c.mu.Lock()
			defer c.mu.Unlock()
			key := fmt.Sprintf("%s->%s", mapState(from), mapState(to))
			c.metrics.StateChanges[key]++
		},
	})
	return c
}

func mapState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return HalfOpen
	case gobreaker.StateOpen:
		return Open
	default:
		return Closed
	}
}

// State returns the breaker's current state.
func (c *CircuitBreaker) State() State { return mapState(c.cb.State()) }

// Metrics returns a snapshot of the breaker's counters.
func (c *CircuitBreaker) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := c.metrics
	cp.StateChanges = make(map[string]int64, len(c.metrics.StateChanges))
	for k, v := range c.metrics.StateChanges {
		cp.StateChanges[k] = v
	}
	return cp
}

// Process admits the call through the breaker, bounding it by the
// per-call timeout; a rejected-while-open call never invokes next.
func (c *CircuitBreaker) Process(ctx context.Context, msg agent.Message) (agent.Message, error) {
	c.mu.Lock()
	c.metrics.Total++
	c.mu.Unlock()

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.callWithTimeout(ctx, msg)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			c.mu.Lock()
			c.metrics.RejectedOpen++
			c.mu.Unlock()
			return agent.Message{}, protocolerr.New(protocolerr.CircuitOpen, fmt.Sprintf("circuit %q is open", c.name), map[string]interface{}{"agent_name": c.name})
		}
		c.mu.Lock()
		c.metrics.Failed++
		c.mu.Unlock()
		return agent.Message{}, err
	}
	c.mu.Lock()
	c.metrics.Successful++
	c.mu.Unlock()
	return result.(agent.Message), nil
}

func (c *CircuitBreaker) callWithTimeout(ctx context.Context, msg agent.Message) (agent.Message, error) {
	if c.cfg.Timeout <= 0 {
		return c.next.Process(ctx, msg)
	}
	cctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	type outcome struct {
		msg agent.Message
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		m, err := c.next.Process(cctx, msg)
		ch <- outcome{m, err}
	}()

	select {
	case <-cctx.Done():
		return agent.Message{}, protocolerr.AgentTimeoutErr(c.name, c.cfg.Timeout.Seconds())
	case o := <-ch:
		return o.msg, o.err
	}
}
