// Package retry implements the circuit-breaker-aware retry middleware
// of §4.O over github.com/avast/retry-go/v4. It is composed outside any
// breaker.CircuitBreaker wrapped in the same chain: a CIRCUIT_OPEN error
// is marked retry.Unrecoverable so an open breaker short-circuits the
// whole retry loop on the first attempt instead of waiting out a full
// backoff schedule against a call that cannot possibly succeed.
package retry

import (
	"context"
	"errors"
	"time"

	retrygo "github.com/avast/retry-go/v4"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// Config parameterizes the retry loop.
type Config struct {
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Retryable reports whether err should trigger another attempt. If
	// nil, DefaultRetryable is used.
	Retryable func(error) bool
}

// Metrics tracks attempt and outcome counts.
type Metrics struct {
	TotalCalls      int64
	TotalAttempts   int64
	Succeeded       int64
	ExhaustedRetries int64
	ShortCircuited  int64
}

// DefaultRetryable retries transient connection errors and AGENT_TIMEOUT /
// AGENT_UNAVAILABLE, but never CIRCUIT_OPEN, RATE_LIMITED, or protocol
// errors that indicate a bug rather than a transient condition.
func DefaultRetryable(err error) bool {
	var pe *protocolerr.ProtocolError
	if !errors.As(err, &pe) {
		return true
	}
	switch pe.Code {
	case protocolerr.ConnectionFailed, protocolerr.ConnectionTimeout, protocolerr.ConnectionClosed,
		protocolerr.AgentTimeout, protocolerr.AgentUnavailable:
		return true
	default:
		return false
	}
}

// Retrier wraps an agent, retrying failed calls per Config.
type Retrier struct {
	next agent.Agent
	cfg  Config

	metrics Metrics
}

// New wraps next with a retry loop.
func New(next agent.Agent, cfg Config) *Retrier {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	if cfg.Retryable == nil {
		cfg.Retryable = DefaultRetryable
	}
	return &Retrier{next: next, cfg: cfg}
}

// Process retries next.Process until it succeeds, a non-retryable error
// is returned, or MaxAttempts is exhausted.
func (r *Retrier) Process(ctx context.Context, msg agent.Message) (agent.Message, error) {
	r.metrics.TotalCalls++

	var resp agent.Message
	var unrecoverable bool
	err := retrygo.Do(
		func() error {
			r.metrics.TotalAttempts++
			var callErr error
			resp, callErr = r.next.Process(ctx, msg)
			if callErr == nil {
				return nil
			}

			var pe *protocolerr.ProtocolError
			if errors.As(callErr, &pe) && pe.Code == protocolerr.CircuitOpen {
				r.metrics.ShortCircuited++
				unrecoverable = true
				return retrygo.Unrecoverable(callErr)
			}
			if !r.cfg.Retryable(callErr) {
				unrecoverable = true
				return retrygo.Unrecoverable(callErr)
			}
			return callErr
		},
		retrygo.Context(ctx),
		retrygo.Attempts(r.cfg.MaxAttempts),
		retrygo.Delay(r.cfg.InitialDelay),
		retrygo.MaxDelay(r.cfg.MaxDelay),
		retrygo.DelayType(retrygo.BackOffDelay),
		retrygo.LastErrorOnly(true),
	)
	if err != nil {
		if !unrecoverable {
			r.metrics.ExhaustedRetries++
		}
		return agent.Message{}, err
	}
	r.metrics.Succeeded++
	return resp, nil
}

// Metrics returns a snapshot of retry counters.
func (r *Retrier) Metrics() Metrics { return r.metrics }
