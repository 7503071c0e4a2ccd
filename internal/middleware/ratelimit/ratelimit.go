// Package ratelimit implements the token-bucket admission middleware of
// §4.J, built on golang.org/x/time/rate as the refill/admission engine.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// Config parameterizes the limiter.
type Config struct {
	Rate             float64 // tokens/sec, > 0
	Capacity         int     // burst, >= 1
	TokensPerRequest int     // >= 1, <= Capacity
	Wait             bool    // true: block for tokens; false: fail fast
}

// Metrics tracks admission counts.
type Metrics struct {
	Total    int64
	Allowed  int64
	Rejected int64
}

// Limiter wraps an agent with token-bucket admission control.
type Limiter struct {
	next agent.Agent
	cfg  Config
	lim  *rate.Limiter

	mu      sync.Mutex
	metrics Metrics
}

// New wraps next with a token bucket configured by cfg.
func New(next agent.Agent, cfg Config) *Limiter {
	if cfg.TokensPerRequest <= 0 {
		cfg.TokensPerRequest = 1
	}
	return &Limiter{
		next: next,
		cfg:  cfg,
		lim:  rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Capacity),
	}
}

// Process admits the call per the configured policy, then delegates to
// the wrapped agent outside of any lock.
func (l *Limiter) Process(ctx context.Context, msg agent.Message) (agent.Message, error) {
	l.mu.Lock()
	l.metrics.Total++
	l.mu.Unlock()

	if l.cfg.Wait {
		if err := l.lim.WaitN(ctx, l.cfg.TokensPerRequest); err != nil {
			l.mu.Lock()
			l.metrics.Rejected++
			l.mu.Unlock()
			return agent.Message{}, protocolerr.New(protocolerr.RateLimited, "rate limiter wait cancelled: "+err.Error(), nil)
		}
	} else if !l.lim.AllowN(time.Now(), l.cfg.TokensPerRequest) {
		l.mu.Lock()
		l.metrics.Rejected++
		l.mu.Unlock()
		return agent.Message{}, protocolerr.New(protocolerr.RateLimited, "rate limit exceeded", map[string]interface{}{
			"rate": l.cfg.Rate, "capacity": l.cfg.Capacity,
		})
	}

	l.mu.Lock()
	l.metrics.Allowed++
	l.mu.Unlock()

	return l.next.Process(ctx, msg)
}

// Metrics returns a snapshot of admission counters.
func (l *Limiter) Metrics() Metrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.metrics
}
