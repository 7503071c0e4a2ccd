package main

import (
	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/internal/config"
	"github.com/scttfrdmn/agenkit-sub000/internal/middleware/batch"
	"github.com/scttfrdmn/agenkit-sub000/internal/middleware/breaker"
	"github.com/scttfrdmn/agenkit-sub000/internal/middleware/cache"
	"github.com/scttfrdmn/agenkit-sub000/internal/middleware/ratelimit"
	"github.com/scttfrdmn/agenkit-sub000/internal/middleware/retry"
)

// wrapMiddleware wraps next in every enabled middleware from cfg, in the
// order a caller's request actually flows through them: rate limiting
// admits or rejects first, batching coalesces next, the cache short-
// circuits repeat requests, retry re-attempts failed calls, and the
// circuit breaker sits closest to next, so a retry attempt made while the
// breaker is open fails fast with CIRCUIT_OPEN instead of calling next.
func wrapMiddleware(name string, next agent.Agent, cfg *config.Config) agent.Agent {
	wrapped := next

	if cfg.Breaker.Enabled {
		wrapped = breaker.New(wrapped, name, breaker.Config{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Breaker.SuccessThreshold,
			RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
			Timeout:          cfg.Breaker.Timeout,
		})
	}
	if cfg.Retry.Enabled {
		wrapped = retry.New(wrapped, retry.Config{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
		})
	}
	if cfg.Cache.Enabled {
		wrapped = cache.New(wrapped, cache.Config{
			MaxSize:    cfg.Cache.MaxSize,
			DefaultTTL: cfg.Cache.DefaultTTL,
		})
	}
	if cfg.Batch.Enabled {
		wrapped = batch.New(wrapped, batch.Config{
			MaxBatchSize: cfg.Batch.MaxBatchSize,
			MaxWaitTime:  cfg.Batch.MaxWaitTime,
			MaxQueueSize: cfg.Batch.MaxQueueSize,
		})
	}
	if cfg.RateLimit.Enabled {
		wrapped = ratelimit.New(wrapped, ratelimit.Config{
			Rate:             cfg.RateLimit.Rate,
			Capacity:         cfg.RateLimit.Capacity,
			TokensPerRequest: cfg.RateLimit.TokensPerRequest,
			Wait:             cfg.RateLimit.Wait,
		})
	}
	return wrapped
}
