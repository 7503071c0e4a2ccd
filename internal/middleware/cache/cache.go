// Package cache implements the request-fingerprint response cache of
// §4.L over github.com/hashicorp/golang-lru/v2/expirable, which supplies
// both the LRU eviction and the TTL expiry (including its own periodic
// sweep of expired entries, taking the place of the spec's hand-rolled
// every-100-requests sweep).
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/scttfrdmn/agenkit-sub000/agent"
)

// KeyFunc computes the cache key for a request message.
type KeyFunc func(agent.Message) string

// Config parameterizes the cache.
type Config struct {
	MaxSize    int
	DefaultTTL time.Duration
	KeyFunc    KeyFunc
}

// Metrics tracks hit/miss/invalidation counts.
type Metrics struct {
	Hits          int64
	Misses        int64
	Invalidations int64
}

// HitRate returns Hits / (Hits + Misses), or 0 if there have been no
// lookups yet.
func (m Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Hits) / float64(total)
}

// MissRate returns Misses / (Hits + Misses).
func (m Metrics) MissRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0
	}
	return float64(m.Misses) / float64(total)
}

// Cache wraps an agent, caching successful responses keyed by request
// fingerprint. Streaming callers should bypass the cache entirely (it
// only implements agent.Agent, not agent.Streamer).
type Cache struct {
	next agent.Agent
	cfg  Config
	lru  *expirable.LRU[string, agent.Message]

	mu      sync.Mutex
	metrics Metrics
}

// DefaultKey hashes the sorted-key JSON serialization of
// {role, content, metadata}, matching §4.L's default key generator.
// encoding/json already emits map keys in sorted order.
func DefaultKey(msg agent.Message) string {
	b, err := json.Marshal(map[string]interface{}{
		"role":     msg.Role,
		"content":  msg.Content,
		"metadata": msg.Metadata,
	})
	if err != nil {
		b = []byte(msg.Role)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// New wraps next with a TTL+LRU cache.
func New(next agent.Agent, cfg Config) *Cache {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = DefaultKey
	}
	return &Cache{
		next: next,
		cfg:  cfg,
		lru:  expirable.NewLRU[string, agent.Message](cfg.MaxSize, nil, cfg.DefaultTTL),
	}
}

// Process looks up the cached response for msg; on miss it releases no
// external lock (the LRU is internally synchronized) while calling next,
// then inserts the fresh response.
func (c *Cache) Process(ctx context.Context, msg agent.Message) (agent.Message, error) {
	key := c.cfg.KeyFunc(msg)

	if resp, ok := c.lru.Get(key); ok {
		c.mu.Lock()
		c.metrics.Hits++
		c.mu.Unlock()
		return resp, nil
	}
	c.mu.Lock()
	c.metrics.Misses++
	c.mu.Unlock()

	resp, err := c.next.Process(ctx, msg)
	if err != nil {
		return agent.Message{}, err
	}
	c.lru.Add(key, resp)
	return resp, nil
}

// Invalidate drops the entry for msg, or clears the whole cache if msg is
// nil.
func (c *Cache) Invalidate(msg *agent.Message) {
	c.mu.Lock()
	c.metrics.Invalidations++
	c.mu.Unlock()
	if msg == nil {
		c.lru.Purge()
		return
	}
	c.lru.Remove(c.cfg.KeyFunc(*msg))
}

// Size returns the current number of live (non-expired) entries.
func (c *Cache) Size() int { return c.lru.Len() }

// Metrics returns a snapshot of hit/miss/invalidation counters.
func (c *Cache) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}
