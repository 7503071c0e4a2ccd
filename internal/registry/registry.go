// Package registry implements the in-memory agent registry: name →
// registration map, heartbeat updates, and background staleness pruning.
package registry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// Registration is a (name, endpoint, capabilities, metadata, timestamps)
// record maintained by the registry.
type Registration struct {
	Name           string
	Endpoint       string
	Capabilities   map[string]string
	Metadata       map[string]interface{}
	RegisteredAt   time.Time
	LastHeartbeat  time.Time
}

// IsStale reports whether reg has not heartbeated within timeout, relative
// to now.
func (reg Registration) IsStale(now time.Time, timeout time.Duration) bool {
	return now.Sub(reg.LastHeartbeat) > timeout
}

// Registry is an in-memory name -> Registration map with heartbeat-based
// staleness pruning. All operations are serialized under a single mutex.
type Registry struct {
	heartbeatTimeout time.Duration
	pruneInterval    time.Duration

	mu      sync.Mutex
	entries map[string]Registration

	cancel context.CancelFunc
	done    chan struct{}
}

// New builds a Registry with the given heartbeat staleness timeout. A
// zero pruneInterval defaults to 60s, matching §4.I.
func New(heartbeatTimeout, pruneInterval time.Duration) *Registry {
	if pruneInterval <= 0 {
		pruneInterval = 60 * time.Second
	}
	return &Registry{
		heartbeatTimeout: heartbeatTimeout,
		pruneInterval:    pruneInterval,
		entries:          make(map[string]Registration),
	}
}

// Register overwrites any existing registration with the same name.
func (r *Registry) Register(reg Registration) error {
	if reg.Name == "" {
		return protocolerr.New(protocolerr.RegistrationFailed, "registration name must not be empty", nil)
	}
	now := time.Now().UTC()
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = now
	}
	if reg.LastHeartbeat.IsZero() {
		reg.LastHeartbeat = reg.RegisteredAt
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[reg.Name] = reg
	return nil
}

// Unregister removes name, a no-op if it is absent.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// Lookup returns the registration for name, or false if absent.
func (r *Registry) Lookup(name string) (Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.entries[name]
	return reg, ok
}

// List returns a snapshot of all current registrations.
func (r *Registry) List() []Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Registration, 0, len(r.entries))
	for _, reg := range r.entries {
		out = append(out, reg)
	}
	return out
}

// Heartbeat updates name's LastHeartbeat to now; an unknown name is a
// not-found error.
func (r *Registry) Heartbeat(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.entries[name]
	if !ok {
		return protocolerr.New(protocolerr.AgentNotFound, "agent not registered: "+name, map[string]interface{}{"name": name})
	}
	reg.LastHeartbeat = time.Now().UTC()
	r.entries[name] = reg
	return nil
}

// PruneStale removes every entry whose staleness exceeds the configured
// heartbeat timeout and returns the count removed.
func (r *Registry) PruneStale() int {
	now := time.Now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for name, reg := range r.entries {
		if reg.IsStale(now, r.heartbeatTimeout) {
			delete(r.entries, name)
			removed++
		}
	}
	return removed
}

// Start launches the background prune loop, running every pruneInterval
// until Stop is called.
func (r *Registry) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.PruneStale(); n > 0 {
					log.Printf("registry: pruned %d stale agents", n)
				}
			}
		}
	}()
}

// Stop cancels the background prune loop and waits for it to exit.
func (r *Registry) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

// HeartbeatLoop periodically calls Heartbeat(name) every interval until
// ctx is cancelled or the agent is no longer registered, matching
// original_source's module-level heartbeat_loop helper.
func HeartbeatLoop(ctx context.Context, r *Registry, name string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Heartbeat(name); err != nil {
				log.Printf("registry: heartbeat loop for %q stopping: %v", name, err)
				return
			}
		}
	}
}
