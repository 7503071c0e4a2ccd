package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRegistry_PruneStale_S7 mirrors spec scenario S7: heartbeat_timeout
// = 0.2s, register a1/a2, heartbeat only a1 at 0.1s, prune at 0.25s.
func TestRegistry_PruneStale_S7(t *testing.T) {
	r := New(200*time.Millisecond, time.Hour)

	require.NoError(t, r.Register(Registration{Name: "a1", Endpoint: "tcp://localhost:1"}))
	require.NoError(t, r.Register(Registration{Name: "a2", Endpoint: "tcp://localhost:2"}))

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, r.Heartbeat("a1"))

	time.Sleep(150 * time.Millisecond) // total elapsed ~0.25s since registration

	removed := r.PruneStale()
	assert.Equal(t, 1, removed)

	_, ok := r.Lookup("a1")
	assert.True(t, ok)
	_, ok = r.Lookup("a2")
	assert.False(t, ok)
}

func TestRegistry_Register_EmptyNameRejected(t *testing.T) {
	r := New(time.Minute, time.Hour)
	err := r.Register(Registration{Name: ""})
	require.Error(t, err)
}

func TestRegistry_Heartbeat_UnknownNameNotFound(t *testing.T) {
	r := New(time.Minute, time.Hour)
	err := r.Heartbeat("ghost")
	require.Error(t, err)
}

func TestHeartbeatLoop_StopsWhenUnregistered(t *testing.T) {
	r := New(time.Minute, time.Hour)
	require.NoError(t, r.Register(Registration{Name: "a1", Endpoint: "tcp://localhost:1"}))
	r.Unregister("a1")

	done := make(chan struct{})
	go func() {
		HeartbeatLoop(context.Background(), r, "a1", 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("heartbeat loop did not stop after unregister")
	}
}
