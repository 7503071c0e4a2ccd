package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/internal/remote"
	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

func echoAgent() agent.Agent {
	return agent.Func(func(ctx context.Context, msg agent.Message) (agent.Message, error) {
		return agent.NewMessage("agent", "Echo: "+fmt.Sprint(msg.Content)), nil
	})
}

// TestUnixRoundTrip_S1 mirrors scenario S1.
func TestUnixRoundTrip_S1(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "x.sock")
	la := New(echoAgent(), "unix://"+sock)
	require.NoError(t, la.Start(context.Background()))
	defer la.Stop(context.Background())

	time.Sleep(20 * time.Millisecond)

	ra, err := remote.Dial("echo", "unix://"+sock, time.Second)
	require.NoError(t, err)
	defer ra.Close()

	resp, err := ra.Process(context.Background(), agent.NewMessage("user", "Hello"))
	require.NoError(t, err)
	assert.Equal(t, "Echo: Hello", resp.Content)
}

type chunkyAgent struct{}

func (chunkyAgent) Process(ctx context.Context, msg agent.Message) (agent.Message, error) {
	return agent.NewMessage("agent", "n/a"), nil
}

func (chunkyAgent) Stream(ctx context.Context, msg agent.Message) (<-chan agent.Message, <-chan error) {
	chunks := make(chan agent.Message)
	errCh := make(chan error, 1)
	go func() {
		defer close(chunks)
		for i := 0; i < 5; i++ {
			chunks <- agent.NewMessage("agent", fmt.Sprintf("Chunk %d: %v", i, msg.Content))
		}
		errCh <- nil
	}()
	return chunks, errCh
}

// TestUnixStreaming_S2 mirrors scenario S2.
func TestUnixStreaming_S2(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "stream.sock")
	la := New(chunkyAgent{}, "unix://"+sock)
	require.NoError(t, la.Start(context.Background()))
	defer la.Stop(context.Background())

	time.Sleep(20 * time.Millisecond)

	ra, err := remote.Dial("chunky", "unix://"+sock, time.Second)
	require.NoError(t, err)
	defer ra.Close()

	chunks, errCh := ra.Stream(context.Background(), agent.NewMessage("user", "t"))
	var got []string
	for c := range chunks {
		got = append(got, fmt.Sprint(c.Content))
	}
	require.NoError(t, <-errCh)
	require.Len(t, got, 5)
	assert.Equal(t, "Chunk 0: t", got[0])
	assert.Equal(t, "Chunk 4: t", got[4])
}

type slowAgent struct{}

func (slowAgent) Process(ctx context.Context, msg agent.Message) (agent.Message, error) {
	select {
	case <-time.After(2 * time.Second):
		return agent.NewMessage("agent", "late"), nil
	case <-ctx.Done():
		return agent.Message{}, ctx.Err()
	}
}

// TestTimeout_S3 mirrors scenario S3: a slow agent, a client with a 500ms
// timeout, expecting AGENT_TIMEOUT and a server that remains healthy for
// the next client.
func TestTimeout_S3(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "slow.sock")
	la := New(slowAgent{}, "unix://"+sock)
	require.NoError(t, la.Start(context.Background()))
	defer la.Stop(context.Background())

	time.Sleep(20 * time.Millisecond)

	ra, err := remote.Dial("slow", "unix://"+sock, 500*time.Millisecond)
	require.NoError(t, err)
	defer ra.Close()

	_, err = ra.Process(context.Background(), agent.NewMessage("user", "x"))
	require.Error(t, err)
	pe, ok := err.(*protocolerr.ProtocolError)
	require.True(t, ok)
	assert.Equal(t, protocolerr.AgentTimeout, pe.Code)

	// The server should still be reachable for a fresh client even though
	// the first one gave up waiting on a still-running handler. This client
	// allows enough time for the slow agent's 2s reply.
	ra2, err := remote.Dial("slow2", "unix://"+sock, 3*time.Second)
	require.NoError(t, err)
	defer ra2.Close()
	resp, err := ra2.Process(context.Background(), agent.NewMessage("user", "ping"))
	require.NoError(t, err)
	assert.Equal(t, "late", resp.Content)
}
