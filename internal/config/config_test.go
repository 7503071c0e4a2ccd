package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaultsWhenFileOmitsThem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_name: test-node
serve:
  endpoint: "unix:///tmp/a.sock"
`), 0o644))

	c, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "test-node", c.AppName)
	assert.Equal(t, "unix:///tmp/a.sock", c.Serve.Endpoint)
	assert.Equal(t, 30*time.Second, c.Serve.CallTimeout)
	assert.Equal(t, 90*time.Second, c.Registry.HeartbeatTimeout)
	assert.Equal(t, uint32(5), c.Breaker.FailureThreshold)
	assert.Equal(t, 1000, c.Cache.MaxSize)
	assert.Equal(t, uint(3), c.Retry.MaxAttempts)
}

func TestLoad_MissingFileFallsBackToPureDefaults(t *testing.T) {
	c, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "tcp://:9101", c.Serve.Endpoint)
	assert.Equal(t, 10, c.Batch.MaxQueueSize)
}

func TestLoad_RejectsNegativeHeartbeatTimeout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agentd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
registry:
  heartbeat_timeout: -1s
`), 0o644))

	_, err := Load(path, nil)
	assert.Error(t, err)
}
