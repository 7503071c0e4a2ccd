package protocolerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProtocolError_IsMatchesByCode(t *testing.T) {
	a := New(CircuitOpen, "breaker open for agent x", nil)
	b := New(CircuitOpen, "breaker open for agent y", map[string]interface{}{"agent": "y"})
	c := New(RateLimited, "too many requests", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestAgentTimeoutErr_CarriesNameAndTimeout(t *testing.T) {
	err := AgentTimeoutErr("worker-1", 2.5)
	assert.Equal(t, AgentTimeout, err.Code)
	assert.Equal(t, "worker-1", err.Details["agent_name"])
	assert.Equal(t, 2.5, err.Details["timeout"])
	assert.Contains(t, err.Error(), "worker-1")
}
