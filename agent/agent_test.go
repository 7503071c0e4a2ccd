package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_WithMetadata_DoesNotMutateOriginal(t *testing.T) {
	m := NewMessage("user", "hi").WithMetadata("a", 1)
	tagged := m.WithMetadata("b", 2)

	assert.Equal(t, map[string]interface{}{"a": 1}, m.Metadata)
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2}, tagged.Metadata)
}

func TestMessage_Clone_IsIndependentOfSource(t *testing.T) {
	m := NewMessage("user", "hi").WithMetadata("k", "v")
	c := m.Clone()
	c.Metadata["k"] = "changed"

	assert.Equal(t, "v", m.Metadata["k"])
	assert.Equal(t, "changed", c.Metadata["k"])
}

func TestFunc_ImplementsAgent(t *testing.T) {
	var a Agent = Func(func(ctx context.Context, msg Message) (Message, error) {
		return msg.WithMetadata("seen", true), nil
	})

	resp, err := a.Process(context.Background(), NewMessage("user", "x"))
	assert.NoError(t, err)
	assert.Equal(t, true, resp.Metadata["seen"])
}
