package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	e := NewRequest("process", "echo", map[string]interface{}{
		"message": EncodeMessage(agent.NewMessage("user", "hello")),
	})

	b, err := EncodeBytes(e)
	require.NoError(t, err)

	decoded, err := DecodeBytes(b)
	require.NoError(t, err)

	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, e.Type, decoded.Type)
	assert.Equal(t, e.Version, decoded.Version)
	assert.WithinDuration(t, e.Timestamp, decoded.Timestamp, time.Millisecond)
}

func TestEnvelope_Validate_MissingFields(t *testing.T) {
	cases := []struct {
		name string
		env  Envelope
		code protocolerr.Code
	}{
		{"missing version", Envelope{Type: TypeRequest, ID: "x", Payload: []byte("{}")}, protocolerr.InvalidMessage},
		{"bad version", Envelope{Version: "9.9", Type: TypeRequest, ID: "x", Payload: []byte("{}")}, protocolerr.UnsupportedVersion},
		{"missing type", Envelope{Version: ProtocolVersion, ID: "x", Payload: []byte("{}")}, protocolerr.InvalidMessage},
		{"bad type", Envelope{Version: ProtocolVersion, Type: "bogus", ID: "x", Payload: []byte("{}")}, protocolerr.InvalidMessage},
		{"missing id", Envelope{Version: ProtocolVersion, Type: TypeRequest, Payload: []byte("{}")}, protocolerr.InvalidMessage},
		{"missing payload", Envelope{Version: ProtocolVersion, Type: TypeRequest, ID: "x"}, protocolerr.InvalidMessage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.env.Validate()
			require.Error(t, err)
			pe, ok := err.(*protocolerr.ProtocolError)
			require.True(t, ok)
			assert.Equal(t, tc.code, pe.Code)
		})
	}
}

func TestDecodeMessage_DefaultsTimestamp(t *testing.T) {
	m, err := DecodeMessage(map[string]interface{}{"role": "user", "content": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "user", m.Role)
	assert.WithinDuration(t, time.Now().UTC(), m.Timestamp, time.Second)
}

func TestDecodeMessage_MissingRole(t *testing.T) {
	_, err := DecodeMessage(map[string]interface{}{"content": "hi"})
	require.Error(t, err)
	pe := err.(*protocolerr.ProtocolError)
	assert.Equal(t, protocolerr.MalformedPayload, pe.Code)
}

func TestToolResult_RoundTrip(t *testing.T) {
	errMsg := "boom"
	r := agent.ToolResult{Success: false, Error: &errMsg, Metadata: map[string]interface{}{"k": "v"}}
	wire := EncodeToolResult(r)
	decoded, err := DecodeToolResult(wire)
	require.NoError(t, err)
	assert.Equal(t, r.Success, decoded.Success)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, *r.Error, *decoded.Error)
}
