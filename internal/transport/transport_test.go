package transport

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

func TestMemoryTransport_FramedRoundTrip(t *testing.T) {
	a, b := NewMemoryTransportPair()
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload := []byte("hello world")
	go func() {
		_ = a.SendFramed(ctx, payload)
	}()

	got, err := b.ReceiveFramed(ctx)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWriteReadFrame_OversizePayloadRejected(t *testing.T) {
	var buf bytes.Buffer
	big := make([]byte, MaxMessageSize+1)
	err := WriteFrame(&buf, big)
	require.Error(t, err)
	pe := err.(*protocolerr.ProtocolError)
	assert.Equal(t, protocolerr.MalformedPayload, pe.Code)

	// A header declaring MaxMessageSize+1 (0x00A00001) bytes is rejected on read.
	_, err = ReadFrame(bytes.NewReader([]byte{0x00, 0xA0, 0x00, 0x01}))
	require.Error(t, err)
	pe = err.(*protocolerr.ProtocolError)
	assert.Equal(t, protocolerr.MalformedPayload, pe.Code)
}

func TestReadFrame_ShortReadIsConnectionClosed(t *testing.T) {
	r := strings.NewReader("\x00\x00\x00\x05ab") // declares 5 bytes, supplies 2
	_, err := ReadFrame(r)
	require.Error(t, err)
	pe := err.(*protocolerr.ProtocolError)
	assert.Equal(t, protocolerr.ConnectionClosed, pe.Code)
}

func TestParse_Endpoints(t *testing.T) {
	cases := map[string]Endpoint{
		"unix:///tmp/x.sock":  {Scheme: "unix", Addr: "/tmp/x.sock"},
		"tcp://127.0.0.1:123": {Scheme: "tcp", Addr: "127.0.0.1:123"},
		"grpc://localhost:50051": {Scheme: "grpc", Addr: "localhost:50051"},
	}
	for in, want := range cases {
		got, err := Parse(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := Parse("not-a-url")
	require.Error(t, err)
}
