package transport

import (
	"context"
	"net"
)

// MemoryTransport is a byte-stream transport backed by an in-process
// net.Pipe, used for tests and for in-process agent composition without
// touching the network stack.
type MemoryTransport struct {
	streamTransport
}

// NewMemoryTransportPair returns two already-connected in-memory
// transports, analogous to original_source's create_memory_transport_pair:
// writes on one side are readable from the other.
func NewMemoryTransportPair() (*MemoryTransport, *MemoryTransport) {
	a, b := net.Pipe()
	ta := &MemoryTransport{streamTransport{conn: a, connected: true, dial: func(context.Context) (net.Conn, error) { return a, nil }}}
	tb := &MemoryTransport{streamTransport{conn: b, connected: true, dial: func(context.Context) (net.Conn, error) { return b, nil }}}
	return ta, tb
}
