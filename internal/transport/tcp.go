package transport

import (
	"context"
	"net"
)

// TCPTransport connects to a tcp://HOST:PORT endpoint.
type TCPTransport struct {
	streamTransport
	addr string
}

// NewTCPTransport builds a client transport for tcp://HOST:PORT.
func NewTCPTransport(addr string) *TCPTransport {
	t := &TCPTransport{addr: addr}
	t.dial = func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", addr)
	}
	return t
}
