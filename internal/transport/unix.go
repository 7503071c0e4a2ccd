package transport

import (
	"context"
	"net"
)

// UnixTransport connects to a Unix domain socket endpoint.
type UnixTransport struct {
	streamTransport
	path string
}

// NewUnixTransport builds a client transport for unix://PATH.
func NewUnixTransport(path string) *UnixTransport {
	t := &UnixTransport{path: path}
	t.dial = func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", path)
	}
	return t
}
