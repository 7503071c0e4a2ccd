package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// streamTransport is the shared implementation backing the Unix, TCP, and
// in-memory byte-stream transports: a net.Conn (or net.Conn-shaped pipe)
// plus framing derived via WriteFrame/ReadFrame.
type streamTransport struct {
	mu        sync.Mutex
	conn      net.Conn
	connected bool
	dial      func(ctx context.Context) (net.Conn, error)
}

func (t *streamTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return nil
	}
	conn, err := t.dial(ctx)
	if err != nil {
		return protocolerr.New(protocolerr.ConnectionFailed, err.Error(), nil)
	}
	t.conn = conn
	t.connected = true
	return nil
}

func (t *streamTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil
	}
	t.connected = false
	conn := t.conn
	t.conn = nil
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (t *streamTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *streamTransport) conn_() (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected || t.conn == nil {
		return nil, protocolerr.New(protocolerr.ConnectionClosed, "transport is not connected", nil)
	}
	return t.conn, nil
}

func (t *streamTransport) Send(ctx context.Context, data []byte) error {
	conn, err := t.conn_()
	if err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
		defer conn.SetWriteDeadline(time.Time{})
	}
	if _, err := conn.Write(data); err != nil {
		_ = t.Close()
		return protocolerr.New(protocolerr.ConnectionClosed, err.Error(), nil)
	}
	return nil
}

func (t *streamTransport) Receive(ctx context.Context) ([]byte, error) {
	conn, err := t.conn_()
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
		defer conn.SetReadDeadline(time.Time{})
	}
	buf := make([]byte, 64*1024)
	n, err := conn.Read(buf)
	if err != nil {
		_ = t.Close()
		return nil, protocolerr.New(protocolerr.ConnectionClosed, err.Error(), nil)
	}
	return buf[:n], nil
}

func (t *streamTransport) SendFramed(ctx context.Context, data []byte) error {
	conn, err := t.conn_()
	if err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
		defer conn.SetWriteDeadline(time.Time{})
	}
	if err := WriteFrame(conn, data); err != nil {
		_ = t.Close()
		return err
	}
	return nil
}

func (t *streamTransport) ReceiveFramed(ctx context.Context) ([]byte, error) {
	conn, err := t.conn_()
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
		defer conn.SetReadDeadline(time.Time{})
	} else {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		defer conn.SetReadDeadline(time.Time{})
	}
	data, err := ReadFrame(conn)
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	return data, nil
}
