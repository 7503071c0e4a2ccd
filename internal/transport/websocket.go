package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// WebSocketConfig configures reconnect backoff and keepalive for a
// WebSocketTransport.
type WebSocketConfig struct {
	InitialRetryDelay time.Duration
	MaxRetries        int
	PingInterval      time.Duration
	PingTimeout       time.Duration
}

// DefaultWebSocketConfig matches original_source's websocket_transport.py
// defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		InitialRetryDelay: 500 * time.Millisecond,
		MaxRetries:        5,
		PingInterval:      20 * time.Second,
		PingTimeout:       10 * time.Second,
	}
}

// WebSocketTransport treats each binary WebSocket message as exactly one
// framed envelope. It reconnects transparently on connection loss using
// exponential backoff, and exposes a ReceiveExactly helper backed by an
// internal byte buffer for callers that want to treat it as a byte stream.
type WebSocketTransport struct {
	unsupportedByteStream

	url    string
	cfg    WebSocketConfig
	header map[string][]string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	stopPing  chan struct{}

	buf *byteBuffer
}

// NewWebSocketTransport builds a client transport for ws(s)://HOST:PORT.
func NewWebSocketTransport(url string, cfg WebSocketConfig) *WebSocketTransport {
	return &WebSocketTransport{
		unsupportedByteStream: unsupportedByteStream{kind: "websocket"},
		url:                   url,
		cfg:                   cfg,
		buf:                   &byteBuffer{},
	}
}

func (t *WebSocketTransport) Connect(ctx context.Context) error {
	return t.connectWithRetry(ctx)
}

func (t *WebSocketTransport) connectWithRetry(ctx context.Context) error {
	delay := t.cfg.InitialRetryDelay
	var lastErr error
	for attempt := 0; attempt <= t.cfg.MaxRetries; attempt++ {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
		if err == nil {
			t.mu.Lock()
			t.conn = conn
			t.connected = true
			t.stopPing = make(chan struct{})
			t.mu.Unlock()
			t.startKeepalive()
			return nil
		}
		lastErr = err
		if attempt == t.cfg.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return protocolerr.New(protocolerr.ConnectionTimeout, ctx.Err().Error(), nil)
		case <-time.After(delay):
		}
		delay *= 2
	}
	return protocolerr.New(protocolerr.ConnectionFailed, fmt.Sprintf("failed to connect after %d attempts: %v", t.cfg.MaxRetries+1, lastErr), nil)
}

func (t *WebSocketTransport) startKeepalive() {
	if t.cfg.PingInterval <= 0 {
		return
	}
	conn := t.conn
	stop := t.stopPing
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.cfg.PingInterval + t.cfg.PingTimeout))
	})
	go func() {
		ticker := time.NewTicker(t.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.mu.Lock()
				c := t.conn
				t.mu.Unlock()
				if c == nil {
					return
				}
				_ = c.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.cfg.PingTimeout))
			}
		}
	}()
}

func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil
	}
	t.connected = false
	if t.stopPing != nil {
		close(t.stopPing)
		t.stopPing = nil
	}
	conn := t.conn
	t.conn = nil
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (t *WebSocketTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// SendFramed writes data as one binary WebSocket message. On connection
// loss it reconnects once transparently before failing.
func (t *WebSocketTransport) SendFramed(ctx context.Context, data []byte) error {
	if len(data) > MaxMessageSize {
		return protocolerr.New(protocolerr.MalformedPayload, fmt.Sprintf("payload of %d bytes exceeds max message size %d", len(data), MaxMessageSize), map[string]interface{}{"length": len(data)})
	}
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return protocolerr.New(protocolerr.ConnectionClosed, "transport is not connected", nil)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		_ = t.Close()
		if retryErr := t.connectWithRetry(ctx); retryErr != nil {
			return protocolerr.New(protocolerr.ConnectionFailed, err.Error(), nil)
		}
		t.mu.Lock()
		conn = t.conn
		t.mu.Unlock()
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return protocolerr.New(protocolerr.ConnectionFailed, err.Error(), nil)
		}
	}
	return nil
}

// ReceiveFramed reads the next binary WebSocket message as one envelope.
func (t *WebSocketTransport) ReceiveFramed(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil, protocolerr.New(protocolerr.ConnectionClosed, "transport is not connected", nil)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		_ = t.Close()
		return nil, protocolerr.New(protocolerr.ConnectionClosed, err.Error(), nil)
	}
	if len(data) > MaxMessageSize {
		return nil, protocolerr.New(protocolerr.MalformedPayload, fmt.Sprintf("incoming message of %d bytes exceeds max message size %d", len(data), MaxMessageSize), map[string]interface{}{"length": len(data)})
	}
	return data, nil
}

// ReceiveExactly reads exactly n bytes, buffering across native WebSocket
// message reads for callers that treat this transport as a byte stream.
func (t *WebSocketTransport) ReceiveExactly(ctx context.Context, n int) ([]byte, error) {
	for {
		if data, ok := t.buf.takeAvailable(n); ok {
			return data, nil
		}
		chunk, err := t.ReceiveFramed(ctx)
		if err != nil {
			return nil, err
		}
		t.buf.fill(chunk)
	}
}
