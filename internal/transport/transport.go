// Package transport implements the wire-level connect/send/receive
// abstraction shared by every concrete transport (Unix socket, TCP,
// in-memory, WebSocket, HTTP+SSE, gRPC) that can carry an envelope.
package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// MaxMessageSize is the largest payload any framed transport will send or
// accept, in bytes. Both the send path and the receive path reject larger
// values as MalformedPayload; see the note on WriteFrame for why the send
// side doesn't get a distinct code.
const MaxMessageSize = 10 * 1024 * 1024

// Transport is the common contract every concrete transport satisfies.
// Byte-stream transports additionally implement ByteStream; message
// transports (WebSocket, HTTP, gRPC) reject Send/Receive as unsupported
// and implement SendFramed/ReceiveFramed directly against their native
// framing.
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	IsConnected() bool
	SendFramed(ctx context.Context, data []byte) error
	ReceiveFramed(ctx context.Context) ([]byte, error)
}

// ByteStream is implemented by transports whose native primitive is an
// unframed byte stream (Unix, TCP, in-memory); SendFramed/ReceiveFramed
// are derived from Send/Receive by the shared frame helpers below.
type ByteStream interface {
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, error)
}

// unsupportedByteStream is embedded by message transports to satisfy
// any caller that still expects raw Send/Receive and reject it cleanly.
type unsupportedByteStream struct{ kind string }

func (u unsupportedByteStream) Send(ctx context.Context, data []byte) error {
	return protocolerr.New(protocolerr.InvalidMessage, fmt.Sprintf("%s transport does not support unframed send", u.kind), nil)
}

func (u unsupportedByteStream) Receive(ctx context.Context) ([]byte, error) {
	return nil, protocolerr.New(protocolerr.InvalidMessage, fmt.Sprintf("%s transport does not support unframed receive", u.kind), nil)
}

// WriteFrame writes a 4-byte big-endian length prefix followed by data to
// w. Payloads larger than MaxMessageSize are rejected before anything is
// written, with the same MalformedPayload code ReadFrame uses for an
// oversized incoming frame. transport.py's send_framed raises a bare
// ValueError here instead, but protocolerr.Code is a closed enum with no
// generic illegal-argument member to map that to, so both directions share
// the one code that fits: the payload is malformed relative to the wire
// contract either way. Exported for reuse by the server dispatcher, which
// frames directly over accepted net.Conn values rather than through a
// Transport.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > MaxMessageSize {
		return protocolerr.New(protocolerr.MalformedPayload, fmt.Sprintf("payload of %d bytes exceeds max message size %d", len(data), MaxMessageSize), map[string]interface{}{"length": len(data)})
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(data)))
	if _, err := w.Write(hdr[:]); err != nil {
		return protocolerr.New(protocolerr.ConnectionClosed, err.Error(), nil)
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := w.Write(data); err != nil {
		return protocolerr.New(protocolerr.ConnectionClosed, err.Error(), nil)
	}
	return nil
}

// ReadFrame reads a 4-byte big-endian length prefix then that many bytes
// from r. A short read mid-frame is reported as ConnectionClosed.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, protocolerr.New(protocolerr.ConnectionClosed, "connection closed while reading frame length", nil)
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length > MaxMessageSize {
		return nil, protocolerr.New(protocolerr.MalformedPayload, fmt.Sprintf("incoming frame of %d bytes exceeds max message size %d", length, MaxMessageSize), map[string]interface{}{"length": length})
	}
	buf := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, protocolerr.New(protocolerr.ConnectionClosed, "connection closed mid-frame", nil)
		}
	}
	return buf, nil
}

// byteBuffer backs receive_exactly(n)-style consumption for transports
// (WebSocket) whose native unit is a whole message rather than a byte
// stream, by queuing bytes from successive native reads.
type byteBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *byteBuffer) fill(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, data...)
}

func (b *byteBuffer) takeAvailable(n int) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) < n {
		return nil, false
	}
	out := b.buf[:n]
	b.buf = b.buf[n:]
	return out, true
}

// Endpoint is a parsed scheme + host-or-path pair, per §6's endpoint
// scheme table.
type Endpoint struct {
	Scheme string
	Addr   string // host:port for network schemes, filesystem path for unix
}

// Parse splits an endpoint URL of the form "scheme://addr" into its scheme
// and address, mirroring original_source's parse_endpoint dispatcher.
func Parse(endpoint string) (Endpoint, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" {
		return Endpoint{}, protocolerr.New(protocolerr.InvalidMessage, fmt.Sprintf("unsupported endpoint format: %s", endpoint), map[string]interface{}{"endpoint": endpoint})
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "unix":
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		return Endpoint{Scheme: scheme, Addr: path}, nil
	case "tcp", "ws", "wss", "grpc":
		return Endpoint{Scheme: scheme, Addr: u.Host}, nil
	case "http", "https", "h2c", "h3":
		return Endpoint{Scheme: scheme, Addr: u.Host}, nil
	default:
		return Endpoint{}, protocolerr.New(protocolerr.InvalidMessage, fmt.Sprintf("unsupported endpoint scheme: %s", scheme), map[string]interface{}{"scheme": scheme})
	}
}
