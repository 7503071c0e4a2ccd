package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/scttfrdmn/agenkit-sub000/internal/envelope"
	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// HTTPTransport implements the client side of §4.E: unary calls POST to
// /process, streaming calls POST to /stream and read the response as
// Server-Sent Events, one "data: <envelope>" line per framed envelope.
type HTTPTransport struct {
	unsupportedByteStream

	baseURL string
	client  *http.Client

	mu        sync.Mutex
	connected bool
	pending   chan []byte
	pendErr   chan error
}

// NewHTTPTransport builds a client transport for http(s)://HOST:PORT.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{
		unsupportedByteStream: unsupportedByteStream{kind: "http"},
		baseURL:               strings.TrimRight(baseURL, "/"),
		client:                client,
	}
}

func (t *HTTPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = true
	return nil
}

func (t *HTTPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	return nil
}

func (t *HTTPTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// SendFramed inspects payload.method: "stream" issues POST /stream with
// Accept: text/event-stream and starts an SSE reader feeding subsequent
// ReceiveFramed calls; anything else issues POST /process and buffers the
// single response envelope for the next ReceiveFramed call.
func (t *HTTPTransport) SendFramed(ctx context.Context, data []byte) error {
	env, err := envelope.DecodeBytes(data)
	if err != nil {
		return err
	}
	payload, err := env.PayloadMap()
	if err != nil {
		return err
	}
	method, _ := payload["method"].(string)

	if method == "stream" {
		return t.sendStream(ctx, data)
	}
	return t.sendUnary(ctx, data)
}

func (t *HTTPTransport) sendUnary(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/process", bytes.NewReader(data))
	if err != nil {
		return protocolerr.New(protocolerr.ConnectionFailed, err.Error(), nil)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return protocolerr.New(protocolerr.ConnectionFailed, err.Error(), nil)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxMessageSize+1))
	if err != nil {
		return protocolerr.New(protocolerr.ConnectionClosed, err.Error(), nil)
	}
	if len(body) > MaxMessageSize {
		return protocolerr.New(protocolerr.MalformedPayload, fmt.Sprintf("response of %d bytes exceeds max message size", len(body)), nil)
	}

	t.pending = make(chan []byte, 1)
	t.pendErr = make(chan error, 1)
	t.pending <- body
	return nil
}

func (t *HTTPTransport) sendStream(ctx context.Context, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/stream", bytes.NewReader(data))
	if err != nil {
		return protocolerr.New(protocolerr.ConnectionFailed, err.Error(), nil)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.client.Do(req)
	if err != nil {
		return protocolerr.New(protocolerr.ConnectionFailed, err.Error(), nil)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return protocolerr.New(protocolerr.ConnectionFailed, fmt.Sprintf("unexpected status %d from /stream", resp.StatusCode), nil)
	}

	pending := make(chan []byte, 8)
	pendErr := make(chan error, 1)
	t.pending = pending
	t.pendErr = pendErr

	go func() {
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), MaxMessageSize+1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}
			pending <- []byte(payload)
		}
		if err := scanner.Err(); err != nil {
			pendErr <- protocolerr.New(protocolerr.ConnectionClosed, err.Error(), nil)
		}
		close(pending)
	}()
	return nil
}

// ReceiveFramed returns the next buffered envelope from the most recent
// SendFramed call, whether that was a single /process response or the
// next SSE event from an in-flight /stream.
func (t *HTTPTransport) ReceiveFramed(ctx context.Context) ([]byte, error) {
	if t.pending == nil {
		return nil, protocolerr.New(protocolerr.ConnectionClosed, "no request in flight", nil)
	}
	select {
	case <-ctx.Done():
		return nil, protocolerr.New(protocolerr.ConnectionTimeout, ctx.Err().Error(), nil)
	case err := <-t.pendErr:
		return nil, err
	case data, ok := <-t.pending:
		if !ok {
			return nil, protocolerr.New(protocolerr.ConnectionClosed, "stream closed", nil)
		}
		return data, nil
	}
}
