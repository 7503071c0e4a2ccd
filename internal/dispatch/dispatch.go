// Package dispatch implements the server side of the dispatch fabric:
// LocalAgent binds an agent.Agent to an endpoint and forwards every
// request it receives to that agent, returning the response (or
// streaming chunks) back over whichever wire protocol the endpoint
// names. Grounded on original_source/agenkit/adapters/python/local_agent.py
// for the scheme dispatch and per-connection lifecycle, and on
// cellorg/internal/broker/service.go for the accept-loop/goroutine-
// per-connection idiom.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/internal/envelope"
	"github.com/scttfrdmn/agenkit-sub000/internal/tracing"
	"github.com/scttfrdmn/agenkit-sub000/internal/transport"
	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// idleTimeout closes a byte-stream connection that has sent no frame for
// this long, matching local_agent.py's 60-second readexactly timeout.
const idleTimeout = 60 * time.Second

// LocalAgent exposes agt over endpoint. The endpoint scheme selects the
// transport: unix://, tcp:// (raw framed byte stream), ws://wss://
// (WebSocket), http://https:// (HTTP/1.1+SSE), or grpc:// (gRPC).
type LocalAgent struct {
	agt      agent.Agent
	endpoint string

	mu       sync.Mutex
	running  bool
	listener net.Listener
	wg       sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}

	httpServer interface{ Shutdown(context.Context) error }
	grpcStop   func()
}

// New builds a LocalAgent exposing agt over endpoint.
func New(agt agent.Agent, endpoint string) *LocalAgent {
	return &LocalAgent{agt: agt, endpoint: endpoint, conns: make(map[net.Conn]struct{})}
}

// Start binds the configured endpoint and begins serving requests. It
// returns once the listener is bound; connections are handled in
// background goroutines.
func (l *LocalAgent) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("dispatch: server is already running")
	}
	l.running = true
	l.mu.Unlock()

	ep, err := transport.Parse(l.endpoint)
	if err != nil {
		return err
	}

	switch ep.Scheme {
	case "unix":
		return l.startUnix(ep.Addr)
	case "tcp":
		return l.startTCP(ep.Addr)
	case "ws", "wss":
		return l.startWebSocket(ep.Addr)
	case "http", "https", "h2c":
		return l.startHTTP(ep.Addr)
	case "grpc":
		return l.startGRPC(ep.Addr)
	default:
		return protocolerr.New(protocolerr.InvalidMessage, fmt.Sprintf("unsupported endpoint scheme: %s", ep.Scheme), nil)
	}
}

func (l *LocalAgent) startUnix(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return protocolerr.New(protocolerr.RegistrationFailed, fmt.Sprintf("create socket dir: %v", err), nil)
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return protocolerr.New(protocolerr.RegistrationFailed, fmt.Sprintf("remove stale socket: %v", err), nil)
		}
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return protocolerr.New(protocolerr.ConnectionFailed, err.Error(), nil)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return protocolerr.New(protocolerr.RegistrationFailed, fmt.Sprintf("chmod socket: %v", err), nil)
	}
	l.listener = ln
	l.wg.Add(1)
	go l.acceptLoop(ln)
	return nil
}

func (l *LocalAgent) startTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return protocolerr.New(protocolerr.ConnectionFailed, err.Error(), nil)
	}
	l.listener = ln
	l.wg.Add(1)
	go l.acceptLoop(ln)
	return nil
}

func (l *LocalAgent) acceptLoop(ln net.Listener) {
	defer l.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if l.stopped() {
				return
			}
			log.Printf("dispatch: accept error: %v", err)
			return
		}
		l.trackConn(conn, true)
		l.wg.Add(1)
		go l.handleConn(conn)
	}
}

func (l *LocalAgent) stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.running
}

func (l *LocalAgent) trackConn(c net.Conn, add bool) {
	l.connMu.Lock()
	defer l.connMu.Unlock()
	if add {
		l.conns[c] = struct{}{}
	} else {
		delete(l.conns, c)
	}
}

func (l *LocalAgent) handleConn(conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()
	defer l.trackConn(conn, false)

	for {
		if l.stopped() {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(idleTimeout))
		reqBytes, err := transport.ReadFrame(conn)
		if err != nil {
			return
		}

		respBytes, done := l.handleFrame(context.Background(), reqBytes, func(b []byte) error {
			return transport.WriteFrame(conn, b)
		})
		if done {
			return
		}
		if respBytes != nil {
			if err := transport.WriteFrame(conn, respBytes); err != nil {
				return
			}
		}
	}
}

// handleFrame decodes one request envelope and processes it, either
// returning a single response payload (unary) or streaming chunks via
// send and returning (nil, false) once it has written stream_end itself.
// done=true signals the caller should close the connection (unrecoverable
// decode failure after best-effort error delivery).
func (l *LocalAgent) handleFrame(ctx context.Context, reqBytes []byte, send func([]byte) error) (resp []byte, done bool) {
	env, err := envelope.DecodeBytes(reqBytes)
	if err != nil {
		errBytes, _ := envelope.EncodeBytes(envelope.NewError("unknown", protocolerr.InternalError, err.Error(), nil))
		_ = send(errBytes)
		return nil, true
	}

	payload, err := env.PayloadMap()
	if err != nil {
		errBytes, _ := envelope.EncodeBytes(toErrorEnvelope(env.ID, err))
		_ = send(errBytes)
		return nil, false
	}
	method, _ := payload["method"].(string)

	if method == "stream" {
		l.serveStream(ctx, env.ID, payload, send)
		return nil, false
	}

	respEnv := l.processUnary(ctx, env.ID, method, payload)
	b, encErr := envelope.EncodeBytes(respEnv)
	if encErr != nil {
		return nil, true
	}
	return b, false
}

func (l *LocalAgent) processUnary(ctx context.Context, requestID, method string, payload map[string]interface{}) envelope.Envelope {
	if method != "process" {
		return toErrorEnvelope(requestID, protocolerr.New(protocolerr.InvalidMessage, fmt.Sprintf("unknown method: %s", method), map[string]interface{}{"method": method}))
	}
	msgData, ok := payload["message"].(map[string]interface{})
	if !ok {
		return toErrorEnvelope(requestID, protocolerr.New(protocolerr.MalformedPayload, "request missing 'message'", nil))
	}
	input, err := envelope.DecodeMessage(msgData)
	if err != nil {
		return toErrorEnvelope(requestID, err)
	}

	ctx = tracing.Extract(ctx, input.Metadata)
	ctx, span := tracing.Start(ctx, "dispatch.process")
	defer span.End()

	output, err := l.agt.Process(ctx, input)
	if err != nil {
		return toErrorEnvelope(requestID, err)
	}
	return envelope.NewResponse(requestID, map[string]interface{}{"message": envelope.EncodeMessage(output)})
}

func (l *LocalAgent) serveStream(ctx context.Context, requestID string, payload map[string]interface{}, send func([]byte) error) {
	streamer, ok := l.agt.(agent.Streamer)
	if !ok {
		errBytes, _ := envelope.EncodeBytes(toErrorEnvelope(requestID, protocolerr.New(protocolerr.InvalidMessage, "agent does not support streaming", nil)))
		_ = send(errBytes)
		return
	}
	msgData, ok := payload["message"].(map[string]interface{})
	if !ok {
		errBytes, _ := envelope.EncodeBytes(toErrorEnvelope(requestID, protocolerr.New(protocolerr.MalformedPayload, "request missing 'message'", nil)))
		_ = send(errBytes)
		return
	}
	input, err := envelope.DecodeMessage(msgData)
	if err != nil {
		errBytes, _ := envelope.EncodeBytes(toErrorEnvelope(requestID, err))
		_ = send(errBytes)
		return
	}

	streamLoop(ctx, requestID, streamer, input, send)
}

// streamLoop drains streamer.Stream(ctx, input), sending stream_chunk
// envelopes for each message and a final stream_end (or, on failure, an
// error envelope) via send. Split out of serveStream so that callers which
// must validate the request and commit to a response (e.g. the HTTP/SSE
// handler's "write 200 only after pre-flight checks pass") can run their
// own validation first and then share this loop for the part that happens
// after the response is already underway.
func streamLoop(ctx context.Context, requestID string, streamer agent.Streamer, input agent.Message, send func([]byte) error) {
	chunks, errCh := streamer.Stream(ctx, input)
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				endBytes, _ := envelope.EncodeBytes(envelope.NewStreamEnd(requestID))
				_ = send(endBytes)
				return
			}
			chunkBytes, _ := envelope.EncodeBytes(envelope.NewStreamChunk(requestID, envelope.EncodeMessage(chunk)))
			if err := send(chunkBytes); err != nil {
				return
			}
		case streamErr := <-errCh:
			if streamErr != nil {
				errBytes, _ := envelope.EncodeBytes(toErrorEnvelope(requestID, streamErr))
				_ = send(errBytes)
				return
			}
		}
	}
}

// toErrorEnvelope maps err to an "error" envelope: a *ProtocolError keeps
// its code, anything else becomes INTERNAL_ERROR.
func toErrorEnvelope(requestID string, err error) envelope.Envelope {
	var pe *protocolerr.ProtocolError
	if errors.As(err, &pe) {
		return envelope.NewError(requestID, pe.Code, pe.Message, pe.Details)
	}
	return envelope.NewError(requestID, protocolerr.InternalError, err.Error(), nil)
}

// Stop closes the listener and every active connection, and waits for
// all per-connection goroutines to exit.
func (l *LocalAgent) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	listener := l.listener
	l.mu.Unlock()

	if listener != nil {
		_ = listener.Close()
	}

	l.connMu.Lock()
	for c := range l.conns {
		_ = c.Close()
	}
	l.connMu.Unlock()

	if l.httpServer != nil {
		_ = l.httpServer.Shutdown(ctx)
	}
	if l.grpcStop != nil {
		l.grpcStop()
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	if ln, ok := listener.(*net.UnixListener); ok {
		_ = ln.Close()
		if a, ok := ln.Addr().(*net.UnixAddr); ok {
			_ = os.Remove(a.Name)
		}
	}
	return nil
}
