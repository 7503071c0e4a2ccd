// Package remote implements RemoteAgent, the client-side proxy of §4.H:
// a drop-in agent.Agent that forwards every call over a transport to a
// LocalAgent on the other end. Grounded on
// original_source/agenkit/adapters/python/remote_agent.py.
package remote

import (
	"context"
	"sync"
	"time"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/internal/envelope"
	"github.com/scttfrdmn/agenkit-sub000/internal/tracing"
	"github.com/scttfrdmn/agenkit-sub000/internal/transport"
	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// RemoteAgent forwards Process/Stream calls to a remote LocalAgent. A
// single instance serializes outgoing requests on its one connection;
// run multiple instances for concurrent remote calls.
type RemoteAgent struct {
	name      string
	transport transport.Transport
	timeout   time.Duration

	mu        sync.Mutex
	connected bool
}

// New builds a RemoteAgent named name, talking to the given transport
// with a per-call timeout.
func New(name string, t transport.Transport, timeout time.Duration) *RemoteAgent {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteAgent{name: name, transport: t, timeout: timeout}
}

// Dial builds a RemoteAgent from an endpoint URL via transport.New.
func Dial(name, endpoint string, timeout time.Duration) (*RemoteAgent, error) {
	t, err := transport.New(endpoint)
	if err != nil {
		return nil, err
	}
	return New(name, t, timeout), nil
}

// Name implements agent.Name.
func (r *RemoteAgent) Name() string { return r.name }

func (r *RemoteAgent) ensureConnected(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connected {
		return nil
	}
	if err := r.transport.Connect(ctx); err != nil {
		return err
	}
	r.connected = true
	return nil
}

// Process sends msg to the remote agent and waits for its response,
// bounded by the configured per-call timeout covering both the send and
// the receive.
func (r *RemoteAgent) Process(ctx context.Context, msg agent.Message) (agent.Message, error) {
	if err := r.ensureConnected(ctx); err != nil {
		return agent.Message{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cctx, span := tracing.Start(cctx, "remote.process")
	defer span.End()
	msg.Metadata = tracing.Inject(cctx, msg.Metadata)

	req := envelope.NewRequest("process", r.name, map[string]interface{}{
		"message": envelope.EncodeMessage(msg),
	})
	reqBytes, err := envelope.EncodeBytes(req)
	if err != nil {
		return agent.Message{}, err
	}

	if err := r.transport.SendFramed(cctx, reqBytes); err != nil {
		return agent.Message{}, r.mapTimeout(cctx, err)
	}
	respBytes, err := r.transport.ReceiveFramed(cctx)
	if err != nil {
		return agent.Message{}, r.mapTimeout(cctx, err)
	}

	resp, err := envelope.DecodeBytes(respBytes)
	if err != nil {
		return agent.Message{}, err
	}
	return r.decodeUnaryResponse(resp)
}

func (r *RemoteAgent) decodeUnaryResponse(resp envelope.Envelope) (agent.Message, error) {
	payload, err := resp.PayloadMap()
	if err != nil {
		return agent.Message{}, err
	}

	switch resp.Type {
	case envelope.TypeError:
		code, _ := payload["error_code"].(string)
		msg, _ := payload["error_message"].(string)
		details, _ := payload["error_details"].(map[string]interface{})
		return agent.Message{}, protocolerr.New(protocolerr.Code(code), msg, details)
	case envelope.TypeResponse:
		msgData, ok := payload["message"].(map[string]interface{})
		if !ok {
			return agent.Message{}, protocolerr.New(protocolerr.MalformedPayload, "response missing 'message'", nil)
		}
		return envelope.DecodeMessage(msgData)
	default:
		return agent.Message{}, protocolerr.New(protocolerr.InvalidMessage, "expected 'response' or 'error' but got "+string(resp.Type), map[string]interface{}{"type": resp.Type})
	}
}

// mapTimeout converts a context-deadline-exceeded condition into
// AGENT_TIMEOUT, carrying the agent name and configured timeout, and
// otherwise passes the original error through unchanged.
func (r *RemoteAgent) mapTimeout(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return protocolerr.AgentTimeoutErr(r.name, r.timeout.Seconds())
	}
	return err
}

// Stream sends msg as a streaming request and returns a channel of
// response chunks and a channel that receives exactly one error (nil on
// clean completion) when the stream ends.
func (r *RemoteAgent) Stream(ctx context.Context, msg agent.Message) (<-chan agent.Message, <-chan error) {
	chunks := make(chan agent.Message)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunks)

		if err := r.ensureConnected(ctx); err != nil {
			errCh <- err
			return
		}

		r.mu.Lock()
		defer r.mu.Unlock()

		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		req := envelope.NewRequest("stream", r.name, map[string]interface{}{
			"message": envelope.EncodeMessage(msg),
		})
		reqBytes, err := envelope.EncodeBytes(req)
		if err != nil {
			errCh <- err
			return
		}
		if err := r.transport.SendFramed(cctx, reqBytes); err != nil {
			errCh <- r.mapTimeout(cctx, err)
			return
		}

		for {
			respBytes, err := r.transport.ReceiveFramed(cctx)
			if err != nil {
				errCh <- r.mapTimeout(cctx, err)
				return
			}
			resp, err := envelope.DecodeBytes(respBytes)
			if err != nil {
				errCh <- err
				return
			}
			payload, err := resp.PayloadMap()
			if err != nil {
				errCh <- err
				return
			}

			switch resp.Type {
			case envelope.TypeStreamChunk:
				msgData, ok := payload["message"].(map[string]interface{})
				if !ok {
					errCh <- protocolerr.New(protocolerr.MalformedPayload, "stream chunk missing 'message'", nil)
					return
				}
				chunk, err := envelope.DecodeMessage(msgData)
				if err != nil {
					errCh <- err
					return
				}
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			case envelope.TypeStreamEnd:
				errCh <- nil
				return
			case envelope.TypeError:
				code, _ := payload["error_code"].(string)
				errMsg, _ := payload["error_message"].(string)
				details, _ := payload["error_details"].(map[string]interface{})
				errCh <- protocolerr.New(protocolerr.Code(code), errMsg, details)
				return
			default:
				errCh <- protocolerr.New(protocolerr.InvalidMessage, "expected 'stream_chunk' or 'stream_end' but got "+string(resp.Type), nil)
				return
			}
		}
	}()

	return chunks, errCh
}

// Close disconnects the underlying transport.
func (r *RemoteAgent) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connected {
		return nil
	}
	r.connected = false
	return r.transport.Close()
}
