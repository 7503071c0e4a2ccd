package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/scttfrdmn/agenkit-sub000/internal/agentpb"
	"github.com/scttfrdmn/agenkit-sub000/internal/envelope"
	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// GRPCTransport bridges the JSON envelope protocol onto AgentService, per
// §4.F: unary requests map to Process, streaming requests to
// ProcessStream, and gRPC status codes map to protocol error codes.
type GRPCTransport struct {
	unsupportedByteStream

	addr string

	mu        sync.Mutex
	conn      *grpc.ClientConn
	client    agentpb.AgentServiceClient
	connected bool
	pending   chan []byte
	pendErr   chan error
}

// NewGRPCTransport builds a client transport for grpc://HOST:PORT.
func NewGRPCTransport(addr string) *GRPCTransport {
	return &GRPCTransport{unsupportedByteStream: unsupportedByteStream{kind: "grpc"}, addr: addr}
}

func (t *GRPCTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return nil
	}
	conn, err := grpc.NewClient(t.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return protocolerr.New(protocolerr.ConnectionFailed, err.Error(), nil)
	}
	t.conn = conn
	t.client = agentpb.NewAgentServiceClient(conn)
	t.connected = true
	return nil
}

func (t *GRPCTransport) Close() error {
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

func (t *GRPCTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// grpcStatusToErrorCode implements the table in spec §4.F.
func grpcStatusToErrorCode(code codes.Code) protocolerr.Code {
	switch code {
	case codes.Unavailable:
		return protocolerr.ConnectionFailed
	case codes.DeadlineExceeded:
		return protocolerr.ConnectionTimeout
	case codes.Canceled:
		return protocolerr.ConnectionClosed
	case codes.NotFound:
		return protocolerr.AgentNotFound
	case codes.InvalidArgument:
		return protocolerr.InvalidMessage
	case codes.FailedPrecondition:
		return protocolerr.AgentUnavailable
	case codes.Unimplemented:
		return protocolerr.UnsupportedVersion
	default:
		return protocolerr.ConnectionFailed
	}
}

// serializeContent JSON-encodes non-string content; strings pass through
// unchanged.
func serializeContent(content interface{}) string {
	if s, ok := content.(string); ok {
		return s
	}
	b, err := json.Marshal(content)
	if err != nil {
		return fmt.Sprintf("%v", content)
	}
	return string(b)
}

// deserializeContent attempts to JSON-parse raw and falls back to the raw
// string on failure. This is intentionally lossy for strings that happen
// to be valid JSON literals (e.g. the string "null" comes back as nil).
func deserializeContent(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func stringMetadata(meta map[string]interface{}) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			b, err := json.Marshal(v)
			if err != nil {
				out[k] = fmt.Sprintf("%v", v)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

func interfaceMetadata(meta map[string]string) map[string]interface{} {
	if meta == nil {
		return nil
	}
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func chatMessageToWire(m *agentpb.ChatMessage) map[string]interface{} {
	if m == nil {
		return nil
	}
	return map[string]interface{}{
		"role":      m.Role,
		"content":   deserializeContent(m.Content),
		"metadata":  interfaceMetadata(m.Metadata),
		"timestamp": m.Timestamp,
	}
}

func wireToChatMessage(wire map[string]interface{}) *agentpb.ChatMessage {
	role, _ := wire["role"].(string)
	ts, _ := wire["timestamp"].(string)
	var meta map[string]interface{}
	if m, ok := wire["metadata"].(map[string]interface{}); ok {
		meta = m
	}
	return &agentpb.ChatMessage{
		Role:      role,
		Content:   serializeContent(wire["content"]),
		Metadata:  stringMetadata(meta),
		Timestamp: ts,
	}
}

// jsonToProtobufRequest bridges an envelope's "request" payload (which
// carries "message" for a single-message process/stream request or
// "messages" for a multi-message one, plus an optional "tool_call") to a
// protobuf Request.
func jsonToProtobufRequest(payload map[string]interface{}) *agentpb.Request {
	req := &agentpb.Request{}
	if method, ok := payload["method"].(string); ok {
		req.Method = method
	}
	if name, ok := payload["agent_name"].(string); ok {
		req.AgentName = name
	}
	if msg, ok := payload["message"].(map[string]interface{}); ok {
		req.Messages = append(req.Messages, wireToChatMessage(msg))
	}
	if msgs, ok := payload["messages"].([]interface{}); ok {
		for _, m := range msgs {
			if wm, ok := m.(map[string]interface{}); ok {
				req.Messages = append(req.Messages, wireToChatMessage(wm))
			}
		}
	}
	if tc, ok := payload["tool_call"].(map[string]interface{}); ok {
		name, _ := tc["name"].(string)
		var args, meta map[string]interface{}
		if a, ok := tc["arguments"].(map[string]interface{}); ok {
			args = a
		}
		if m, ok := tc["metadata"].(map[string]interface{}); ok {
			meta = m
		}
		req.ToolCall = &agentpb.ToolCall{Name: name, Arguments: stringMetadata(args), Metadata: stringMetadata(meta)}
	}
	return req
}

func protobufResponseToJSON(resp *agentpb.Response) map[string]interface{} {
	switch resp.Type {
	case agentpb.ResponseTypeToolResult:
		tr := resp.ToolResult
		out := map[string]interface{}{"success": tr.Success, "metadata": interfaceMetadata(tr.Metadata)}
		if tr.Data != "" {
			out["data"] = deserializeContent(tr.Data)
		}
		if tr.Error != "" {
			out["error"] = tr.Error
		}
		return map[string]interface{}{"tool_result": out}
	default:
		return map[string]interface{}{"message": chatMessageToWire(resp.Message)}
	}
}

// SendFramed decodes env, dispatches Process or ProcessStream based on
// payload.method, and buffers the bridged JSON response(s) for subsequent
// ReceiveFramed calls.
func (t *GRPCTransport) SendFramed(ctx context.Context, data []byte) error {
	env, err := envelope.DecodeBytes(data)
	if err != nil {
		return err
	}
	payload, err := env.PayloadMap()
	if err != nil {
		return err
	}
	req := jsonToProtobufRequest(payload)

	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil {
		return protocolerr.New(protocolerr.ConnectionClosed, "transport is not connected", nil)
	}

	if req.Method == "stream" {
		return t.sendStream(ctx, client, env.ID, req)
	}
	return t.sendUnary(ctx, client, env.ID, req)
}

func (t *GRPCTransport) sendUnary(ctx context.Context, client agentpb.AgentServiceClient, requestID string, req *agentpb.Request) error {
	resp, err := client.Process(ctx, req)
	pending := make(chan []byte, 1)
	t.pending = pending
	t.pendErr = make(chan error, 1)
	if err != nil {
		code := grpcStatusToErrorCode(status.Code(err))
		env := envelope.NewError(requestID, code, err.Error(), nil)
		b, _ := envelope.EncodeBytes(env)
		pending <- b
		return nil
	}
	env := envelope.NewResponse(requestID, protobufResponseToJSON(resp))
	b, encErr := envelope.EncodeBytes(env)
	if encErr != nil {
		return encErr
	}
	pending <- b
	return nil
}

func (t *GRPCTransport) sendStream(ctx context.Context, client agentpb.AgentServiceClient, requestID string, req *agentpb.Request) error {
	stream, err := client.ProcessStream(ctx, req)
	if err != nil {
		pending := make(chan []byte, 1)
		t.pending = pending
		t.pendErr = make(chan error, 1)
		code := grpcStatusToErrorCode(status.Code(err))
		env := envelope.NewError(requestID, code, err.Error(), nil)
		b, _ := envelope.EncodeBytes(env)
		pending <- b
		return nil
	}

	pending := make(chan []byte, 8)
	t.pending = pending
	t.pendErr = make(chan error, 1)

	go func() {
		defer close(pending)
		for {
			chunk, err := stream.Recv()
			if err == io.EOF {
				end := envelope.NewStreamEnd(requestID)
				b, _ := envelope.EncodeBytes(end)
				pending <- b
				return
			}
			if err != nil {
				code := grpcStatusToErrorCode(status.Code(err))
				errEnv := envelope.NewError(requestID, code, err.Error(), nil)
				b, _ := envelope.EncodeBytes(errEnv)
				pending <- b
				return
			}
			env := envelope.NewStreamChunk(requestID, chatMessageToWire(chunk.Message))
			b, encErr := envelope.EncodeBytes(env)
			if encErr != nil {
				continue
			}
			pending <- b
		}
	}()
	return nil
}

// ReceiveFramed returns the next bridged envelope produced by the most
// recent SendFramed call.
func (t *GRPCTransport) ReceiveFramed(ctx context.Context) ([]byte, error) {
	if t.pending == nil {
		return nil, protocolerr.New(protocolerr.ConnectionClosed, "no request in flight", nil)
	}
	select {
	case <-ctx.Done():
		return nil, protocolerr.New(protocolerr.ConnectionTimeout, ctx.Err().Error(), nil)
	case data, ok := <-t.pending:
		if !ok {
			return nil, protocolerr.New(protocolerr.ConnectionClosed, "stream closed", nil)
		}
		return data, nil
	}
}
