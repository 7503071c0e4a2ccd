package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/internal/agentpb"
	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// startGRPC serves AgentService per §4.F, bridging protobuf Request/
// Response onto the wrapped agent.Agent directly (no envelope involved on
// this path; gRPC's own framing and status codes replace it).
func (l *LocalAgent) startGRPC(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dispatch: listen %s: %w", addr, err)
	}
	srv := grpc.NewServer()
	agentpb.RegisterAgentServiceServer(srv, &grpcServer{agt: l.agt})

	l.grpcStop = srv.GracefulStop
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		_ = srv.Serve(ln)
	}()
	return nil
}

type grpcServer struct {
	agentpb.UnimplementedAgentServiceServer
	agt agent.Agent
}

func grpcChatToMessage(m *agentpb.ChatMessage) agent.Message {
	if m == nil {
		return agent.Message{}
	}
	return agent.Message{
		Role:     m.Role,
		Content:  grpcDeserializeContent(m.Content),
		Metadata: grpcInterfaceMetadata(m.Metadata),
	}
}

func messageToGRPCChat(m agent.Message) *agentpb.ChatMessage {
	return &agentpb.ChatMessage{
		Role:     m.Role,
		Content:  grpcSerializeContent(m.Content),
		Metadata: grpcStringMetadata(m.Metadata),
	}
}

func grpcSerializeContent(content interface{}) string {
	if s, ok := content.(string); ok {
		return s
	}
	b, err := json.Marshal(content)
	if err != nil {
		return fmt.Sprintf("%v", content)
	}
	return string(b)
}

func grpcDeserializeContent(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func grpcStringMetadata(meta map[string]interface{}) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			out[k] = fmt.Sprintf("%v", v)
			continue
		}
		out[k] = string(b)
	}
	return out
}

func grpcInterfaceMetadata(meta map[string]string) map[string]interface{} {
	if meta == nil {
		return nil
	}
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func errToGRPCStatus(err error) error {
	code := codes.Internal
	if pe, ok := err.(*protocolerr.ProtocolError); ok {
		switch pe.Code {
		case protocolerr.AgentNotFound:
			code = codes.NotFound
		case protocolerr.InvalidMessage, protocolerr.MalformedPayload:
			code = codes.InvalidArgument
		case protocolerr.AgentUnavailable, protocolerr.CircuitOpen:
			code = codes.FailedPrecondition
		case protocolerr.AgentTimeout, protocolerr.ConnectionTimeout:
			code = codes.DeadlineExceeded
		case protocolerr.UnsupportedVersion:
			code = codes.Unimplemented
		}
		return status.Error(code, pe.Message)
	}
	return status.Error(code, err.Error())
}

// Process implements agentpb.AgentServiceServer.
func (s *grpcServer) Process(ctx context.Context, req *agentpb.Request) (*agentpb.Response, error) {
	if len(req.Messages) == 0 {
		return nil, status.Error(codes.InvalidArgument, "request carries no message")
	}
	input := grpcChatToMessage(req.Messages[0])
	output, err := s.agt.Process(ctx, input)
	if err != nil {
		return nil, errToGRPCStatus(err)
	}
	return &agentpb.Response{Type: agentpb.ResponseTypeMessage, Message: messageToGRPCChat(output)}, nil
}

// ProcessStream implements agentpb.AgentServiceServer.
func (s *grpcServer) ProcessStream(req *agentpb.Request, stream agentpb.AgentService_ProcessStreamServer) error {
	streamer, ok := s.agt.(agent.Streamer)
	if !ok {
		return status.Error(codes.Unimplemented, "agent does not support streaming")
	}
	if len(req.Messages) == 0 {
		return status.Error(codes.InvalidArgument, "request carries no message")
	}
	input := grpcChatToMessage(req.Messages[0])

	chunks, errCh := streamer.Stream(stream.Context(), input)
	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			if err := stream.Send(&agentpb.StreamChunk{Message: messageToGRPCChat(chunk)}); err != nil {
				return err
			}
		case err := <-errCh:
			if err != nil {
				return errToGRPCStatus(err)
			}
		}
	}
}
