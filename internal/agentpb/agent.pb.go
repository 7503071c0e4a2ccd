// Package agentpb holds the gRPC message and service types for
// AgentService, hand-maintained from agent.proto rather than produced by
// protoc (no .proto toolchain was available in this environment). Message
// types use the legacy protobuf Go API (Reset/String/ProtoMessage plus
// "protobuf" struct tags), the same shape protoc-gen-go emitted for years
// and the shape google.golang.org/protobuf still accepts for backward
// compatibility.
package agentpb

import "fmt"

// ResponseType discriminates the oneof-like Response payload.
type ResponseType int32

const (
	ResponseTypeUnspecified ResponseType = 0
	ResponseTypeMessage     ResponseType = 1
	ResponseTypeToolResult  ResponseType = 2
)

// ChatMessage mirrors agent.Message on the wire: content is always a
// string (non-scalar content is JSON-encoded by the caller first).
type ChatMessage struct {
	Role      string            `protobuf:"bytes,1,opt,name=role,proto3" json:"role,omitempty"`
	Content   string            `protobuf:"bytes,2,opt,name=content,proto3" json:"content,omitempty"`
	Metadata  map[string]string `protobuf:"bytes,3,rep,name=metadata,proto3" json:"metadata,omitempty"`
	Timestamp string            `protobuf:"bytes,4,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

func (x *ChatMessage) Reset()         { *x = ChatMessage{} }
func (x *ChatMessage) String() string { return fmt.Sprintf("%+v", *x) }
func (*ChatMessage) ProtoMessage()    {}

// ToolCall mirrors agent.ToolCall.
type ToolCall struct {
	Name      string            `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Arguments map[string]string `protobuf:"bytes,2,rep,name=arguments,proto3" json:"arguments,omitempty"`
	Metadata  map[string]string `protobuf:"bytes,3,rep,name=metadata,proto3" json:"metadata,omitempty"`
}

func (x *ToolCall) Reset()         { *x = ToolCall{} }
func (x *ToolCall) String() string { return fmt.Sprintf("%+v", *x) }
func (*ToolCall) ProtoMessage()    {}

// ToolResult mirrors agent.ToolResult.
type ToolResult struct {
	Success  bool              `protobuf:"varint,1,opt,name=success,proto3" json:"success,omitempty"`
	Data     string            `protobuf:"bytes,2,opt,name=data,proto3" json:"data,omitempty"`
	Error    string            `protobuf:"bytes,3,opt,name=error,proto3" json:"error,omitempty"`
	Metadata map[string]string `protobuf:"bytes,4,rep,name=metadata,proto3" json:"metadata,omitempty"`
}

func (x *ToolResult) Reset()         { *x = ToolResult{} }
func (x *ToolResult) String() string { return fmt.Sprintf("%+v", *x) }
func (*ToolResult) ProtoMessage()    {}

// Request mirrors the "request" envelope payload for method "process" or
// "stream" (Messages set) and "execute" (ToolCall set).
type Request struct {
	Method    string         `protobuf:"bytes,1,opt,name=method,proto3" json:"method,omitempty"`
	AgentName string         `protobuf:"bytes,2,opt,name=agent_name,proto3" json:"agent_name,omitempty"`
	Messages  []*ChatMessage `protobuf:"bytes,3,rep,name=messages,proto3" json:"messages,omitempty"`
	ToolCall  *ToolCall      `protobuf:"bytes,4,opt,name=tool_call,proto3" json:"tool_call,omitempty"`
}

func (x *Request) Reset()         { *x = Request{} }
func (x *Request) String() string { return fmt.Sprintf("%+v", *x) }
func (*Request) ProtoMessage()    {}

// Response mirrors the "response" envelope payload: exactly one of
// Message or ToolResult is set, discriminated by Type.
type Response struct {
	Type       ResponseType `protobuf:"varint,1,opt,name=type,proto3,enum=agentpb.ResponseType" json:"type,omitempty"`
	Message    *ChatMessage `protobuf:"bytes,2,opt,name=message,proto3" json:"message,omitempty"`
	ToolResult *ToolResult  `protobuf:"bytes,3,opt,name=tool_result,proto3" json:"tool_result,omitempty"`
}

func (x *Response) Reset()         { *x = Response{} }
func (x *Response) String() string { return fmt.Sprintf("%+v", *x) }
func (*Response) ProtoMessage()    {}

// StreamChunk mirrors the "stream_chunk" envelope payload.
type StreamChunk struct {
	Message *ChatMessage `protobuf:"bytes,1,opt,name=message,proto3" json:"message,omitempty"`
}

func (x *StreamChunk) Reset()         { *x = StreamChunk{} }
func (x *StreamChunk) String() string { return fmt.Sprintf("%+v", *x) }
func (*StreamChunk) ProtoMessage()    {}
