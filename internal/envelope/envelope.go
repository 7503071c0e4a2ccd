// Package envelope implements the versioned JSON record that wraps every
// protocol event exchanged by the dispatch fabric, and the encode/decode
// operations that validate and move Message/ToolResult values across it.
//
// Serialization is JSON encoded as UTF-8, matching the wire contract every
// transport in internal/transport builds on top of.
package envelope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scttfrdmn/agenkit-sub000/agent"
	"github.com/scttfrdmn/agenkit-sub000/protocolerr"
)

// ProtocolVersion is the only version this codec accepts. A mismatch
// produces UnsupportedVersion rather than a generic decode failure.
const ProtocolVersion = "1.0"

// Type enumerates the envelope kinds carried by the "type" field.
type Type string

const (
	TypeRequest     Type = "request"
	TypeResponse    Type = "response"
	TypeError       Type = "error"
	TypeHeartbeat   Type = "heartbeat"
	TypeRegister    Type = "register"
	TypeUnregister  Type = "unregister"
	TypeStreamChunk Type = "stream_chunk"
	TypeStreamEnd   Type = "stream_end"
)

var validTypes = map[Type]bool{
	TypeRequest: true, TypeResponse: true, TypeError: true, TypeHeartbeat: true,
	TypeRegister: true, TypeUnregister: true, TypeStreamChunk: true, TypeStreamEnd: true,
}

// Envelope is the universal on-wire unit of exchange.
type Envelope struct {
	Version   string          `json:"version"`
	Type      Type            `json:"type"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// wireMessage is the dict shape {role, content, metadata, timestamp} that
// Message is encoded to / decoded from.
type wireMessage struct {
	Role      string                 `json:"role"`
	Content   interface{}            `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp *time.Time             `json:"timestamp,omitempty"`
}

// EncodeMessage maps a Message to its wire dictionary representation.
func EncodeMessage(m agent.Message) map[string]interface{} {
	ts := m.Timestamp
	return map[string]interface{}{
		"role":      m.Role,
		"content":   m.Content,
		"metadata":  m.Metadata,
		"timestamp": ts.UTC().Format(time.RFC3339Nano),
	}
}

// DecodeMessage maps a wire dictionary back to a Message, defaulting
// timestamp to now if absent, and fails with MalformedPayload on missing
// required fields.
func DecodeMessage(data map[string]interface{}) (agent.Message, error) {
	role, ok := data["role"].(string)
	if !ok {
		return agent.Message{}, protocolerr.New(protocolerr.MalformedPayload, "message missing 'role'", map[string]interface{}{"data": data})
	}
	content, hasContent := data["content"]
	if !hasContent {
		return agent.Message{}, protocolerr.New(protocolerr.MalformedPayload, "message missing 'content'", map[string]interface{}{"data": data})
	}
	msg := agent.Message{Role: role, Content: content, Timestamp: time.Now().UTC()}
	if meta, ok := data["metadata"].(map[string]interface{}); ok {
		msg.Metadata = meta
	}
	if ts, ok := data["timestamp"].(string); ok && ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return agent.Message{}, protocolerr.New(protocolerr.MalformedPayload, fmt.Sprintf("invalid timestamp: %v", err), map[string]interface{}{"data": data})
		}
		msg.Timestamp = parsed
	}
	return msg, nil
}

// EncodeToolResult maps a ToolResult to its wire dictionary representation.
func EncodeToolResult(r agent.ToolResult) map[string]interface{} {
	out := map[string]interface{}{
		"success":  r.Success,
		"data":     r.Data,
		"metadata": r.Metadata,
	}
	if r.Error != nil {
		out["error"] = *r.Error
	}
	return out
}

// DecodeToolResult maps a wire dictionary back to a ToolResult.
func DecodeToolResult(data map[string]interface{}) (agent.ToolResult, error) {
	success, ok := data["success"].(bool)
	if !ok {
		return agent.ToolResult{}, protocolerr.New(protocolerr.MalformedPayload, "tool result missing 'success'", map[string]interface{}{"data": data})
	}
	r := agent.ToolResult{Success: success, Data: data["data"]}
	if errStr, ok := data["error"].(string); ok {
		r.Error = &errStr
	}
	if meta, ok := data["metadata"].(map[string]interface{}); ok {
		r.Metadata = meta
	}
	return r, nil
}

func marshalPayload(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// v is always a map[string]interface{} built from JSON-safe values.
		panic(fmt.Sprintf("envelope: payload marshal: %v", err))
	}
	return b
}

// NewRequest builds a "request" envelope for method "process" or "stream",
// stamping a fresh id and the current timestamp.
func NewRequest(method, agentName string, extra map[string]interface{}) Envelope {
	payload := map[string]interface{}{"method": method}
	if agentName != "" {
		payload["agent_name"] = agentName
	}
	for k, v := range extra {
		payload[k] = v
	}
	return Envelope{
		Version:   ProtocolVersion,
		Type:      TypeRequest,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Payload:   marshalPayload(payload),
	}
}

// NewResponse builds a "response" envelope echoing requestID.
func NewResponse(requestID string, payload map[string]interface{}) Envelope {
	return Envelope{
		Version:   ProtocolVersion,
		Type:      TypeResponse,
		ID:        requestID,
		Timestamp: time.Now().UTC(),
		Payload:   marshalPayload(payload),
	}
}

// NewError builds an "error" envelope echoing requestID.
func NewError(requestID string, code protocolerr.Code, message string, details map[string]interface{}) Envelope {
	if details == nil {
		details = map[string]interface{}{}
	}
	return Envelope{
		Version:   ProtocolVersion,
		Type:      TypeError,
		ID:        requestID,
		Timestamp: time.Now().UTC(),
		Payload: marshalPayload(map[string]interface{}{
			"error_code":    string(code),
			"error_message": message,
			"error_details": details,
		}),
	}
}

// NewStreamChunk builds a "stream_chunk" envelope carrying one encoded
// message.
func NewStreamChunk(requestID string, message map[string]interface{}) Envelope {
	return Envelope{
		Version:   ProtocolVersion,
		Type:      TypeStreamChunk,
		ID:        requestID,
		Timestamp: time.Now().UTC(),
		Payload:   marshalPayload(map[string]interface{}{"message": message}),
	}
}

// NewStreamEnd builds a "stream_end" envelope with an empty payload.
func NewStreamEnd(requestID string) Envelope {
	return Envelope{
		Version:   ProtocolVersion,
		Type:      TypeStreamEnd,
		ID:        requestID,
		Timestamp: time.Now().UTC(),
		Payload:   marshalPayload(map[string]interface{}{}),
	}
}

// Validate requires version = "1.0", a legal type, non-empty id, and a
// present payload, returning a distinct failure for each missing or
// invalid field.
func (e Envelope) Validate() error {
	if e.Version == "" {
		return protocolerr.New(protocolerr.InvalidMessage, "missing 'version' field in envelope", nil)
	}
	if e.Version != ProtocolVersion {
		return protocolerr.New(protocolerr.UnsupportedVersion, fmt.Sprintf("unsupported protocol version: %s", e.Version), map[string]interface{}{"version": e.Version})
	}
	if e.Type == "" {
		return protocolerr.New(protocolerr.InvalidMessage, "missing 'type' field in envelope", nil)
	}
	if !validTypes[e.Type] {
		return protocolerr.New(protocolerr.InvalidMessage, fmt.Sprintf("invalid message type: %s", e.Type), map[string]interface{}{"type": e.Type})
	}
	if e.ID == "" {
		return protocolerr.New(protocolerr.InvalidMessage, "missing 'id' field in envelope", nil)
	}
	if e.Payload == nil {
		return protocolerr.New(protocolerr.InvalidMessage, "missing 'payload' field in envelope", nil)
	}
	return nil
}

// PayloadMap decodes the envelope's payload as a generic map, for callers
// that need to inspect fields (e.g. payload.method) before fully decoding.
func (e Envelope) PayloadMap() (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(e.Payload, &m); err != nil {
		return nil, protocolerr.New(protocolerr.MalformedPayload, fmt.Sprintf("failed to decode payload: %v", err), nil)
	}
	return m, nil
}

// EncodeBytes JSON-encodes an envelope to bytes for transmission.
func EncodeBytes(e Envelope) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, protocolerr.New(protocolerr.MalformedPayload, fmt.Sprintf("failed to encode envelope: %v", err), nil)
	}
	return b, nil
}

// DecodeBytes decodes bytes to an envelope and immediately validates it.
func DecodeBytes(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, protocolerr.New(protocolerr.MalformedPayload, fmt.Sprintf("failed to decode JSON: %v", err), nil)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
