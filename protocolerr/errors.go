// Package protocolerr defines the closed set of error codes and the
// ProtocolError / RemoteExecutionError types used at every public boundary
// of the dispatch fabric: transports, the dispatcher, the remote proxy,
// and the middleware stack.
package protocolerr

import "fmt"

// Code is a stable, wire-visible error code string.
type Code string

// The full protocol error code enum.
const (
	ConnectionFailed    Code = "CONNECTION_FAILED"
	ConnectionTimeout   Code = "CONNECTION_TIMEOUT"
	ConnectionClosed    Code = "CONNECTION_CLOSED"
	InvalidMessage      Code = "INVALID_MESSAGE"
	UnsupportedVersion  Code = "UNSUPPORTED_VERSION"
	MalformedPayload    Code = "MALFORMED_PAYLOAD"
	AgentNotFound       Code = "AGENT_NOT_FOUND"
	AgentUnavailable    Code = "AGENT_UNAVAILABLE"
	AgentTimeout        Code = "AGENT_TIMEOUT"
	ToolNotFound        Code = "TOOL_NOT_FOUND"
	ToolExecutionFailed Code = "TOOL_EXECUTION_FAILED"
	RegistrationFailed  Code = "REGISTRATION_FAILED"
	DuplicateAgent      Code = "DUPLICATE_AGENT"
	InternalError       Code = "INTERNAL_ERROR"
	CircuitOpen         Code = "CIRCUIT_OPEN"
	RateLimited         Code = "RATE_LIMITED"
)

// ProtocolError is the closed sum type carried at every public boundary:
// a stable code, a human-readable message, and a details map for context
// (endpoint, method, agent name, observed length, ...).
type ProtocolError struct {
	Code    Code
	Message string
	Details map[string]interface{}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a ProtocolError. details is stored as given and may be nil.
func New(code Code, message string, details map[string]interface{}) *ProtocolError {
	return &ProtocolError{Code: code, Message: message, Details: details}
}

// Is supports errors.Is comparison by code: a *ProtocolError matches
// another *ProtocolError with the same Code.
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// RemoteExecutionError describes an error raised inside a remote agent's
// user code, with the original message text preserved rather than folded
// into a ProtocolError code. RemoteAgent does not construct it: every
// error envelope it receives is returned as a *ProtocolError carrying the
// envelope's code, message and details.
type RemoteExecutionError struct {
	AgentName string
	Message   string
	Details   map[string]interface{}
}

func (e *RemoteExecutionError) Error() string {
	return fmt.Sprintf("agent %q raised: %s", e.AgentName, e.Message)
}

// AgentTimeoutErr builds the ProtocolError for a per-call timeout expiry,
// matching §4.H's "carrying agent name and timeout value" requirement.
func AgentTimeoutErr(agentName string, timeoutSeconds float64) *ProtocolError {
	return New(AgentTimeout, fmt.Sprintf("agent %q timed out after %.3fs", agentName, timeoutSeconds), map[string]interface{}{
		"agent_name": agentName,
		"timeout":    timeoutSeconds,
	})
}
