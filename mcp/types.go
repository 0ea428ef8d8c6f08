package mcp

import (
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

type ResultType string

const (
	ResultSuccess ResultType = "success"
	ResultError   ResultType = "error"
)

// ToolListResult is the outcome of tool discovery. Err is set when Type is
// ResultError and can be inspected with errors.As for the failure class.
type ToolListResult struct {
	Type  ResultType
	Tools []mcptypes.Tool
	Err   error
}

type CallToolParams struct {
	Name      string
	Arguments map[string]any
	// ProgressToken, when empty, is generated per call.
	ProgressToken string
	// ThoughtID links the result to the thought item tracking the call.
	ThoughtID string
}

// ToolCallResult is either CallSuccess or CallFailure.
type ToolCallResult interface {
	ThoughtID() string
	toolCallResult()
}

type CallSuccess struct {
	Result  *mcptypes.CallToolResult
	Thought string
}

// CallFailure carries a human-readable reason. Err holds the underlying
// TransportError, ProtocolError or TimeoutError when the call itself
// failed; it is nil when the provider reported a tool error.
type CallFailure struct {
	Message string
	Err     error
	Thought string
}

func (r CallSuccess) ThoughtID() string { return r.Thought }
func (r CallFailure) ThoughtID() string { return r.Thought }
func (CallSuccess) toolCallResult()     {}
func (CallFailure) toolCallResult()     {}

// Text joins the text content of the result.
func (r CallSuccess) Text() string {
	if r.Result == nil {
		return ""
	}
	return contentText(r.Result.Content)
}

func contentText(contents []mcptypes.Content) string {
	parts := make([]string, 0, len(contents))
	for _, c := range contents {
		parts = append(parts, mcptypes.GetTextFromContent(c))
	}
	return strings.Join(parts, "\n")
}

// State is the per-call lifecycle of a Client.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAwaitingResponse
	StateCompleted
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAwaitingResponse:
		return "awaiting-response"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// ToolSeparator joins server and tool names. Provider function names must
// match ^[a-zA-Z0-9_-]+$, which rules out a dot.
const ToolSeparator = "__"

// NamedTool is a discovered tool qualified by the server that provides it.
type NamedTool struct {
	Server string
	Tool   mcptypes.Tool
}

func (t NamedTool) Name() string {
	return t.Server + ToolSeparator + t.Tool.Name
}

// ParseToolName splits a namespaced tool name into server and tool.
func ParseToolName(namespaced string) (server, tool string) {
	idx := strings.Index(namespaced, ToolSeparator)
	if idx == -1 {
		return "", namespaced
	}
	return namespaced[:idx], namespaced[idx+len(ToolSeparator):]
}
