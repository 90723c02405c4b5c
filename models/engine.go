package models

import "encoding/json"

// StopReason describes why the reasoning engine stopped producing output.
type StopReason string

const (
	// StopFinal means the engine produced a final answer.
	StopFinal StopReason = "final"
	// StopToolUse means the engine wants one or more tools executed.
	StopToolUse StopReason = "tool_use"
)

// ToolDefinition declares a tool to the reasoning engine.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolCall is a tool invocation requested by the engine.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the outcome of executing one requested tool call.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ImagePart is inline image content attached to a user message. Exactly one
// of DataBase64 or URL should be set.
type ImagePart struct {
	MimeType   string `json:"mime_type"`
	DataBase64 string `json:"data_base64,omitempty"`
	URL        string `json:"url,omitempty"`
}

// EngineMessage is one turn of a transcript sent to the reasoning engine.
type EngineMessage struct {
	Role       string      `json:"role"` // user, assistant, tool
	Content    string      `json:"content"`
	Images     []ImagePart `json:"images,omitempty"`     // user turns only, rendered ahead of text
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"` // assistant turns only
	ToolCallID string      `json:"tool_call_id,omitempty"`
}

// EngineResponse is the engine's typed reply: final text or tool calls.
type EngineResponse struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason StopReason
}
