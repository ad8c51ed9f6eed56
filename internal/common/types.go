// Package common holds the types shared by the agent, the LLM adapter and
// the MCP layer so none of them has to import another.
package common

import (
	"encoding/json"
	"sort"
)

// ToolDescriptor describes one tool in the aggregated catalogue
type ToolDescriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
	ServerName  string                 `json:"server_name"`
}

// SortTools orders descriptors by tool name
func SortTools(tools []ToolDescriptor) {
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
}

// Role is the author of a message in a conversation thread
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is one tool invocation requested by the model
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ArgumentsJSON renders the arguments as a JSON object string
func (c ToolCall) ArgumentsJSON() string {
	if c.Arguments == nil {
		return "{}"
	}
	b, err := json.Marshal(c.Arguments)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// Message is one entry of a thread's history.
// Assistant messages may carry ToolCalls; tool messages carry the
// ToolCallID and Name of the call they answer.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// UserMessage builds a user turn
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage builds an assistant turn
func AssistantMessage(text string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

// ToolResultMessage builds a tool-result turn answering call
func ToolResultMessage(call ToolCall, payload string) Message {
	return Message{Role: RoleTool, Content: payload, ToolCallID: call.ID, Name: call.Name}
}

// Decision is what the model decided to do with the current history:
// either FinalAnswer or ToolCallRequest.
type Decision interface {
	isDecision()
}

// FinalAnswer ends the turn with a natural-language reply
type FinalAnswer struct {
	Text string
}

// ToolCallRequest asks for one or more tool calls before answering.
// Text holds any prose the model emitted alongside the calls.
type ToolCallRequest struct {
	Text  string
	Calls []ToolCall
}

func (FinalAnswer) isDecision()     {}
func (ToolCallRequest) isDecision() {}
