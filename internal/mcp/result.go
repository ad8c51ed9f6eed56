package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolResult is the outcome of one tool invocation
type ToolResult struct {
	Tool     string
	Server   string
	Text     string
	IsError  bool
	Duration time.Duration
}

// Payload renders the result for the model. Tool-reported errors become
// a JSON object with an "error" field.
func (r *ToolResult) Payload() string {
	if r.IsError {
		return ErrorPayload(r.Text)
	}
	return r.Text
}

// ErrorPayload renders message as {"error": message}
func ErrorPayload(message string) string {
	b, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, message)
	}
	return string(b)
}

// contentText concatenates the content blocks of a tool result.
// Non-text blocks are summarised so the model knows they exist.
func contentText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s, %d bytes base64]", c.MIMEType, len(c.Data)))
		case mcp.EmbeddedResource:
			parts = append(parts, "[embedded resource]")
		default:
			if b, err := json.Marshal(c); err == nil {
				parts = append(parts, string(b))
			}
		}
	}
	return strings.Join(parts, "\n")
}
