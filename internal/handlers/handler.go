// Package handlers defines the tool handlers served by the creative tool servers
package handlers

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
)

// ToolHandler is one tool exposed by an MCP tool server
type ToolHandler interface {
	// Handle runs the tool. Failures the model should see are returned as
	// error results, not as Go errors.
	Handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

	GetName() string
	GetDescription() string
	GetToolDefinition() mcp.Tool
}

// BaseHandler carries the tool definition shared by every handler
type BaseHandler struct {
	Tool   mcp.Tool
	Logger *logging.Logger
}

// NewBaseHandler builds a BaseHandler whose logger is named after the tool
func NewBaseHandler(tool mcp.Tool, logger *logging.Logger) BaseHandler {
	return BaseHandler{Tool: tool, Logger: logger.WithName(tool.Name)}
}

// GetName returns the name of the tool
func (h *BaseHandler) GetName() string {
	return h.Tool.Name
}

// GetDescription returns the tool description shown to the model
func (h *BaseHandler) GetDescription() string {
	return h.Tool.Description
}

// GetToolDefinition returns the MCP tool definition
func (h *BaseHandler) GetToolDefinition() mcp.Tool {
	return h.Tool
}

// HandlerFunc adapts a plain function to a ToolHandler
type HandlerFunc struct {
	BaseHandler
	fn func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// NewHandlerFunc wraps fn as the handler for tool
func NewHandlerFunc(
	tool mcp.Tool,
	logger *logging.Logger,
	fn func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error),
) *HandlerFunc {
	return &HandlerFunc{BaseHandler: NewBaseHandler(tool, logger), fn: fn}
}

// Handle delegates to the wrapped function
func (h *HandlerFunc) Handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.fn(ctx, request)
}
