// Package server hosts creative tool handlers as an MCP tool server
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpServer "github.com/mark3labs/mcp-go/server"

	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
	"github.com/tuannvm/mcp-creative-agent/internal/handlers"
)

const shutdownTimeout = 10 * time.Second

// Server manages one MCP tool server
type Server struct {
	name            string
	logger          *logging.Logger
	mcp             *mcpServer.MCPServer
	handlerRegistry *handlers.Registry
}

// NewServer creates a tool server exposing the given handlers
func NewServer(name, version string, logger *logging.Logger, toolHandlers ...handlers.ToolHandler) (*Server, error) {
	logger = logger.WithName("tool-server")
	logger.Info("Initializing MCP tool server %s...", name)

	server := &Server{
		name:            name,
		logger:          logger,
		mcp:             mcpServer.NewMCPServer(name, version, mcpServer.WithToolCapabilities(false), mcpServer.WithLogging()),
		handlerRegistry: handlers.NewRegistry(logger),
	}

	if err := server.handlerRegistry.Register(toolHandlers...); err != nil {
		return nil, fmt.Errorf("failed to register handlers: %w", err)
	}
	for _, handler := range server.handlerRegistry.All() {
		server.registerTool(handler)
	}
	return server, nil
}

func (s *Server) registerTool(handler handlers.ToolHandler) {
	s.mcp.AddTool(handler.GetToolDefinition(), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.logger.DebugKV("Tool call", "tool", handler.GetName())
		return handler.Handle(ctx, req)
	})
	s.logger.Info("Registered MCP tool: %s", handler.GetName())
}

// MCP returns the underlying mcp-go server, for in-process clients
func (s *Server) MCP() *mcpServer.MCPServer {
	return s.mcp
}

// ToolNames lists the registered tools in registration order
func (s *Server) ToolNames() []string {
	return s.handlerRegistry.Names()
}

// Run serves the tool server over transport until ctx is cancelled.
// listenAddr is ignored for stdio.
func (s *Server) Run(ctx context.Context, transport, listenAddr string) error {
	switch transport {
	case config.TransportStdio:
		s.logger.Info("Serving %s over stdio", s.name)
		stdio := mcpServer.NewStdioServer(s.mcp)
		stdio.SetErrorLogger(s.logger.StdLogger())
		err := stdio.Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio server failed: %w", err)
		}
		return nil
	case config.TransportSSE:
		return s.serveHTTP(ctx, listenAddr, mcpServer.NewSSEServer(s.mcp))
	case config.TransportHTTP:
		return s.serveHTTP(ctx, listenAddr, mcpServer.NewStreamableHTTPServer(s.mcp))
	default:
		return fmt.Errorf("unsupported transport '%s'", transport)
	}
}

// serveHTTP blocks until the HTTP server stops or ctx is cancelled
func (s *Server) serveHTTP(ctx context.Context, listenAddr string, handler http.Handler) error {
	s.logger.Info("Starting MCP server on %s", listenAddr)

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("failed to start MCP HTTP server: %w", err)
		} else {
			errChan <- nil
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Context cancelled. Initiating shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("mcp server shutdown failed: %w", err)
		}
		<-errChan
		s.logger.Info("Shutdown complete")
		return nil
	case err := <-errChan:
		if err != nil {
			s.logger.Error("Received error from server goroutine: %v", err)
			return err
		}
		s.logger.Info("Server stopped cleanly")
		return nil
	}
}
