// Package mcp connects to tool servers over the Model Context Protocol and
// aggregates their tools into one catalogue.
package mcp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
)

// ClientName and ClientVersion are sent during the initialize handshake
const (
	ClientName    = "mcp-creative-agent"
	ClientVersion = "1.0.0"
)

// Session is an open session with one tool server
type Session interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
	Close() error
}

// ToolClient is the subset of the mcp-go client a Connection drives
type ToolClient interface {
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Dialer opens a session to the named server
type Dialer func(ctx context.Context, name string, cfg config.MCPServerConfig) (Session, error)

// Connection is a Session backed by an initialized mcp-go client
type Connection struct {
	name   string
	client ToolClient
	log    *logging.Logger
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// NewConnection wraps an already initialized client
func NewConnection(name string, c ToolClient, logger *logging.Logger) *Connection {
	if logger == nil {
		logger = logging.New("mcp-connection", logging.LevelInfo)
	}
	return &Connection{name: name, client: c, log: logger}
}

// Name returns the server name
func (c *Connection) Name() string {
	return c.name
}

// ListTools returns the tools the server advertises
func (c *Connection) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, customErrors.WrapMCPError(err, customErrors.CodeConnectionFailed,
			fmt.Sprintf("failed to list tools on server '%s'", c.name))
	}
	if result == nil {
		c.log.WarnKV("ListTools returned nil result", "server", c.name)
		return nil, nil
	}
	return result.Tools, nil
}

// CallTool invokes a tool on the server
func (c *Connection) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.client.CallTool(ctx, req)
	if err != nil {
		if isStdioExit(err) {
			c.log.WarnKV("Stdio server process appears to have exited", "server", c.name, "error", err)
		}
		return nil, err
	}
	return result, nil
}

// Close ends the session. Only the first call does any work.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.log.DebugKV("Closing tool server session", "server", c.name)
		if c.cancel != nil {
			c.cancel()
		}
		c.closeErr = c.client.Close()
	})
	return c.closeErr
}

func isStdioExit(err error) bool {
	return strings.Contains(err.Error(), "file already closed") || strings.Contains(err.Error(), "broken pipe")
}

// DialOptions tunes how DefaultDialer connects
type DialOptions struct {
	Retry  RetryOptions
	Logger *logging.Logger
}

// DefaultDialer connects over stdio, SSE or streamable HTTP depending on the server config
func DefaultDialer(opts DialOptions) Dialer {
	logger := opts.Logger
	if logger == nil {
		logger = logging.New("mcp-client", logging.LevelInfo)
	}
	return func(ctx context.Context, name string, cfg config.MCPServerConfig) (Session, error) {
		return Dial(ctx, name, cfg, opts.Retry, logger.WithName("mcp-"+name))
	}
}

// Dial starts the transport for cfg, performs the initialize handshake and
// returns the open session.
func Dial(ctx context.Context, name string, cfg config.MCPServerConfig, retry RetryOptions, logger *logging.Logger) (*Connection, error) {
	// The session outlives ctx, which only bounds the handshake.
	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	var (
		mcpClient ToolClient
		initFn    func(context.Context, mcp.InitializeRequest) (*mcp.InitializeResult, error)
		err       error
	)

	mode := cfg.GetTransport()
	switch mode {
	case config.TransportStdio:
		logger.InfoKV("Starting stdio tool server", "server", name, "command", cfg.Command, "args", cfg.Args)
		var c *client.Client
		c, err = client.NewStdioMCPClient(cfg.Command, mergeEnv(cfg.Env), cfg.Args...)
		if err == nil {
			mcpClient, initFn = c, c.Initialize
		}

	case config.TransportSSE:
		logger.InfoKV("Connecting to SSE tool server", "server", name, "url", cfg.URL)
		var c *SSEMCPClientWithRetry
		c, err = NewSSEMCPClientWithRetry(cfg.URL, cfg.Headers, logger, retry)
		if err == nil {
			if err = c.Start(sessionCtx); err != nil {
				_ = c.Close()
			} else {
				mcpClient, initFn = c, c.Initialize
			}
		}

	case config.TransportHTTP:
		logger.InfoKV("Connecting to streamable HTTP tool server", "server", name, "url", cfg.URL)
		var c *client.Client
		c, err = client.NewStreamableHttpClient(cfg.URL, transport.WithHTTPHeaders(cfg.Headers))
		if err == nil {
			if err = c.Start(sessionCtx); err != nil {
				_ = c.Close()
			} else {
				mcpClient, initFn = c, c.Initialize
			}
		}

	default:
		err = fmt.Errorf("unsupported transport '%s', must be 'stdio', 'sse', or 'http'", mode)
	}

	if err != nil {
		cancel()
		return nil, customErrors.WrapMCPError(err, customErrors.CodeConnectionFailed,
			fmt.Sprintf("failed to start %s transport for server '%s'", mode, name)).WithData("server", name)
	}

	initCtx, initCancel := context.WithTimeout(ctx, cfg.GetInitializeTimeout())
	defer initCancel()

	if err := Initialize(initCtx, initFn); err != nil {
		_ = mcpClient.Close()
		cancel()
		logConnectHint(logger, name, cfg, err)
		return nil, customErrors.WrapMCPError(err, customErrors.CodeConnectionFailed,
			fmt.Sprintf("failed to initialize server '%s'", name)).WithData("server", name)
	}

	conn := NewConnection(name, mcpClient, logger)
	conn.cancel = cancel
	logger.InfoKV("Tool server session initialized", "server", name, "transport", mode)
	return conn, nil
}

// Initialize performs the MCP initialize handshake using initFn
func Initialize(ctx context.Context, initFn func(context.Context, mcp.InitializeRequest) (*mcp.InitializeResult, error)) error {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: ClientName, Version: ClientVersion}
	_, err := initFn(ctx, req)
	return err
}

// mergeEnv overlays extra on the current process environment
func mergeEnv(extra map[string]string) []string {
	envMap := make(map[string]string)
	for _, entry := range os.Environ() {
		if k, v, ok := strings.Cut(entry, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range extra {
		envMap[k] = v
	}
	env := make([]string, 0, len(envMap))
	for k, v := range envMap {
		env = append(env, k+"="+v)
	}
	return env
}

func logConnectHint(logger *logging.Logger, name string, cfg config.MCPServerConfig, err error) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "endpoint not received"):
		logger.WarnKV("Server did not respond as an SSE endpoint, check the URL and transport", "server", name, "url", cfg.URL)
	case strings.Contains(msg, "connection refused"):
		logger.WarnKV("Connection refused, ensure the server is running", "server", name, "url", cfg.URL)
	case isStdioExit(err):
		logger.WarnKV("Stdio process exited early, check command, args and env", "server", name, "command", cfg.Command)
	}
}
