package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/monitoring"
)

// RetryOptions controls SSE reconnection
type RetryOptions struct {
	MaxAttempts int
	Backoff     time.Duration
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
	return o
}

// SSEMCPClientWithRetry re-establishes the SSE stream when a tool call fails
// with a transport error, then retries the call once.
type SSEMCPClientWithRetry struct {
	*client.Client

	serverAddr string
	headers    map[string]string
	retry      RetryOptions
	log        *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mutex sync.RWMutex

	reconnectMu           sync.Mutex
	isReconnectInProgress bool
	reconnectErr          error
	reconnectDoneCh       chan struct{}
}

func NewSSEMCPClientWithRetry(serverAddr string, headers map[string]string, log *logging.Logger, retry RetryOptions) (*SSEMCPClientWithRetry, error) {
	if log == nil {
		log = logging.New("mcp-sse", logging.LevelInfo)
	}

	sseClient, err := newSSEClient(serverAddr, headers)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &SSEMCPClientWithRetry{
		Client:     sseClient,
		serverAddr: serverAddr,
		headers:    headers,
		retry:      retry.withDefaults(),
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

func newSSEClient(serverAddr string, headers map[string]string) (*client.Client, error) {
	if len(headers) > 0 {
		return client.NewSSEMCPClient(serverAddr, transport.WithHeaders(headers))
	}
	return client.NewSSEMCPClient(serverAddr)
}

// Start opens the SSE stream. The stream lives until Close, not until ctx ends.
func (c *SSEMCPClientWithRetry) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.Client.Start(c.ctx)
}

func (c *SSEMCPClientWithRetry) Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.Client.Initialize(ctx, request)
}

func (c *SSEMCPClientWithRetry) ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.Client == nil {
		return nil, fmt.Errorf("client not connected")
	}
	return c.Client.ListTools(ctx, request)
}

func (c *SSEMCPClientWithRetry) CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := c.callTool(ctx, request)
	if err == nil {
		return result, nil
	}

	if !isTransportError(err) {
		return nil, err
	}

	c.log.ErrorKV("Tool call failed, attempting reconnect", "server", c.serverAddr, "error", err)

	if err = c.sharedReconnect(ctx); err != nil {
		return nil, fmt.Errorf("tool call failed after reconnect attempt: %w", err)
	}

	result, err = c.callTool(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("tool call failed after reconnect: %w", err)
	}

	return result, nil
}

func (c *SSEMCPClientWithRetry) Close() error {
	c.cancel()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.Client != nil {
		err := c.Client.Close()
		c.Client = nil
		return err
	}
	return nil
}

func isTransportError(err error) bool {
	return strings.Contains(err.Error(), "transport error")
}

func (c *SSEMCPClientWithRetry) callTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.Client == nil {
		return nil, fmt.Errorf("client not connected")
	}
	return c.Client.CallTool(ctx, request)
}

func (c *SSEMCPClientWithRetry) connect() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.ctx.Err() != nil {
		return c.ctx.Err()
	}

	if c.Client != nil {
		if err := c.Client.Close(); err != nil {
			c.log.WarnKV("Failed to close old client during reconnect", "error", err)
		}
	}

	sseClient, err := newSSEClient(c.serverAddr, c.headers)
	if err != nil {
		return err
	}

	if err = sseClient.Start(c.ctx); err != nil {
		_ = sseClient.Close()
		return err
	}

	if err = Initialize(c.ctx, sseClient.Initialize); err != nil {
		_ = sseClient.Close()
		return err
	}

	c.Client = sseClient
	return nil
}

// sharedReconnect ensures only one reconnect attempt runs, others wait for it.
func (c *SSEMCPClientWithRetry) sharedReconnect(ctx context.Context) error {
	c.reconnectMu.Lock()
	if c.isReconnectInProgress {
		ready := c.reconnectDoneCh
		c.reconnectMu.Unlock()

		select {
		case <-ready:
			c.reconnectMu.Lock()
			defer c.reconnectMu.Unlock()
			return c.reconnectErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.isReconnectInProgress = true
	done := make(chan struct{})
	c.reconnectDoneCh = done
	c.reconnectMu.Unlock()

	go c.reconnectLoop(done)

	select {
	case <-done:
		c.reconnectMu.Lock()
		defer c.reconnectMu.Unlock()
		return c.reconnectErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SSEMCPClientWithRetry) reconnectLoop(done chan struct{}) {
	var err error
	success := false

attempts:
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if err = c.connect(); err == nil {
			success = true
			break
		}

		delay := time.Duration(attempt) * c.retry.Backoff
		monitoring.UpdateBackoffDelay(delay)
		c.log.InfoKV("Reconnect failed", "server", c.serverAddr, "attempt", attempt, "next_delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-c.ctx.Done():
			err = c.ctx.Err()
			break attempts
		}
	}
	monitoring.UpdateBackoffDelay(0)

	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	if success {
		c.log.InfoKV("Reconnected successfully", "server", c.serverAddr)
		c.reconnectErr = nil
	} else {
		c.log.ErrorKV("All reconnect attempts failed, client is still disconnected", "server", c.serverAddr)
		c.reconnectErr = err
	}
	close(done)
	c.isReconnectInProgress = false
}
