package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tuannvm/mcp-creative-agent/internal/common"
	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
	"github.com/tuannvm/mcp-creative-agent/internal/monitoring"
)

type toolEntry struct {
	descriptor common.ToolDescriptor
	schema     *jsonschema.Schema
}

// catalogue is one consistent set of sessions and the tools they expose
type catalogue struct {
	sessions map[string]Session
	tools    map[string]toolEntry
}

// MultiClient holds sessions to every configured tool server and routes
// tool invocations to the server that advertised the tool.
type MultiClient struct {
	servers  map[string]config.MCPServerConfig
	dial     Dialer
	log      *logging.Logger
	validate bool

	// connectMu serializes ConnectAll and Reload. mu guards the fields below
	// and is never held while dialing, so Invoke and CloseAll stay responsive.
	connectMu sync.Mutex
	mu        sync.RWMutex
	cat       catalogue
	closed    bool
}

// Option configures a MultiClient
type Option func(*MultiClient)

// WithDialer replaces the transport dialer
func WithDialer(d Dialer) Option {
	return func(m *MultiClient) { m.dial = d }
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(m *MultiClient) { m.log = l }
}

// WithArgumentValidation toggles JSON-schema validation of tool arguments
func WithArgumentValidation(enabled bool) Option {
	return func(m *MultiClient) { m.validate = enabled }
}

// NewMultiClient creates a client for servers. No connection is made until ConnectAll.
func NewMultiClient(servers map[string]config.MCPServerConfig, opts ...Option) *MultiClient {
	m := &MultiClient{
		servers:  servers,
		validate: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logging.New("mcp-multiclient", logging.LevelInfo)
	}
	if m.dial == nil {
		m.dial = DefaultDialer(DialOptions{Logger: m.log})
	}
	return m
}

// ConnectAll opens a session to every server and builds the tool catalogue.
//
// Any failure is fatal: sessions opened so far are closed and the error names
// the server. Two servers advertising the same tool name is also a failure.
// Concurrent calls are serialized; only the first one connects.
func (m *MultiClient) ConnectAll(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.RLock()
	closed, connected, servers := m.closed, m.cat.sessions != nil, m.servers
	m.mu.RUnlock()
	if closed {
		return customErrors.NewMCPError(customErrors.CodeConnectionFailed, "multi-client is closed")
	}
	if connected {
		return customErrors.NewMCPError(customErrors.CodeConnectionExists, "multi-client is already connected")
	}

	cat, err := m.connectSet(ctx, servers)
	if err != nil {
		return err
	}
	if _, err := m.publish(cat, nil); err != nil {
		return err
	}

	monitoring.ConnectedServers.Set(float64(len(cat.sessions)))
	m.log.InfoKV("Connected to tool servers", "servers", len(cat.sessions), "tools", len(cat.tools))
	return nil
}

// Reload connects to servers from scratch and swaps the new catalogue in.
// On failure the current catalogue stays in place. Reload and ConnectAll
// never dial at the same time.
func (m *MultiClient) Reload(ctx context.Context, servers map[string]config.MCPServerConfig) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	cat, err := m.connectSet(ctx, servers)
	if err != nil {
		return err
	}
	old, err := m.publish(cat, servers)
	if err != nil {
		return err
	}

	_ = closeSessions(old.sessions, m.log)
	monitoring.ConnectedServers.Set(float64(len(cat.sessions)))
	m.log.InfoKV("Reloaded tool servers", "servers", len(cat.sessions), "tools", len(cat.tools))
	return nil
}

// publish installs cat and returns the catalogue it replaced. If CloseAll
// ran while dialing, cat is closed instead.
func (m *MultiClient) publish(cat catalogue, servers map[string]config.MCPServerConfig) (catalogue, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = closeSessions(cat.sessions, m.log)
		return catalogue{}, customErrors.NewMCPError(customErrors.CodeConnectionFailed, "multi-client closed while connecting")
	}
	old := m.cat
	m.cat = cat
	if servers != nil {
		m.servers = servers
	}
	m.mu.Unlock()
	return old, nil
}

type dialResult struct {
	session Session
	tools   []mcp.Tool
	err     error
}

// connectSet dials every server concurrently. The first failure cancels the
// dials still in flight and every session that did open is closed.
func (m *MultiClient) connectSet(ctx context.Context, servers map[string]config.MCPServerConfig) (catalogue, error) {
	if err := ctx.Err(); err != nil {
		return catalogue{}, customErrors.FromContext(ctx, customErrors.ErrorDomainMCP, "connect cancelled")
	}

	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	sort.Strings(names)

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	results := make([]dialResult, len(names))
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			res := m.dialOne(dialCtx, name, servers[name])
			results[i] = res
			if res.err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = res.err
					cancel()
				}
				errMu.Unlock()
			}
		}(i, name)
	}
	wg.Wait()

	cat := catalogue{
		sessions: make(map[string]Session, len(names)),
		tools:    make(map[string]toolEntry),
	}
	for i, name := range names {
		if results[i].session != nil {
			cat.sessions[name] = results[i].session
		}
	}
	fail := func(err error) (catalogue, error) {
		_ = closeSessions(cat.sessions, m.log)
		return catalogue{}, err
	}

	if firstErr != nil {
		if ctx.Err() != nil {
			return fail(customErrors.FromContext(ctx, customErrors.ErrorDomainMCP, "connect cancelled"))
		}
		return fail(firstErr)
	}

	for i, name := range names {
		serverCfg := servers[name]
		for _, tool := range results[i].tools {
			if !serverCfg.Tools.Allows(tool.Name) {
				m.log.DebugKV("Tool filtered out by configuration", "server", name, "tool", tool.Name)
				continue
			}
			if existing, ok := cat.tools[tool.Name]; ok {
				return fail(customErrors.NewMCPErrorf(customErrors.CodeToolNameCollision,
					"tool '%s' is provided by both '%s' and '%s'", tool.Name, existing.descriptor.ServerName, name).
					WithData("tool", tool.Name).
					WithData("servers", []string{existing.descriptor.ServerName, name}))
			}
			cat.tools[tool.Name] = m.buildEntry(name, tool)
		}
		m.log.InfoKV("Discovered tools", "server", name, "count", len(results[i].tools))
	}

	return cat, nil
}

// dialOne opens one session and lists its tools. A session that opened is
// returned even when listing fails, so the caller can close it.
func (m *MultiClient) dialOne(ctx context.Context, name string, serverCfg config.MCPServerConfig) dialResult {
	session, err := m.dial(ctx, name, serverCfg)
	if err != nil {
		m.log.ErrorKV("Failed to connect to tool server", "server", name, "error", err)
		return dialResult{err: wrapConnectError(err, name, "failed to connect to server '%s'")}
	}
	tools, err := session.ListTools(ctx)
	if err != nil {
		m.log.ErrorKV("Failed to list tools", "server", name, "error", err)
		return dialResult{session: session, err: wrapConnectError(err, name, "failed to list tools on server '%s'")}
	}
	return dialResult{session: session, tools: tools}
}

func wrapConnectError(err error, server, format string) error {
	if customErrors.Is(err, customErrors.ErrConnection) {
		return err
	}
	return customErrors.WrapMCPError(err, customErrors.CodeConnectionFailed, fmt.Sprintf(format, server)).
		WithData("server", server)
}

func (m *MultiClient) buildEntry(server string, tool mcp.Tool) toolEntry {
	schemaMap := inputSchema(tool)
	entry := toolEntry{
		descriptor: common.ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaMap,
			ServerName:  server,
		},
	}
	if !m.validate || len(schemaMap) == 0 {
		return entry
	}

	raw, err := json.Marshal(schemaMap)
	if err != nil {
		return entry
	}
	resource := fmt.Sprintf("mem://%s/%s.json", url.PathEscape(server), url.PathEscape(tool.Name))
	compiled, err := jsonschema.CompileString(resource, string(raw))
	if err != nil {
		m.log.WarnKV("Tool input schema does not compile, arguments will not be validated",
			"server", server, "tool", tool.Name, "error", err)
		return entry
	}
	entry.schema = compiled
	return entry
}

// inputSchema extracts the tool's input schema as a generic JSON object
func inputSchema(tool mcp.Tool) map[string]interface{} {
	b, err := json.Marshal(tool)
	if err != nil {
		return nil
	}
	var decoded struct {
		InputSchema map[string]interface{} `json:"inputSchema"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		return nil
	}
	return decoded.InputSchema
}

// ListTools returns the aggregated catalogue sorted by tool name
func (m *MultiClient) ListTools() []common.ToolDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tools := make([]common.ToolDescriptor, 0, len(m.cat.tools))
	for _, entry := range m.cat.tools {
		tools = append(tools, entry.descriptor)
	}
	common.SortTools(tools)
	return tools
}

// Servers returns the names of servers with an open session
func (m *MultiClient) Servers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.cat.sessions))
	for name := range m.cat.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *MultiClient) lookup(name string) (toolEntry, Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.cat.tools[name]
	if !ok {
		return toolEntry{}, nil, customErrors.NewMCPErrorf(customErrors.CodeToolNotFound, "tool '%s' not found", name).
			WithData("tool", name)
	}
	return entry, m.cat.sessions[entry.descriptor.ServerName], nil
}

func validateArgs(entry toolEntry, args map[string]interface{}) error {
	if entry.schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	// Round-trip so numbers have the types the validator expects
	raw, err := json.Marshal(args)
	if err != nil {
		return customErrors.WrapMCPError(err, customErrors.CodeInvalidArguments, "arguments are not JSON-encodable")
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return customErrors.WrapMCPError(err, customErrors.CodeInvalidArguments, "arguments are not JSON-encodable")
	}
	if err := entry.schema.Validate(doc); err != nil {
		return customErrors.WrapMCPError(err, customErrors.CodeInvalidArguments,
			fmt.Sprintf("invalid arguments for tool '%s'", entry.descriptor.Name)).
			WithData("tool", entry.descriptor.Name)
	}
	return nil
}

// Invoke calls the named tool on the server that owns it.
//
// An unknown name yields ErrToolNotFound. Transport or protocol failures
// yield ErrToolInvocation, or ErrTimeout/ErrCancelled when ctx ended.
// A tool that reports its own failure returns a result with IsError set
// and a nil error.
func (m *MultiClient) Invoke(ctx context.Context, name string, args map[string]interface{}) (*ToolResult, error) {
	entry, session, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	server := entry.descriptor.ServerName

	if err := validateArgs(entry, args); err != nil {
		monitoring.RecordToolInvocation(name, server, customErrors.CodeInvalidArguments, 0)
		return nil, err
	}
	if session == nil {
		return nil, customErrors.NewMCPErrorf(customErrors.CodeToolInvocationFailed, "no session for server '%s'", server)
	}

	m.log.DebugKV("Invoking tool", "tool", name, "server", server, "args", logging.TruncateForLog(fmt.Sprint(args), 300))
	start := time.Now()
	result, err := session.CallTool(ctx, name, args)
	elapsed := time.Since(start)

	if err != nil {
		if ctxErr := customErrors.FromContext(ctx, customErrors.ErrorDomainMCP,
			fmt.Sprintf("tool '%s' did not complete", name)); ctxErr != nil {
			monitoring.RecordToolInvocation(name, server, ctxErr.Code, elapsed)
			return nil, ctxErr.WithData("tool", name)
		}
		monitoring.RecordToolInvocation(name, server, customErrors.CodeToolInvocationFailed, elapsed)
		m.log.WarnKV("Tool invocation failed", "tool", name, "server", server, "error", err)
		return nil, customErrors.WrapMCPError(err, customErrors.CodeToolInvocationFailed,
			fmt.Sprintf("failed to call tool '%s' on server '%s'", name, server)).
			WithData("tool", name).WithData("server", server)
	}

	out := &ToolResult{
		Tool:     name,
		Server:   server,
		Text:     contentText(result),
		IsError:  result != nil && result.IsError,
		Duration: elapsed,
	}
	errKind := ""
	if out.IsError {
		errKind = "tool_error"
		m.log.InfoKV("Tool reported an error", "tool", name, "server", server, "message", logging.TruncateForLog(out.Text, 200))
	}
	monitoring.RecordToolInvocation(name, server, errKind, elapsed)
	return out, nil
}

// CloseAll closes every session. Calls after the first return nil without
// touching any transport.
func (m *MultiClient) CloseAll() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	sessions := m.cat.sessions
	m.cat = catalogue{}
	m.mu.Unlock()

	err := closeSessions(sessions, m.log)
	monitoring.ConnectedServers.Set(0)
	m.log.InfoKV("Closed tool server sessions", "servers", len(sessions))
	return err
}

func closeSessions(sessions map[string]Session, logger *logging.Logger) error {
	var errs []error
	for name, session := range sessions {
		if err := session.Close(); err != nil {
			logger.WarnKV("Error closing tool server session", "server", name, "error", err)
			errs = append(errs, fmt.Errorf("server '%s': %w", name, err))
		}
	}
	return errors.Join(errs...)
}
