package mcp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
)

type fakeSession struct {
	tools      []mcp.Tool
	listErr    error
	call       func(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
	calls      int32
	closeCalls int32
}

func (f *fakeSession) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return f.tools, f.listErr
}

func (f *fakeSession) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.call != nil {
		return f.call(ctx, name, args)
	}
	return mcp.NewToolResultText("ok:" + name), nil
}

func (f *fakeSession) Close() error {
	atomic.AddInt32(&f.closeCalls, 1)
	return nil
}

func fakeDialer(sessions map[string]*fakeSession, failures map[string]error) Dialer {
	return func(ctx context.Context, name string, cfg config.MCPServerConfig) (Session, error) {
		if err, ok := failures[name]; ok {
			return nil, err
		}
		return sessions[name], nil
	}
}

func serversFor(names ...string) map[string]config.MCPServerConfig {
	servers := make(map[string]config.MCPServerConfig, len(names))
	for _, name := range names {
		servers[name] = config.MCPServerConfig{Command: name}
	}
	return servers
}

func quietLogger() *logging.Logger {
	return logging.New("test", logging.LevelFatal)
}

func searchTool() mcp.Tool {
	return mcp.NewTool("search_web",
		mcp.WithDescription("Search the web"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
	)
}

func newTestClient(t *testing.T, servers map[string]config.MCPServerConfig, sessions map[string]*fakeSession, failures map[string]error) *MultiClient {
	t.Helper()
	m := NewMultiClient(servers, WithDialer(fakeDialer(sessions, failures)), WithLogger(quietLogger()))
	t.Cleanup(func() { _ = m.CloseAll() })
	return m
}

func TestConnectAllBuildsUnionCatalogue(t *testing.T) {
	sessions := map[string]*fakeSession{
		"search":   {tools: []mcp.Tool{searchTool()}},
		"creative": {tools: []mcp.Tool{mcp.NewTool("write_story"), mcp.NewTool("generate_image")}},
		"empty":    {},
	}
	m := newTestClient(t, serversFor("search", "creative", "empty"), sessions, nil)

	require.NoError(t, m.ConnectAll(context.Background()))

	tools := m.ListTools()
	owners := make(map[string]string, len(tools))
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		owners[tool.Name] = tool.ServerName
		names = append(names, tool.Name)
	}

	assert.Equal(t, []string{"generate_image", "search_web", "write_story"}, names)
	assert.Equal(t, map[string]string{
		"search_web":     "search",
		"write_story":    "creative",
		"generate_image": "creative",
	}, owners)
	assert.Equal(t, []string{"creative", "empty", "search"}, m.Servers())

	schema := tools[1].InputSchema
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []interface{}{"query"}, schema["required"])
}

func TestConnectAllRejectsNameCollision(t *testing.T) {
	a := &fakeSession{tools: []mcp.Tool{searchTool()}}
	b := &fakeSession{tools: []mcp.Tool{searchTool()}}
	m := newTestClient(t, serversFor("a", "b"), map[string]*fakeSession{"a": a, "b": b}, nil)

	err := m.ConnectAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, customErrors.ErrToolNameCollision)
	assert.Contains(t, err.Error(), "'a' and 'b'")

	servers, ok := customErrors.GetErrorData(err, "servers")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, servers)

	assert.Equal(t, int32(1), atomic.LoadInt32(&a.closeCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.closeCalls))
	assert.Empty(t, m.ListTools())
}

func TestConnectAllFailsFast(t *testing.T) {
	tests := []struct {
		name     string
		failures map[string]error
		listErr  error
	}{
		{name: "dial failure", failures: map[string]error{"b": errors.New("connection refused")}},
		{name: "list failure", listErr: errors.New("transport error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeSession{tools: []mcp.Tool{mcp.NewTool("create_ascii_art")}}
			b := &fakeSession{tools: []mcp.Tool{searchTool()}, listErr: tt.listErr}
			m := newTestClient(t, serversFor("a", "b"), map[string]*fakeSession{"a": a, "b": b}, tt.failures)

			err := m.ConnectAll(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, customErrors.ErrConnection)
			server, _ := customErrors.GetErrorData(err, "server")
			assert.Equal(t, "b", server)

			assert.Equal(t, int32(1), atomic.LoadInt32(&a.closeCalls), "already opened session must be closed")
			assert.Empty(t, m.ListTools())
			assert.Empty(t, m.Servers())
		})
	}
}

func TestConnectAllTwice(t *testing.T) {
	m := newTestClient(t, serversFor("a"), map[string]*fakeSession{"a": {}}, nil)
	require.NoError(t, m.ConnectAll(context.Background()))

	err := m.ConnectAll(context.Background())
	code, _ := customErrors.GetErrorCode(err)
	assert.Equal(t, customErrors.CodeConnectionExists, code)
}

func TestConnectAllHonoursAllowList(t *testing.T) {
	servers := map[string]config.MCPServerConfig{
		"creative": {Command: "c", Tools: config.MCPToolsConfig{BlockList: []string{"generate_image"}}},
	}
	sessions := map[string]*fakeSession{
		"creative": {tools: []mcp.Tool{mcp.NewTool("write_story"), mcp.NewTool("generate_image")}},
	}
	m := newTestClient(t, servers, sessions, nil)
	require.NoError(t, m.ConnectAll(context.Background()))

	tools := m.ListTools()
	require.Len(t, tools, 1)
	assert.Equal(t, "write_story", tools[0].Name)

	_, err := m.Invoke(context.Background(), "generate_image", nil)
	assert.ErrorIs(t, err, customErrors.ErrToolNotFound)
}

func TestInvoke(t *testing.T) {
	search := &fakeSession{
		tools: []mcp.Tool{searchTool()},
		call: func(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
			switch args["query"] {
			case "fail":
				return mcp.NewToolResultError("upstream returned 503"), nil
			case "broken":
				return nil, errors.New("transport error: pipe closed")
			case "slow":
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return mcp.NewToolResultText("results for " + args["query"].(string)), nil
		},
	}
	m := newTestClient(t, serversFor("search"), map[string]*fakeSession{"search": search}, nil)
	require.NoError(t, m.ConnectAll(context.Background()))

	t.Run("success", func(t *testing.T) {
		res, err := m.Invoke(context.Background(), "search_web", map[string]interface{}{"query": "go"})
		require.NoError(t, err)
		assert.False(t, res.IsError)
		assert.Equal(t, "search", res.Server)
		assert.Equal(t, "results for go", res.Payload())
	})

	t.Run("unknown tool", func(t *testing.T) {
		before := atomic.LoadInt32(&search.calls)
		_, err := m.Invoke(context.Background(), "nonexistent_tool", map[string]interface{}{})
		require.Error(t, err)
		assert.ErrorIs(t, err, customErrors.ErrToolNotFound)
		assert.Equal(t, before, atomic.LoadInt32(&search.calls))
	})

	t.Run("tool reported error is a payload", func(t *testing.T) {
		res, err := m.Invoke(context.Background(), "search_web", map[string]interface{}{"query": "fail"})
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.JSONEq(t, `{"error": "upstream returned 503"}`, res.Payload())
	})

	t.Run("transport failure", func(t *testing.T) {
		_, err := m.Invoke(context.Background(), "search_web", map[string]interface{}{"query": "broken"})
		require.Error(t, err)
		assert.ErrorIs(t, err, customErrors.ErrToolInvocation)
	})

	t.Run("timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := m.Invoke(ctx, "search_web", map[string]interface{}{"query": "slow"})
		require.Error(t, err)
		assert.ErrorIs(t, err, customErrors.ErrTimeout)
	})

	t.Run("schema violation", func(t *testing.T) {
		before := atomic.LoadInt32(&search.calls)
		_, err := m.Invoke(context.Background(), "search_web", map[string]interface{}{"q": "go"})
		require.Error(t, err)
		assert.ErrorIs(t, err, customErrors.ErrInvalidArguments)
		assert.Equal(t, before, atomic.LoadInt32(&search.calls))
	})
}

func TestValidationCanBeDisabled(t *testing.T) {
	search := &fakeSession{tools: []mcp.Tool{searchTool()}}
	m := NewMultiClient(serversFor("search"),
		WithDialer(fakeDialer(map[string]*fakeSession{"search": search}, nil)),
		WithLogger(quietLogger()),
		WithArgumentValidation(false))
	defer m.CloseAll()
	require.NoError(t, m.ConnectAll(context.Background()))

	_, err := m.Invoke(context.Background(), "search_web", map[string]interface{}{})
	assert.NoError(t, err)
}

func TestCloseAllIsIdempotent(t *testing.T) {
	a := &fakeSession{tools: []mcp.Tool{searchTool()}}
	b := &fakeSession{tools: []mcp.Tool{mcp.NewTool("write_story")}}
	m := newTestClient(t, serversFor("a", "b"), map[string]*fakeSession{"a": a, "b": b}, nil)
	require.NoError(t, m.ConnectAll(context.Background()))

	require.NoError(t, m.CloseAll())
	require.NoError(t, m.CloseAll())

	assert.Equal(t, int32(1), atomic.LoadInt32(&a.closeCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&b.closeCalls))
	assert.Empty(t, m.ListTools())

	_, err := m.Invoke(context.Background(), "search_web", map[string]interface{}{"query": "go"})
	assert.ErrorIs(t, err, customErrors.ErrToolNotFound)
	assert.Error(t, m.ConnectAll(context.Background()))
}

func TestCloseAllWithoutConnect(t *testing.T) {
	m := newTestClient(t, serversFor("a"), nil, nil)
	assert.NoError(t, m.CloseAll())
}

func TestReloadSwapsCatalogue(t *testing.T) {
	old := &fakeSession{tools: []mcp.Tool{searchTool()}}
	fresh := &fakeSession{tools: []mcp.Tool{mcp.NewTool("create_ascii_art")}}
	sessions := map[string]*fakeSession{"old": old, "fresh": fresh}
	m := newTestClient(t, serversFor("old"), sessions, nil)
	require.NoError(t, m.ConnectAll(context.Background()))

	require.NoError(t, m.Reload(context.Background(), serversFor("fresh")))
	assert.Equal(t, int32(1), atomic.LoadInt32(&old.closeCalls))
	require.Len(t, m.ListTools(), 1)
	assert.Equal(t, "create_ascii_art", m.ListTools()[0].Name)
}

func TestReloadFailureKeepsCatalogue(t *testing.T) {
	old := &fakeSession{tools: []mcp.Tool{searchTool()}}
	m := newTestClient(t, serversFor("old"), map[string]*fakeSession{"old": old},
		map[string]error{"broken": errors.New("connection refused")})
	require.NoError(t, m.ConnectAll(context.Background()))

	err := m.Reload(context.Background(), serversFor("broken"))
	assert.ErrorIs(t, err, customErrors.ErrConnection)
	assert.Equal(t, int32(0), atomic.LoadInt32(&old.closeCalls))
	assert.Len(t, m.ListTools(), 1)
}

// sessionLedger hands out a fresh session per dial and remembers all of them
type sessionLedger struct {
	mu       sync.Mutex
	sessions []*fakeSession
	delay    time.Duration
}

func (l *sessionLedger) dial(ctx context.Context, name string, _ config.MCPServerConfig) (Session, error) {
	time.Sleep(l.delay)
	s := &fakeSession{tools: []mcp.Tool{mcp.NewTool("tool_" + name)}}
	l.mu.Lock()
	l.sessions = append(l.sessions, s)
	l.mu.Unlock()
	return s, nil
}

func (l *sessionLedger) openSessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	open := 0
	for _, s := range l.sessions {
		if atomic.LoadInt32(&s.closeCalls) == 0 {
			open++
		}
	}
	return open
}

func TestConcurrentConnectAllOpensOneSessionPerServer(t *testing.T) {
	ledger := &sessionLedger{delay: 20 * time.Millisecond}
	m := NewMultiClient(serversFor("search"), WithDialer(ledger.dial), WithLogger(quietLogger()))

	const callers = 4
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.ConnectAll(context.Background())
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		code, _ := customErrors.GetErrorCode(err)
		assert.Equal(t, customErrors.CodeConnectionExists, code)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, ledger.sessions, 1)
	assert.Equal(t, 1, ledger.openSessions())

	require.NoError(t, m.CloseAll())
	assert.Zero(t, ledger.openSessions())
}

func TestReloadRacingConnectAllLeaksNothing(t *testing.T) {
	ledger := &sessionLedger{delay: 10 * time.Millisecond}
	m := NewMultiClient(serversFor("search"), WithDialer(ledger.dial), WithLogger(quietLogger()))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = m.ConnectAll(context.Background())
	}()
	go func() {
		defer wg.Done()
		_ = m.Reload(context.Background(), serversFor("search"))
	}()
	wg.Wait()

	assert.Equal(t, 1, ledger.openSessions())
	assert.Equal(t, []string{"search"}, m.Servers())

	require.NoError(t, m.CloseAll())
	assert.Zero(t, ledger.openSessions())
}

func TestConnectAllDialsServersConcurrently(t *testing.T) {
	const servers = 3
	var started sync.WaitGroup
	started.Add(servers)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	dial := func(ctx context.Context, name string, _ config.MCPServerConfig) (Session, error) {
		started.Done()
		select {
		case <-allStarted:
			return &fakeSession{tools: []mcp.Tool{mcp.NewTool("tool_" + name)}}, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("dialed one server at a time")
		}
	}
	m := NewMultiClient(serversFor("a", "b", "c"), WithDialer(dial), WithLogger(quietLogger()))
	t.Cleanup(func() { _ = m.CloseAll() })

	require.NoError(t, m.ConnectAll(context.Background()))
	assert.Len(t, m.ListTools(), servers)
}

func TestConnectAllFailureCancelsPendingDials(t *testing.T) {
	slow := &fakeSession{tools: []mcp.Tool{searchTool()}}
	dial := func(ctx context.Context, name string, _ config.MCPServerConfig) (Session, error) {
		if name == "broken" {
			return nil, errors.New("connection refused")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
			return slow, nil
		}
	}
	m := NewMultiClient(serversFor("broken", "slow"), WithDialer(dial), WithLogger(quietLogger()))
	t.Cleanup(func() { _ = m.CloseAll() })

	start := time.Now()
	err := m.ConnectAll(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	server, _ := customErrors.GetErrorData(err, "server")
	assert.Equal(t, "broken", server)
	assert.Empty(t, m.Servers())
}
