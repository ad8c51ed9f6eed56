// Package agent runs the reason-act loop that turns a user message into a
// final answer, calling tools from the aggregated catalogue along the way.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/tuannvm/mcp-creative-agent/internal/common"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/mcp"
	"github.com/tuannvm/mcp-creative-agent/internal/observability"
)

// State is a phase of a run
type State string

const (
	StateAwaitingInput     State = "AWAITING_INPUT"
	StateThinking          State = "THINKING"
	StateToolCall          State = "TOOL_CALL"
	StateFinalAnswer       State = "FINAL_ANSWER"
	StateStepLimitExceeded State = "STEP_LIMIT_EXCEEDED"
	StateError             State = "ERROR"
)

// Defaults applied by New
const (
	DefaultMaxSteps    = 15
	DefaultLLMTimeout  = 2 * time.Minute
	DefaultToolTimeout = time.Minute
)

// Model decides the next step given the thread history and the catalogue
type Model interface {
	Generate(ctx context.Context, history []common.Message, tools []common.ToolDescriptor) (common.Decision, error)
}

// ToolInvoker is the tool side of the agent, normally *mcp.MultiClient
type ToolInvoker interface {
	ListTools() []common.ToolDescriptor
	Invoke(ctx context.Context, name string, args map[string]interface{}) (*mcp.ToolResult, error)
}

// Result is the outcome of a run. Answer is always readable text.
type Result struct {
	Answer string
	State  State
	Steps  int
}

// Agent is shared by every conversation thread
type Agent struct {
	model         Model
	tools         ToolInvoker
	store         Store
	maxSteps      int
	memoryEnabled bool
	historyLimit  int
	llmTimeout    time.Duration
	toolTimeout   time.Duration
	tracer        observability.TracingHandler
	logger        *logging.Logger

	mu      sync.Mutex
	threads map[string]*thread
}

// thread serializes runs on one thread id and tracks the in-flight run
type thread struct {
	run    sync.Mutex
	cancel context.CancelFunc
}

// Option configures an Agent
type Option func(*Agent)

// WithMaxSteps bounds the tool-call steps of one run
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// WithMemory turns conversation memory on or off
func WithMemory(enabled bool) Option {
	return func(a *Agent) { a.memoryEnabled = enabled }
}

// WithStore sets where thread histories live
func WithStore(s Store) Option {
	return func(a *Agent) {
		if s != nil {
			a.store = s
		}
	}
}

// WithHistoryLimit keeps at most n messages per thread, trimmed at turn
// boundaries. 0 keeps everything.
func WithHistoryLimit(n int) Option {
	return func(a *Agent) { a.historyLimit = n }
}

// WithTimeouts bounds each model call and each tool call. Zero keeps the default.
func WithTimeouts(llm, tool time.Duration) Option {
	return func(a *Agent) {
		if llm > 0 {
			a.llmTimeout = llm
		}
		if tool > 0 {
			a.toolTimeout = tool
		}
	}
}

// WithTracer records spans for runs and tool calls
func WithTracer(t observability.TracingHandler) Option {
	return func(a *Agent) {
		if t != nil {
			a.tracer = t
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an agent. Memory is on and backed by an in-process store
// unless options say otherwise.
func New(model Model, tools ToolInvoker, opts ...Option) *Agent {
	a := &Agent{
		model:         model,
		tools:         tools,
		maxSteps:      DefaultMaxSteps,
		memoryEnabled: true,
		llmTimeout:    DefaultLLMTimeout,
		toolTimeout:   DefaultToolTimeout,
		tracer:        observability.Disabled(),
		logger:        logging.New("agent", logging.LevelInfo),
		threads:       make(map[string]*thread),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.store == nil {
		a.store = NewInMemoryStore()
	}
	return a
}

// MemoryEnabled reports whether histories persist across runs
func (a *Agent) MemoryEnabled() bool {
	return a.memoryEnabled
}

// MaxSteps returns the step bound of one run
func (a *Agent) MaxSteps() int {
	return a.maxSteps
}

// ListTools returns the current catalogue
func (a *Agent) ListTools() []common.ToolDescriptor {
	return a.tools.ListTools()
}

// Clear resets one thread's history. It waits for an in-flight run on the
// same thread to finish. With memory disabled it only logs a warning.
func (a *Agent) Clear(ctx context.Context, threadID string) error {
	if !a.memoryEnabled {
		a.logger.WarnKV("Memory not enabled, nothing to clear", "thread_id", threadID)
		return nil
	}

	th := a.thread(threadID)
	th.run.Lock()
	defer th.run.Unlock()

	if err := a.store.Clear(ctx, threadID); err != nil {
		a.logger.ErrorKV("Failed to clear conversation history", "thread_id", threadID, "error", err)
		return err
	}
	a.logger.InfoKV("Cleared conversation history", "thread_id", threadID)
	return nil
}

// History returns a copy of a thread's committed history
func (a *Agent) History(ctx context.Context, threadID string) ([]common.Message, error) {
	if !a.memoryEnabled {
		return nil, nil
	}
	return a.store.Load(ctx, threadID)
}

// Cancel stops the in-flight run of a thread. It reports whether a run was cancelled.
func (a *Agent) Cancel(threadID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	th, ok := a.threads[threadID]
	if !ok || th.cancel == nil {
		return false
	}
	th.cancel()
	a.logger.InfoKV("Cancelled in-flight run", "thread_id", threadID)
	return true
}

func (a *Agent) thread(threadID string) *thread {
	a.mu.Lock()
	defer a.mu.Unlock()
	th, ok := a.threads[threadID]
	if !ok {
		th = &thread{}
		a.threads[threadID] = th
	}
	return th
}

func (a *Agent) setCancel(th *thread, cancel context.CancelFunc) {
	a.mu.Lock()
	th.cancel = cancel
	a.mu.Unlock()
}
