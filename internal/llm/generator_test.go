package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tuannvm/mcp-creative-agent/internal/common"
	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
	"github.com/tuannvm/mcp-creative-agent/internal/observability"
)

// fakeModel replays canned responses and records what it was sent
type fakeModel struct {
	mu        sync.Mutex
	responses []*llms.ContentResponse
	err       error
	block     bool
	messages  [][]llms.MessageContent
	options   []llms.CallOptions
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	var o llms.CallOptions
	for _, opt := range opts {
		opt(&o)
	}

	f.mu.Lock()
	f.messages = append(f.messages, messages)
	f.options = append(f.options, o)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "done"}}}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, opts...)
}

func textResponse(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func quietLogger() *logging.Logger {
	return logging.New("test", logging.LevelError)
}

var searchDescriptor = common.ToolDescriptor{
	Name:        "search_web",
	Description: "Search the web",
	ServerName:  "search",
	InputSchema: map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{"query": map[string]interface{}{"type": "string"}},
		"required":   []interface{}{"query"},
	},
}

func TestGenerateFinalAnswer(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse("Hi there")}}
	g := NewGenerator(model, "test-model", WithTemperature(0.7), WithMaxTokens(256), WithLogger(quietLogger()))

	decision, err := g.Generate(context.Background(), []common.Message{common.UserMessage("hello")}, []common.ToolDescriptor{searchDescriptor})
	require.NoError(t, err)
	assert.Equal(t, common.FinalAnswer{Text: "Hi there"}, decision)

	require.Len(t, model.messages, 1)
	sent := model.messages[0]
	require.Len(t, sent, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, sent[0].Role)
	assert.Equal(t, llms.TextContent{Text: DefaultSystemPrompt}, sent[0].Parts[0])
	assert.Equal(t, llms.ChatMessageTypeHuman, sent[1].Role)
	assert.Equal(t, llms.TextContent{Text: "hello"}, sent[1].Parts[0])

	opts := model.options[0]
	assert.InDelta(t, 0.7, opts.Temperature, 1e-9)
	assert.Equal(t, 256, opts.MaxTokens)
	require.Len(t, opts.Tools, 1)
	assert.Equal(t, "function", opts.Tools[0].Type)
	assert.Equal(t, "search_web", opts.Tools[0].Function.Name)
	assert.Equal(t, searchDescriptor.InputSchema, opts.Tools[0].Function.Parameters)
}

func TestGenerateNativeToolCalls(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{{
		Choices: []*llms.ContentChoice{{
			Content: "Let me look that up.",
			ToolCalls: []llms.ToolCall{
				{ID: "call_1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "search_web", Arguments: `{"query":"go"}`}},
				{Type: "function", FunctionCall: &llms.FunctionCall{Name: "create_ascii_art", Arguments: ""}},
			},
		}},
	}}}
	g := NewGenerator(model, "test-model", WithLogger(quietLogger()))

	decision, err := g.Generate(context.Background(), []common.Message{common.UserMessage("search go")}, nil)
	require.NoError(t, err)

	req, ok := decision.(common.ToolCallRequest)
	require.True(t, ok)
	assert.Equal(t, "Let me look that up.", req.Text)
	require.Len(t, req.Calls, 2)
	assert.Equal(t, common.ToolCall{ID: "call_1", Name: "search_web", Arguments: map[string]interface{}{"query": "go"}}, req.Calls[0])
	assert.True(t, strings.HasPrefix(req.Calls[1].ID, "call_"))
	assert.NotEqual(t, "call_1", req.Calls[1].ID)
	assert.Empty(t, req.Calls[1].Arguments)

	// no tools in the catalogue means no tools option
	assert.Empty(t, model.options[0].Tools)
}

func TestGenerateInvalidToolArguments(t *testing.T) {
	model := &fakeModel{responses: []*llms.ContentResponse{{
		Choices: []*llms.ContentChoice{{
			ToolCalls: []llms.ToolCall{{ID: "c", FunctionCall: &llms.FunctionCall{Name: "search_web", Arguments: "{not json"}}},
		}},
	}}}
	g := NewGenerator(model, "test-model", WithLogger(quietLogger()))

	_, err := g.Generate(context.Background(), []common.Message{common.UserMessage("x")}, nil)
	require.Error(t, err)
	code, _ := customErrors.GetErrorCode(err)
	assert.Equal(t, customErrors.CodeInvalidResponse, code)
}

func TestGenerateConvertsHistory(t *testing.T) {
	call := common.ToolCall{ID: "call_1", Name: "search_web", Arguments: map[string]interface{}{"query": "go"}}
	history := []common.Message{
		common.UserMessage("search go"),
		common.AssistantMessage("", call),
		common.ToolResultMessage(call, "Go is a language"),
	}
	model := &fakeModel{}
	g := NewGenerator(model, "test-model", WithSystemPrompt("be brief"), WithLogger(quietLogger()))

	_, err := g.Generate(context.Background(), history, []common.ToolDescriptor{searchDescriptor})
	require.NoError(t, err)

	sent := model.messages[0]
	require.Len(t, sent, 4)
	assert.Equal(t, llms.TextContent{Text: "be brief"}, sent[0].Parts[0])

	assert.Equal(t, llms.ChatMessageTypeAI, sent[2].Role)
	require.Len(t, sent[2].Parts, 1)
	assert.Equal(t, llms.ToolCall{
		ID:           "call_1",
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: "search_web", Arguments: `{"query":"go"}`},
	}, sent[2].Parts[0])

	assert.Equal(t, llms.ChatMessageTypeTool, sent[3].Role)
	assert.Equal(t, llms.ToolCallResponse{ToolCallID: "call_1", Name: "search_web", Content: "Go is a language"}, sent[3].Parts[0])
}

func TestGeneratePromptMode(t *testing.T) {
	reply := "Sure.\n```json\n{\"tool\": \"search_web\", \"args\": {\"query\": \"golang\"}}\n```"
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse(reply)}}
	g := NewGenerator(model, "test-model", WithToolMode(config.ToolModePrompt), WithLogger(quietLogger()))

	decision, err := g.Generate(context.Background(), []common.Message{common.UserMessage("search golang")}, []common.ToolDescriptor{searchDescriptor})
	require.NoError(t, err)

	req, ok := decision.(common.ToolCallRequest)
	require.True(t, ok)
	require.Len(t, req.Calls, 1)
	assert.Equal(t, "search_web", req.Calls[0].Name)
	assert.Equal(t, map[string]interface{}{"query": "golang"}, req.Calls[0].Arguments)
	assert.NotEmpty(t, req.Calls[0].ID)

	assert.Empty(t, model.options[0].Tools)
	system := model.messages[0][0].Parts[0].(llms.TextContent).Text
	assert.Contains(t, system, "Tool Name: search_web")
	assert.Contains(t, system, "EXACT JSON FORMAT FOR TOOL CALLS")
}

func TestGeneratePromptModeHistoryIsText(t *testing.T) {
	call := common.ToolCall{ID: "call_1", Name: "search_web", Arguments: map[string]interface{}{"query": "go"}}
	history := []common.Message{
		common.UserMessage("search go"),
		common.AssistantMessage("", call),
		common.ToolResultMessage(call, "Go is a language"),
	}
	model := &fakeModel{}
	g := NewGenerator(model, "test-model", WithToolMode(config.ToolModePrompt), WithLogger(quietLogger()))

	_, err := g.Generate(context.Background(), history, []common.ToolDescriptor{searchDescriptor})
	require.NoError(t, err)

	sent := model.messages[0]
	require.Len(t, sent, 4)
	assert.Equal(t, llms.TextContent{Text: `{"tool":"search_web","args":{"query":"go"}}`}, sent[2].Parts[0])
	assert.Equal(t, llms.ChatMessageTypeHuman, sent[3].Role)
	assert.Contains(t, sent[3].Parts[0].(llms.TextContent).Text, "Go is a language")
}

func TestGenerateNativeIgnoresJSONText(t *testing.T) {
	reply := `{"tool": "search_web", "args": {"query": "golang"}}`
	model := &fakeModel{responses: []*llms.ContentResponse{textResponse(reply)}}
	g := NewGenerator(model, "test-model", WithLogger(quietLogger()))

	decision, err := g.Generate(context.Background(), []common.Message{common.UserMessage("x")}, []common.ToolDescriptor{searchDescriptor})
	require.NoError(t, err)
	assert.Equal(t, common.FinalAnswer{Text: reply}, decision)
}

func TestGenerateErrors(t *testing.T) {
	history := []common.Message{common.UserMessage("x")}

	t.Run("provider failure", func(t *testing.T) {
		g := NewGenerator(&fakeModel{err: errors.New("rate limited")}, "m", WithLogger(quietLogger()))
		_, err := g.Generate(context.Background(), history, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, customErrors.ErrLLM))
		assert.Contains(t, err.Error(), "rate limited")
	})

	t.Run("timeout", func(t *testing.T) {
		g := NewGenerator(&fakeModel{block: true}, "m", WithLogger(quietLogger()))
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := g.Generate(ctx, history, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, customErrors.ErrTimeout))
	})

	t.Run("cancelled", func(t *testing.T) {
		g := NewGenerator(&fakeModel{block: true}, "m", WithLogger(quietLogger()))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := g.Generate(ctx, history, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, customErrors.ErrCancelled))
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("no choices", func(t *testing.T) {
		g := NewGenerator(&fakeModel{responses: []*llms.ContentResponse{{}}}, "m", WithLogger(quietLogger()))
		_, err := g.Generate(context.Background(), history, nil)
		require.Error(t, err)
		code, _ := customErrors.GetErrorCode(err)
		assert.Equal(t, customErrors.CodeInvalidResponse, code)
	})
}

func TestGenerateRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tracer := observability.NewSimpleProvider(&config.ObservabilityConfig{Enabled: true}, tp, quietLogger())

	model := &fakeModel{responses: []*llms.ContentResponse{{
		Choices: []*llms.ContentChoice{{
			Content:        "ok",
			GenerationInfo: map[string]any{"PromptTokens": 10, "CompletionTokens": 5, "TotalTokens": 15},
		}},
	}}}
	g := NewGenerator(model, "test-model", WithTracer(tracer), WithLogger(quietLogger()))

	_, err := g.Generate(context.Background(), []common.Message{common.UserMessage("hello")}, nil)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "llm.generate", spans[0].Name())
}

func TestTokenUsage(t *testing.T) {
	tests := []struct {
		name                      string
		info                      map[string]any
		prompt, completion, total int
	}{
		{"openai", map[string]any{"PromptTokens": 10, "CompletionTokens": 5, "TotalTokens": 15}, 10, 5, 15},
		{"anthropic", map[string]any{"InputTokens": 7, "OutputTokens": 3}, 7, 3, 10},
		{"non-int", map[string]any{"PromptTokens": "ten"}, 0, 0, 0},
		{"empty", map[string]any{}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, c, total := tokenUsage(tt.info)
			assert.Equal(t, tt.prompt, p)
			assert.Equal(t, tt.completion, c)
			assert.Equal(t, tt.total, total)
		})
	}
}
