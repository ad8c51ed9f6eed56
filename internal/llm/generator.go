package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/tuannvm/mcp-creative-agent/internal/common"
	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
	"github.com/tuannvm/mcp-creative-agent/internal/observability"
)

// DefaultSystemPrompt is used when no system prompt is configured
const DefaultSystemPrompt = `You are a multi-tool creative assistant. You can write stories, generate images, ` +
	`search the web and create ASCII art by calling the available tools. ` +
	`Call a tool whenever it helps, then answer the user in plain language using the tool results.`

// Generator asks a langchaingo model for the next step of a conversation
type Generator struct {
	model        llms.Model
	modelName    string
	toolMode     string
	systemPrompt string
	temperature  float64
	maxTokens    int
	tracer       observability.TracingHandler
	logger       *logging.Logger
}

// GeneratorOption configures a Generator
type GeneratorOption func(*Generator)

// WithToolMode selects native function calling or JSON-in-text tool calls
func WithToolMode(mode string) GeneratorOption {
	return func(g *Generator) { g.toolMode = mode }
}

// WithSystemPrompt replaces DefaultSystemPrompt
func WithSystemPrompt(prompt string) GeneratorOption {
	return func(g *Generator) {
		if prompt != "" {
			g.systemPrompt = prompt
		}
	}
}

// WithTemperature sets the sampling temperature sent with every call
func WithTemperature(t float64) GeneratorOption {
	return func(g *Generator) { g.temperature = t }
}

// WithMaxTokens caps the completion length, 0 leaves the provider default
func WithMaxTokens(n int) GeneratorOption {
	return func(g *Generator) { g.maxTokens = n }
}

// WithTracer records a span per model call
func WithTracer(t observability.TracingHandler) GeneratorOption {
	return func(g *Generator) {
		if t != nil {
			g.tracer = t
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *logging.Logger) GeneratorOption {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator wraps model. modelName is used for spans and logs only.
func NewGenerator(model llms.Model, modelName string, opts ...GeneratorOption) *Generator {
	g := &Generator{
		model:        model,
		modelName:    modelName,
		toolMode:     config.ToolModeNative,
		systemPrompt: DefaultSystemPrompt,
		tracer:       observability.Disabled(),
		logger:       logging.New("llm-generator", logging.LevelInfo),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewGeneratorFromConfig builds a Generator on the registry's primary provider
func NewGeneratorFromConfig(registry *ProviderRegistry, cfg *config.Config, tracer observability.TracingHandler, logger *logging.Logger) (*Generator, error) {
	model, providerCfg, err := registry.GetPrimaryProvider()
	if err != nil {
		return nil, customErrors.WrapLLMError(err, "provider_unavailable", "no LLM provider available")
	}
	return NewGenerator(model, providerCfg.Model,
		WithToolMode(cfg.LLM.ToolMode),
		WithSystemPrompt(cfg.LLM.SystemPrompt),
		WithTemperature(providerCfg.Temperature),
		WithMaxTokens(providerCfg.MaxTokens),
		WithTracer(tracer),
		WithLogger(logger.WithName("llm-generator")),
	), nil
}

// Generate sends the history and the tool catalogue to the model and
// decodes the reply into a FinalAnswer or a ToolCallRequest.
func (g *Generator) Generate(ctx context.Context, history []common.Message, tools []common.ToolDescriptor) (common.Decision, error) {
	messages := g.buildMessages(history, tools)

	params := map[string]interface{}{
		"temperature": g.temperature,
		"tool_mode":   g.toolMode,
		"tools":       len(tools),
		"messages":    len(messages),
	}
	ctx, span := g.tracer.StartLLMSpan(ctx, "llm.generate", g.modelName, lastUserText(history), params)
	defer span.End()

	g.logger.DebugKV("Calling LLM", "model", g.modelName, "messages", len(messages), "tools", len(tools))

	start := time.Now()
	resp, err := g.model.GenerateContent(ctx, messages, g.callOptions(tools)...)
	g.tracer.SetDuration(span, time.Since(start))
	if err != nil {
		domainErr := classifyError(ctx, err).WithData("model", g.modelName)
		g.logger.ErrorKV("LLM call failed", "model", g.modelName, "error", err)
		g.tracer.RecordError(span, domainErr, "ERROR")
		return nil, domainErr
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		domainErr := customErrors.NewLLMError(customErrors.CodeInvalidResponse, "LLM returned no choices").WithData("model", g.modelName)
		g.tracer.RecordError(span, domainErr, "ERROR")
		return nil, domainErr
	}

	choice := resp.Choices[0]
	if choice.GenerationInfo != nil {
		prompt, completion, total := tokenUsage(choice.GenerationInfo)
		g.tracer.SetTokenUsage(span, prompt, completion, total)
	}

	decision, err := g.decode(choice, tools)
	if err != nil {
		g.tracer.RecordError(span, err, "ERROR")
		return nil, err
	}

	switch d := decision.(type) {
	case common.FinalAnswer:
		g.tracer.SetOutput(span, d.Text)
	case common.ToolCallRequest:
		names := make([]string, 0, len(d.Calls))
		for _, c := range d.Calls {
			names = append(names, c.Name)
		}
		g.tracer.SetOutput(span, fmt.Sprintf("tool calls: %v", names))
	}
	g.tracer.RecordSuccess(span, "LLM call completed")
	return decision, nil
}

func classifyError(ctx context.Context, err error) *customErrors.DomainError {
	if ctxErr := customErrors.FromContext(ctx, customErrors.ErrorDomainLLM, "LLM call interrupted"); ctxErr != nil {
		return ctxErr
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return customErrors.WrapLLMError(err, customErrors.CodeTimeout, "LLM call timed out")
	case errors.Is(err, context.Canceled):
		return customErrors.WrapLLMError(err, customErrors.CodeCancelled, "LLM call cancelled")
	default:
		return customErrors.WrapLLMError(err, customErrors.CodeRequestFailed, "LLM request failed")
	}
}

func (g *Generator) native() bool {
	return g.toolMode != config.ToolModePrompt
}

func (g *Generator) callOptions(tools []common.ToolDescriptor) []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(g.temperature)}
	if g.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.maxTokens))
	}
	if g.native() && len(tools) > 0 {
		opts = append(opts, llms.WithTools(toLLMTools(tools)))
	}
	return opts
}

func toLLMTools(tools []common.ToolDescriptor) []llms.Tool {
	out := make([]llms.Tool, 0, len(tools))
	for _, tool := range tools {
		params := tool.InputSchema
		if params == nil {
			params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// buildMessages prepends the system prompt and converts the history.
// In prompt mode tool calls and results are rendered as plain text turns.
func (g *Generator) buildMessages(history []common.Message, tools []common.ToolDescriptor) []llms.MessageContent {
	system := g.systemPrompt
	if !g.native() {
		if toolPrompt := buildToolPrompt(tools, g.logger); toolPrompt != "" {
			system = system + "\n\n" + toolPrompt
		}
	}

	messages := make([]llms.MessageContent, 0, len(history)+1)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))

	for _, msg := range history {
		switch msg.Role {
		case common.RoleUser:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))

		case common.RoleAssistant:
			if !g.native() {
				text := msg.Content
				if text == "" && len(msg.ToolCalls) > 0 {
					text = textCallJSON(msg.ToolCalls[0])
				}
				messages = append(messages, llms.TextParts(llms.ChatMessageTypeAI, text))
				continue
			}
			parts := make([]llms.ContentPart, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				parts = append(parts, llms.TextContent{Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				parts = append(parts, llms.ToolCall{
					ID:   call.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      call.Name,
						Arguments: call.ArgumentsJSON(),
					},
				})
			}
			if len(parts) > 0 {
				messages = append(messages, llms.MessageContent{Role: llms.ChatMessageTypeAI, Parts: parts})
			}

		case common.RoleTool:
			if !g.native() {
				messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman,
					fmt.Sprintf("Result of tool '%s':\n%s", msg.Name, msg.Content)))
				continue
			}
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: msg.ToolCallID,
					Name:       msg.Name,
					Content:    msg.Content,
				}},
			})
		}
	}
	return messages
}

func textCallJSON(call common.ToolCall) string {
	b, err := json.Marshal(textToolCall{Tool: call.Name, Args: call.Arguments})
	if err != nil {
		return ""
	}
	return string(b)
}

func (g *Generator) decode(choice *llms.ContentChoice, tools []common.ToolDescriptor) (common.Decision, error) {
	toolCalls := choice.ToolCalls
	if len(toolCalls) == 0 && choice.FuncCall != nil {
		toolCalls = []llms.ToolCall{{Type: "function", FunctionCall: choice.FuncCall}}
	}

	if len(toolCalls) > 0 {
		calls := make([]common.ToolCall, 0, len(toolCalls))
		for _, tc := range toolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			args, err := parseArguments(tc.FunctionCall.Arguments)
			if err != nil {
				return nil, customErrors.WrapLLMError(err, customErrors.CodeInvalidResponse,
					fmt.Sprintf("arguments for tool '%s' are not valid JSON", tc.FunctionCall.Name)).
					WithData("tool", tc.FunctionCall.Name)
			}
			id := tc.ID
			if id == "" {
				id = newCallID()
			}
			calls = append(calls, common.ToolCall{ID: id, Name: tc.FunctionCall.Name, Arguments: args})
		}
		if len(calls) > 0 {
			return common.ToolCallRequest{Text: choice.Content, Calls: calls}, nil
		}
	}

	if !g.native() {
		detector := newToolCallDetector(tools, g.logger)
		if call := detector.detect(choice.Content); call != nil {
			return common.ToolCallRequest{Calls: []common.ToolCall{{
				ID:        newCallID(),
				Name:      call.Tool,
				Arguments: call.Args,
			}}}, nil
		}
	}

	return common.FinalAnswer{Text: choice.Content}, nil
}

func parseArguments(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}

func newCallID() string {
	return "call_" + uuid.NewString()
}

func lastUserText(history []common.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == common.RoleUser {
			return history[i].Content
		}
	}
	return ""
}
