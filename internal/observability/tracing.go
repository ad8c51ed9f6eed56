// Package observability wraps OpenTelemetry tracing for agent runs, model calls and tool calls.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
)

type TracingProvider string

const (
	ProviderSimple   TracingProvider = "simple-otel"
	ProviderDisabled TracingProvider = "disabled"
)

const TracerName = "mcp-creative-agent"

// SpanTypeTool marks spans that wrap one tool invocation
const SpanTypeTool = "tool"

// SpanStarter opens spans. A run opens one trace, then a span per model
// call and per tool call beneath it.
type SpanStarter interface {
	StartTrace(ctx context.Context, name, input string, metadata map[string]string) (context.Context, trace.Span)
	StartSpan(ctx context.Context, name, spanType, input string, metadata map[string]string) (context.Context, trace.Span)
	StartLLMSpan(ctx context.Context, name, model, input string, parameters map[string]interface{}) (context.Context, trace.Span)
}

// SpanRecorder annotates a span opened by a SpanStarter
type SpanRecorder interface {
	SetOutput(span trace.Span, output string)
	SetTokenUsage(span trace.Span, promptTokens, completionTokens, totalTokens int)
	SetDuration(span trace.Span, duration time.Duration)
	RecordError(span trace.Span, err error, level string)
	RecordSuccess(span trace.Span, message string)
}

type TracingHandler interface {
	SpanStarter
	SpanRecorder
	Provider() TracingProvider
}

// disabled hands back the span already in ctx, normally the no-op span,
// and records nothing.
type disabled struct{}

func (disabled) StartTrace(ctx context.Context, _, _ string, _ map[string]string) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (disabled) StartSpan(ctx context.Context, _, _, _ string, _ map[string]string) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (disabled) StartLLMSpan(ctx context.Context, _, _, _ string, _ map[string]interface{}) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (disabled) SetOutput(trace.Span, string)            {}
func (disabled) SetTokenUsage(trace.Span, int, int, int) {}
func (disabled) SetDuration(trace.Span, time.Duration)   {}
func (disabled) RecordError(trace.Span, error, string)   {}
func (disabled) RecordSuccess(trace.Span, string)        {}
func (disabled) Provider() TracingProvider               { return ProviderDisabled }

// Disabled returns a handler that records nothing
func Disabled() TracingHandler {
	return disabled{}
}

// NewTracingHandler picks the handler for cfg. It traces through the global
// tracer provider, so Setup must run first.
func NewTracingHandler(cfg *config.ObservabilityConfig, logger *logging.Logger) TracingHandler {
	if cfg == nil || !cfg.Enabled || TracingProvider(cfg.Provider) == ProviderDisabled {
		logger.Info("Tracing disabled")
		return disabled{}
	}
	if p := TracingProvider(cfg.Provider); p != "" && p != ProviderSimple {
		logger.WarnKV("Unknown tracing provider, using simple-otel", "provider", cfg.Provider)
	}
	logger.InfoKV("Tracing enabled", "provider", ProviderSimple, "service", cfg.ServiceName)
	return NewSimpleProvider(cfg, nil, logger)
}
