package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
)

func newRecordingProvider(t *testing.T) (*SimpleProvider, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	cfg := &config.ObservabilityConfig{Enabled: true, ServiceName: "test-agent"}
	return NewSimpleProvider(cfg, tp, logging.New("test", logging.LevelError)), recorder
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestSimpleProviderNestsSpans(t *testing.T) {
	p, recorder := newRecordingProvider(t)

	ctx, root := p.StartTrace(context.Background(), "agent.run", "hello", map[string]string{"thread.id": "t1"})
	_, child := p.StartSpan(ctx, "tool.search_web", SpanTypeTool, `{"query":"go"}`, nil)
	p.SetOutput(child, "result")
	p.RecordSuccess(child, "ok")
	child.End()
	p.RecordError(root, errors.New("boom"), "ERROR")
	root.End()

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	tool, run := spans[0], spans[1]
	assert.Equal(t, "tool.search_web", tool.Name())
	assert.Equal(t, run.SpanContext().SpanID(), tool.Parent().SpanID())
	assert.Equal(t, codes.Ok, tool.Status().Code)

	v, ok := attrValue(tool.Attributes(), "span.type")
	require.True(t, ok)
	assert.Equal(t, SpanTypeTool, v.AsString())

	v, ok = attrValue(run.Attributes(), "thread.id")
	require.True(t, ok)
	assert.Equal(t, "t1", v.AsString())
	assert.Equal(t, codes.Error, run.Status().Code)
}

func TestSimpleProviderLLMSpan(t *testing.T) {
	p, recorder := newRecordingProvider(t)

	_, span := p.StartLLMSpan(context.Background(), "llm.generate", "gpt-4o", "prompt",
		map[string]interface{}{"temperature": 0.2, "max_tokens": 100, "ignored": []int{1}})
	p.SetTokenUsage(span, 10, 5, 15)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := spans[0].Attributes()

	v, ok := attrValue(attrs, "llm.parameter.temperature")
	require.True(t, ok)
	assert.Equal(t, 0.2, v.AsFloat64())

	v, ok = attrValue(attrs, "llm.usage.total_tokens")
	require.True(t, ok)
	assert.Equal(t, int64(15), v.AsInt64())

	_, ok = attrValue(attrs, "llm.parameter.ignored")
	assert.False(t, ok)
}

func TestNewTracingHandlerDisabled(t *testing.T) {
	logger := logging.New("test", logging.LevelError)

	h := NewTracingHandler(nil, logger)
	assert.Equal(t, ProviderDisabled, h.Provider())

	h = NewTracingHandler(&config.ObservabilityConfig{Enabled: false, Provider: "simple-otel"}, logger)
	assert.Equal(t, ProviderDisabled, h.Provider())

	h = NewTracingHandler(&config.ObservabilityConfig{Enabled: true, Provider: "simple-otel"}, logger)
	assert.Equal(t, ProviderSimple, h.Provider())
}

func TestSetupDisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.ObservabilityConfig{}, logging.New("test", logging.LevelError))
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
