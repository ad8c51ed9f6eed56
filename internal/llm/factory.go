// Package llm builds langchaingo models from configuration and turns a
// conversation plus a tool catalogue into the model's next decision.
package llm

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tmc/langchaingo/llms"

	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
	"github.com/tuannvm/mcp-creative-agent/internal/monitoring"
)

// ModelFactory creates a langchaingo model for one provider
type ModelFactory interface {
	// Validate checks the provider settings before Create is attempted
	Validate(cfg config.LLMProviderConfig) error
	// Create returns a ready model
	Create(cfg config.LLMProviderConfig, logger *logging.Logger) (llms.Model, error)
}

var providerFactories = map[string]ModelFactory{
	config.ProviderOpenAI:    &providerFactory{label: "OpenAI", build: buildOpenAI},
	config.ProviderAnthropic: &providerFactory{label: "Anthropic", needsAPIKey: true, build: buildAnthropic},
	config.ProviderOllama:    &providerFactory{label: "Ollama", needsBaseURL: true, build: buildOllama},
}

// GetProviderFactory returns the factory registered for name
func GetProviderFactory(name string) (ModelFactory, bool) {
	f, ok := providerFactories[name]
	return f, ok
}

// ListProviderFactories returns the registered provider names in order
func ListProviderFactories() []string {
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// observeTokenUsage records the token counts a provider reports in
// GenerationInfo. Only integer "*Tokens" entries are counted.
func observeTokenUsage(modelName string, res *llms.ContentResponse, logger *logging.Logger) {
	if res == nil || len(res.Choices) == 0 || res.Choices[0].GenerationInfo == nil {
		return
	}
	for key, value := range res.Choices[0].GenerationInfo {
		if !strings.HasSuffix(key, "Tokens") {
			continue
		}
		valInt, ok := value.(int)
		if !ok {
			logger.WarnKV("unexpected non-int value for LLM token count", "key", key, "value", value)
			continue
		}
		monitoring.LLMTokensPerRequest.
			With(prometheus.Labels{
				monitoring.MetricLabelType:  key,
				monitoring.MetricLabelModel: modelName,
			}).
			Observe(float64(valInt))
	}
}

// tokenUsage extracts prompt, completion and total counts from GenerationInfo.
// OpenAI and Ollama report Prompt/Completion/Total, Anthropic reports Input/Output.
func tokenUsage(info map[string]any) (prompt, completion, total int) {
	intValue := func(keys ...string) int {
		for _, k := range keys {
			if v, ok := info[k].(int); ok {
				return v
			}
		}
		return 0
	}
	prompt = intValue("PromptTokens", "InputTokens")
	completion = intValue("CompletionTokens", "OutputTokens")
	total = intValue("TotalTokens")
	if total == 0 {
		total = prompt + completion
	}
	return prompt, completion, total
}
