package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/tuannvm/mcp-creative-agent/internal/config"
)

func TestNewProviderRegistry(t *testing.T) {
	tests := []struct {
		name        string
		primary     string
		providers   map[string]config.LLMProviderConfig
		wantPrimary string
		wantErr     bool
	}{
		{
			name:    "openai primary",
			primary: config.ProviderOpenAI,
			providers: map[string]config.LLMProviderConfig{
				config.ProviderOpenAI: {Model: "gpt-4o", APIKey: "sk-test"},
			},
			wantPrimary: config.ProviderOpenAI,
		},
		{
			name:    "incomplete primary falls back",
			primary: config.ProviderAnthropic,
			providers: map[string]config.LLMProviderConfig{
				config.ProviderAnthropic: {Model: "claude-3-5-sonnet-20241022"},
				config.ProviderOllama:    {Model: "llama3", BaseURL: "http://localhost:11434"},
			},
			wantPrimary: config.ProviderOllama,
		},
		{
			name:    "unknown provider skipped",
			primary: "groq",
			providers: map[string]config.LLMProviderConfig{
				"groq":                {Model: "llama3-70b-8192"},
				config.ProviderOpenAI: {Model: "gpt-4o", APIKey: "sk-test"},
			},
			wantPrimary: config.ProviderOpenAI,
		},
		{
			name:    "nothing usable",
			primary: config.ProviderAnthropic,
			providers: map[string]config.LLMProviderConfig{
				config.ProviderAnthropic: {Model: "claude"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{LLM: config.LLMConfig{Provider: tt.primary, Providers: tt.providers}}
			registry, err := NewProviderRegistry(cfg, quietLogger())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrimary, registry.PrimaryName())

			model, providerCfg, err := registry.GetPrimaryProvider()
			require.NoError(t, err)
			assert.NotNil(t, model)
			assert.Equal(t, tt.providers[tt.wantPrimary].Model, providerCfg.Model)
		})
	}
}

func TestProviderRegistryGetProvider(t *testing.T) {
	registry := &ProviderRegistry{logger: quietLogger()}
	_, _, err := registry.GetPrimaryProvider()
	require.Error(t, err)

	var model llms.Model = &fakeModel{}
	registry.Register("fake", model, config.LLMProviderConfig{Model: "fake-1"})

	got, cfg, err := registry.GetProvider("")
	require.NoError(t, err)
	assert.Same(t, model, got)
	assert.Equal(t, "fake-1", cfg.Model)

	_, _, err = registry.GetProvider("missing")
	require.Error(t, err)
	assert.Equal(t, []string{"fake"}, registry.Providers())
}

func TestFactoriesValidate(t *testing.T) {
	assert.Equal(t, []string{config.ProviderAnthropic, config.ProviderOllama, config.ProviderOpenAI}, ListProviderFactories())

	openaiFactory, ok := GetProviderFactory(config.ProviderOpenAI)
	require.True(t, ok)
	assert.NoError(t, openaiFactory.Validate(config.LLMProviderConfig{Model: "gpt-4o"}))
	assert.Error(t, openaiFactory.Validate(config.LLMProviderConfig{}))

	anthropicFactory, _ := GetProviderFactory(config.ProviderAnthropic)
	assert.Error(t, anthropicFactory.Validate(config.LLMProviderConfig{Model: "claude"}))
	assert.NoError(t, anthropicFactory.Validate(config.LLMProviderConfig{Model: "claude", APIKey: "k"}))

	ollamaFactory, _ := GetProviderFactory(config.ProviderOllama)
	assert.Error(t, ollamaFactory.Validate(config.LLMProviderConfig{Model: "llama3"}))
	assert.NoError(t, ollamaFactory.Validate(config.LLMProviderConfig{Model: "llama3", BaseURL: "http://localhost:11434"}))
}
