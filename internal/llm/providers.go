package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
)

// providerFactory is a ModelFactory described by the settings it requires
// and a constructor. The OpenAI key is optional so compatible local servers
// can be used through baseUrl.
type providerFactory struct {
	label        string
	needsAPIKey  bool
	needsBaseURL bool
	build        func(cfg config.LLMProviderConfig, logger *logging.Logger) (llms.Model, error)
}

func (f *providerFactory) Validate(cfg config.LLMProviderConfig) error {
	missing := ""
	switch {
	case cfg.Model == "":
		missing = "model"
	case f.needsAPIKey && cfg.APIKey == "":
		missing = "apiKey"
	case f.needsBaseURL && cfg.BaseURL == "":
		missing = "baseUrl"
	}
	if missing != "" {
		return customErrors.NewLLMError("missing_config", fmt.Sprintf("%s config requires '%s'", f.label, missing))
	}
	return nil
}

func (f *providerFactory) Create(cfg config.LLMProviderConfig, logger *logging.Logger) (llms.Model, error) {
	logger.InfoKV("Configuring model", "provider", f.label, "model", cfg.Model, "base_url", cfg.BaseURL)

	model, err := f.build(cfg, logger)
	if err != nil {
		logger.ErrorKV("Failed to initialize model client", "provider", f.label, "error", err)
		domainErr := customErrors.WrapLLMError(err, "initialization_failed", "failed to initialize "+f.label+" client").
			WithData("model", cfg.Model)
		if cfg.BaseURL != "" {
			domainErr = domainErr.WithData("base_url", cfg.BaseURL)
		}
		return nil, domainErr
	}
	return model, nil
}

// usageCallback feeds token counts from the OpenAI client's callback hook
type usageCallback struct {
	callbacks.SimpleHandler
	modelName string
	logger    *logging.Logger
}

func (c *usageCallback) HandleLLMGenerateContentEnd(_ context.Context, res *llms.ContentResponse) {
	observeTokenUsage(c.modelName, res, c.logger)
}

func buildOpenAI(cfg config.LLMProviderConfig, logger *logging.Logger) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithCallback(&usageCallback{modelName: cfg.Model, logger: logger}),
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}

// Anthropic and Ollama take no callback option, so they are metered by wrapping
func buildAnthropic(cfg config.LLMProviderConfig, logger *logging.Logger) (llms.Model, error) {
	opts := []anthropic.Option{anthropic.WithModel(cfg.Model), anthropic.WithToken(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	model, err := anthropic.New(opts...)
	if err != nil {
		return nil, err
	}
	return newMeteredModel(model, cfg.Model, logger), nil
}

func buildOllama(cfg config.LLMProviderConfig, logger *logging.Logger) (llms.Model, error) {
	model, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.BaseURL))
	if err != nil {
		return nil, err
	}
	return newMeteredModel(model, cfg.Model, logger), nil
}
