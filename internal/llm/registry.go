package llm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
	"github.com/tuannvm/mcp-creative-agent/internal/config"
)

// ProviderRegistry holds the models built from the configured providers
type ProviderRegistry struct {
	models  map[string]llms.Model
	configs map[string]config.LLMProviderConfig
	primary string
	logger  *logging.Logger
	mu      sync.RWMutex
}

// NewProviderRegistry creates a registry and initializes every configured
// provider that has a factory and passes validation. Providers that fail are
// skipped; the configured primary falls back to the first one that worked.
func NewProviderRegistry(cfg *config.Config, logger *logging.Logger) (*ProviderRegistry, error) {
	registryLogger := logger.WithName("llm-registry")
	r := &ProviderRegistry{
		models:  make(map[string]llms.Model),
		configs: make(map[string]config.LLMProviderConfig),
		logger:  registryLogger,
	}

	registryLogger.Info("Initializing LLM providers from configuration...")
	registryLogger.DebugKV("Available provider factories", "factories", ListProviderFactories())

	names := make([]string, 0, len(cfg.LLM.Providers))
	for name := range cfg.LLM.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		providerConfig := cfg.LLM.Providers[name]
		factory, exists := GetProviderFactory(name)
		if !exists {
			registryLogger.WarnKV("No factory registered for configured provider, skipping", "provider", name)
			continue
		}
		if err := factory.Validate(providerConfig); err != nil {
			// Only the primary is worth a warning, the others are default placeholders.
			if name == cfg.LLM.Provider {
				registryLogger.WarnKV("Primary provider configuration is incomplete", "provider", name, "error", err)
			} else {
				registryLogger.DebugKV("Skipping provider with incomplete configuration", "provider", name, "error", err)
			}
			continue
		}

		model, err := factory.Create(providerConfig, registryLogger)
		if err != nil {
			registryLogger.ErrorKV("Failed to create provider instance", "provider", name, "error", err)
			continue
		}

		r.models[name] = model
		r.configs[name] = providerConfig
		registryLogger.InfoKV("Registered LLM provider", "provider", name, "model", providerConfig.Model)
	}

	if len(r.models) == 0 {
		return nil, fmt.Errorf("no LLM provider could be initialized")
	}

	if _, ok := r.models[cfg.LLM.Provider]; ok {
		r.primary = cfg.LLM.Provider
		registryLogger.InfoKV("Set primary LLM provider", "provider", r.primary)
	} else {
		for _, name := range names {
			if _, ok := r.models[name]; ok {
				r.primary = name
				break
			}
		}
		registryLogger.WarnKV("Configured primary LLM provider unavailable, falling back",
			"configured_primary", cfg.LLM.Provider, "provider", r.primary)
	}

	return r, nil
}

// Register adds or replaces a model. Used by tests and embedders that build
// their own models.
func (r *ProviderRegistry) Register(name string, model llms.Model, cfg config.LLMProviderConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.models == nil {
		r.models = make(map[string]llms.Model)
		r.configs = make(map[string]config.LLMProviderConfig)
	}
	r.models[name] = model
	r.configs[name] = cfg
	if r.primary == "" {
		r.primary = name
	}
}

// PrimaryName returns the name of the primary provider
func (r *ProviderRegistry) PrimaryName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primary
}

// GetPrimaryProvider returns the configured primary model
func (r *ProviderRegistry) GetPrimaryProvider() (llms.Model, config.LLMProviderConfig, error) {
	return r.GetProvider("")
}

// GetProvider returns a model by name, or the primary when name is empty
func (r *ProviderRegistry) GetProvider(name string) (llms.Model, config.LLMProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.primary
	}
	if name == "" {
		return nil, config.LLMProviderConfig{}, fmt.Errorf("no primary LLM provider configured or available")
	}
	model, exists := r.models[name]
	if !exists {
		return nil, config.LLMProviderConfig{}, fmt.Errorf("provider '%s' not found in registry", name)
	}
	return model, r.configs[name], nil
}

// Providers returns the registered provider names
func (r *ProviderRegistry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
