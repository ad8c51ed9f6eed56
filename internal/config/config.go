// Package config handles loading and managing application configuration
package config

import (
	"os"
	"strconv"
	"time"
)

// Constants for provider types
const (
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// Tool modes for the LLM collaborator
const (
	ToolModeNative = "native" // tools passed as function definitions
	ToolModePrompt = "prompt" // tools described in the system prompt, calls parsed from JSON text
)

// Memory backends
const (
	MemoryBackendInProcess = "memory"
	MemoryBackendRedis     = "redis"
)

// Transport kinds for tool servers
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// Default thread identifiers used by the frontends
const (
	DefaultCLIThreadID = "cli_thread"
	DefaultWebThreadID = "web_thread"
)

// Config represents the main application configuration
type Config struct {
	Version       string                     `json:"version"`
	LLM           LLMConfig                  `json:"llm"`
	Agent         AgentConfig                `json:"agent,omitempty"`
	HTTP          HTTPConfig                 `json:"http,omitempty"`
	Memory        MemoryConfig               `json:"memory,omitempty"`
	MCPServers    map[string]MCPServerConfig `json:"mcpServers"`
	Monitoring    MonitoringConfig           `json:"monitoring,omitempty"`
	Observability ObservabilityConfig        `json:"observability,omitempty"`
	Timeouts      TimeoutConfig              `json:"timeouts,omitempty"`
	Retry         RetryConfig                `json:"retry,omitempty"`
	Reload        ReloadConfig               `json:"reload,omitempty"`
}

// LLMConfig contains LLM provider configuration
type LLMConfig struct {
	Provider     string                       `json:"provider"`
	ToolMode     string                       `json:"toolMode,omitempty"`
	SystemPrompt string                       `json:"systemPrompt,omitempty"`
	Providers    map[string]LLMProviderConfig `json:"providers"`
}

// LLMProviderConfig contains provider-specific settings
type LLMProviderConfig struct {
	Model       string  `json:"model"`
	APIKey      string  `json:"apiKey,omitempty"`
	BaseURL     string  `json:"baseUrl,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxTokens,omitempty"`
}

// AgentConfig contains conversation agent settings
type AgentConfig struct {
	MaxSteps      int    `json:"maxSteps,omitempty"`      // Max tool-call steps per run (default: 15)
	MemoryEnabled *bool  `json:"memoryEnabled,omitempty"` // Keep history across runs (default: true)
	HistoryLimit  int    `json:"historyLimit,omitempty"`  // Max messages kept per thread, 0 means unlimited
	CLIThreadID   string `json:"cliThreadId,omitempty"`
	WebThreadID   string `json:"webThreadId,omitempty"`
}

// IsMemoryEnabled reports whether conversation memory is on
func (a AgentConfig) IsMemoryEnabled() bool {
	return a.MemoryEnabled == nil || *a.MemoryEnabled
}

// HTTPConfig contains the web frontend settings
type HTTPConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// MemoryConfig selects where conversation history is stored
type MemoryConfig struct {
	Backend string      `json:"backend,omitempty"`
	Redis   RedisConfig `json:"redis,omitempty"`
}

// RedisConfig contains settings for the redis memory backend
type RedisConfig struct {
	Addr      string `json:"addr,omitempty"`
	Password  string `json:"password,omitempty"`
	DB        int    `json:"db,omitempty"`
	KeyPrefix string `json:"keyPrefix,omitempty"`
	TTL       string `json:"ttl,omitempty"` // Expiry of idle threads, empty means no expiry
}

// MCPServerConfig describes one tool server
type MCPServerConfig struct {
	Command                  string            `json:"command,omitempty"`
	Args                     []string          `json:"args,omitempty"`
	URL                      string            `json:"url,omitempty"`
	Transport                string            `json:"transport,omitempty"`
	Env                      map[string]string `json:"env,omitempty"`
	Headers                  map[string]string `json:"headers,omitempty"`
	Disabled                 bool              `json:"disabled,omitempty"`
	InitializeTimeoutSeconds *int              `json:"initializeTimeoutSeconds,omitempty"`
	Tools                    MCPToolsConfig    `json:"tools,omitempty"`
}

// GetTransport returns the transport type, inferring from other fields if not explicitly set
func (mcp MCPServerConfig) GetTransport() string {
	if mcp.Transport != "" {
		return mcp.Transport
	}
	if mcp.Command != "" {
		return TransportStdio
	}
	if mcp.URL != "" {
		return TransportSSE
	}
	return TransportStdio
}

// GetInitializeTimeout returns the timeout with default fallback
func (mcp MCPServerConfig) GetInitializeTimeout() time.Duration {
	if mcp.InitializeTimeoutSeconds != nil && *mcp.InitializeTimeoutSeconds > 0 {
		return time.Duration(*mcp.InitializeTimeoutSeconds) * time.Second
	}
	return 30 * time.Second
}

// MCPToolsConfig contains tool filtering configuration
type MCPToolsConfig struct {
	AllowList []string `json:"allowList,omitempty"`
	BlockList []string `json:"blockList,omitempty"`
}

// Allows reports whether a tool passes the allow and block lists
func (t MCPToolsConfig) Allows(toolName string) bool {
	for _, blocked := range t.BlockList {
		if blocked == toolName {
			return false
		}
	}
	if len(t.AllowList) == 0 {
		return true
	}
	for _, allowed := range t.AllowList {
		if allowed == toolName {
			return true
		}
	}
	return false
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	Enabled      bool   `json:"enabled,omitempty"`
	MetricsPort  int    `json:"metricsPort,omitempty"`
	LoggingLevel string `json:"loggingLevel,omitempty"`
}

// ObservabilityConfig contains tracing settings
type ObservabilityConfig struct {
	Enabled        bool              `json:"enabled,omitempty"`
	Provider       string            `json:"provider,omitempty"`
	Endpoint       string            `json:"endpoint,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	ServiceName    string            `json:"serviceName,omitempty"`
	ServiceVersion string            `json:"serviceVersion,omitempty"`
}

// TimeoutConfig contains timeout settings for various operations
type TimeoutConfig struct {
	LLMCallTimeout     string `json:"llmCallTimeout,omitempty"`     // One model call (default: "2m")
	ToolCallTimeout    string `json:"toolCallTimeout,omitempty"`    // One tool invocation (default: "1m")
	MCPInitTimeout     string `json:"mcpInitTimeout,omitempty"`     // Connecting all servers (default: "30s")
	HTTPRequestTimeout string `json:"httpRequestTimeout,omitempty"` // Web frontend per request (default: "5m")
	ShutdownTimeout    string `json:"shutdownTimeout,omitempty"`    // Graceful shutdown (default: "10s")
}

// RetryConfig contains retry and resilience settings
type RetryConfig struct {
	MCPReconnectAttempts int    `json:"mcpReconnectAttempts,omitempty"` // SSE reconnection attempts (default: 5)
	MCPReconnectBackoff  string `json:"mcpReconnectBackoff,omitempty"`  // SSE reconnection backoff (default: "1s")
}

// ReloadConfig contains settings for periodic application reload
type ReloadConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Interval string `json:"interval,omitempty"`
}

// ApplyDefaults applies default values to the configuration
func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}

	// LLM defaults
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderOpenAI
	}
	if c.LLM.ToolMode == "" {
		c.LLM.ToolMode = ToolModeNative
	}
	if c.LLM.Providers == nil {
		c.LLM.Providers = make(map[string]LLMProviderConfig)
	}
	if _, exists := c.LLM.Providers[ProviderOpenAI]; !exists {
		c.LLM.Providers[ProviderOpenAI] = LLMProviderConfig{
			Model:       "gpt-4o",
			Temperature: 0.7,
		}
	}
	if _, exists := c.LLM.Providers[ProviderAnthropic]; !exists {
		c.LLM.Providers[ProviderAnthropic] = LLMProviderConfig{
			Model:       "claude-3-5-sonnet-20241022",
			Temperature: 0.7,
		}
	}
	if _, exists := c.LLM.Providers[ProviderOllama]; !exists {
		c.LLM.Providers[ProviderOllama] = LLMProviderConfig{
			Model:       "llama3",
			BaseURL:     "http://localhost:11434",
			Temperature: 0.7,
		}
	}

	// Agent defaults
	if c.Agent.MaxSteps == 0 {
		c.Agent.MaxSteps = 15
	}
	if c.Agent.CLIThreadID == "" {
		c.Agent.CLIThreadID = DefaultCLIThreadID
	}
	if c.Agent.WebThreadID == "" {
		c.Agent.WebThreadID = DefaultWebThreadID
	}

	// HTTP defaults
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 5000
	}

	// Memory defaults
	if c.Memory.Backend == "" {
		c.Memory.Backend = MemoryBackendInProcess
	}
	if c.Memory.Redis.Addr == "" {
		c.Memory.Redis.Addr = "localhost:6379"
	}
	if c.Memory.Redis.KeyPrefix == "" {
		c.Memory.Redis.KeyPrefix = "creative-agent:thread:"
	}

	// Timeout defaults
	if c.Timeouts.LLMCallTimeout == "" {
		c.Timeouts.LLMCallTimeout = "2m"
	}
	if c.Timeouts.ToolCallTimeout == "" {
		c.Timeouts.ToolCallTimeout = "1m"
	}
	if c.Timeouts.MCPInitTimeout == "" {
		c.Timeouts.MCPInitTimeout = "30s"
	}
	if c.Timeouts.HTTPRequestTimeout == "" {
		c.Timeouts.HTTPRequestTimeout = "5m"
	}
	if c.Timeouts.ShutdownTimeout == "" {
		c.Timeouts.ShutdownTimeout = "10s"
	}

	// Retry defaults
	if c.Retry.MCPReconnectAttempts == 0 {
		c.Retry.MCPReconnectAttempts = 5
	}
	if c.Retry.MCPReconnectBackoff == "" {
		c.Retry.MCPReconnectBackoff = "1s"
	}

	// Reload defaults
	if c.Reload.Interval == "" {
		c.Reload.Interval = "30m"
	}

	// Monitoring defaults
	if c.Monitoring.MetricsPort == 0 {
		c.Monitoring.MetricsPort = 9090
	}
	if c.Monitoring.LoggingLevel == "" {
		c.Monitoring.LoggingLevel = "info"
	}

	// Observability defaults
	if c.Observability.Provider == "" {
		c.Observability.Provider = "simple-otel"
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "mcp-creative-agent"
	}

	if c.MCPServers == nil {
		c.MCPServers = make(map[string]MCPServerConfig)
	}
}

// ApplyEnvironmentVariables applies environment variable overrides
func (c *Config) ApplyEnvironmentVariables() {
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}
	if prompt := os.Getenv("SYSTEM_PROMPT"); prompt != "" {
		c.LLM.SystemPrompt = prompt
	}

	if steps := os.Getenv("AGENT_MAX_STEPS"); steps != "" {
		if val, err := strconv.Atoi(steps); err == nil {
			c.Agent.MaxSteps = val
		}
	}
	if enabled := os.Getenv("MEMORY_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			c.Agent.MemoryEnabled = &val
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Memory.Backend = MemoryBackendRedis
		c.Memory.Redis.Addr = addr
	}

	if port := os.Getenv("PORT"); port != "" {
		if val, err := strconv.Atoi(port); err == nil {
			c.HTTP.Port = val
		}
	}

	if enabled := os.Getenv("MONITORING_ENABLED"); enabled != "" {
		if val, err := strconv.ParseBool(enabled); err == nil {
			c.Monitoring.Enabled = val
		}
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		c.Observability.Enabled = true
		c.Observability.Endpoint = endpoint
	}

	if c.LLM.Providers == nil {
		c.LLM.Providers = make(map[string]LLMProviderConfig)
	}

	if openaiConfig, exists := c.LLM.Providers[ProviderOpenAI]; exists {
		if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
			openaiConfig.APIKey = apiKey
		}
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			openaiConfig.Model = model
		}
		if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
			openaiConfig.BaseURL = baseURL
		}
		c.LLM.Providers[ProviderOpenAI] = openaiConfig
	}

	if anthropicConfig, exists := c.LLM.Providers[ProviderAnthropic]; exists {
		if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
			anthropicConfig.APIKey = apiKey
		}
		if model := os.Getenv("ANTHROPIC_MODEL"); model != "" {
			anthropicConfig.Model = model
		}
		c.LLM.Providers[ProviderAnthropic] = anthropicConfig
	}

	if ollamaConfig, exists := c.LLM.Providers[ProviderOllama]; exists {
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			ollamaConfig.BaseURL = baseURL
		}
		if model := os.Getenv("OLLAMA_MODEL"); model != "" {
			ollamaConfig.Model = model
		}
		c.LLM.Providers[ProviderOllama] = ollamaConfig
	}
}

// Duration parses one of the string durations in the config, falling back to def
// when the value is empty or malformed.
func Duration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
