package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
)

func TestApplyDefaults(t *testing.T) {
	c := &Config{}
	c.ApplyDefaults()

	if c.Agent.MaxSteps != 15 {
		t.Errorf("Expected default max steps 15, got %d", c.Agent.MaxSteps)
	}
	if !c.Agent.IsMemoryEnabled() {
		t.Error("Expected memory to be enabled by default")
	}
	if c.HTTP.Port != 5000 {
		t.Errorf("Expected default port 5000, got %d", c.HTTP.Port)
	}
	if c.Agent.CLIThreadID != DefaultCLIThreadID || c.Agent.WebThreadID != DefaultWebThreadID {
		t.Errorf("Unexpected thread ids: %q %q", c.Agent.CLIThreadID, c.Agent.WebThreadID)
	}
	if c.LLM.ToolMode != ToolModeNative {
		t.Errorf("Expected native tool mode, got %s", c.LLM.ToolMode)
	}
	if c.Memory.Backend != MemoryBackendInProcess {
		t.Errorf("Expected in-process memory, got %s", c.Memory.Backend)
	}
	if err := c.ValidateAfterDefaults(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestApplyEnvironmentVariables(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		verify func(t *testing.T, c *Config)
	}{
		{
			name: "agent settings",
			env:  map[string]string{"AGENT_MAX_STEPS": "4", "MEMORY_ENABLED": "false"},
			verify: func(t *testing.T, c *Config) {
				assert.Equal(t, 4, c.Agent.MaxSteps)
				assert.False(t, c.Agent.IsMemoryEnabled())
			},
		},
		{
			name: "port",
			env:  map[string]string{"PORT": "8080"},
			verify: func(t *testing.T, c *Config) {
				assert.Equal(t, 8080, c.HTTP.Port)
			},
		},
		{
			name: "invalid values are ignored",
			env:  map[string]string{"PORT": "eighty", "MEMORY_ENABLED": "maybe"},
			verify: func(t *testing.T, c *Config) {
				assert.Equal(t, 5000, c.HTTP.Port)
				assert.True(t, c.Agent.IsMemoryEnabled())
			},
		},
		{
			name: "redis address switches backend",
			env:  map[string]string{"REDIS_ADDR": "redis:6379"},
			verify: func(t *testing.T, c *Config) {
				assert.Equal(t, MemoryBackendRedis, c.Memory.Backend)
				assert.Equal(t, "redis:6379", c.Memory.Redis.Addr)
			},
		},
		{
			name: "provider credentials",
			env:  map[string]string{"LLM_PROVIDER": "anthropic", "ANTHROPIC_API_KEY": "sk-ant", "OPENAI_MODEL": "gpt-4o-mini"},
			verify: func(t *testing.T, c *Config) {
				assert.Equal(t, ProviderAnthropic, c.LLM.Provider)
				assert.Equal(t, "sk-ant", c.LLM.Providers[ProviderAnthropic].APIKey)
				assert.Equal(t, "gpt-4o-mini", c.LLM.Providers[ProviderOpenAI].Model)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			c := &Config{}
			c.ApplyDefaults()
			c.ApplyEnvironmentVariables()
			tt.verify(t, c)
		})
	}
}

func TestLoadConfigFullDocument(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	path := writeFile(t, "config.json", `{
		"$schema": "./schema/config.schema.json",
		"version": "2.0",
		"llm": {
			"provider": "openai",
			"toolMode": "prompt",
			"providers": {"openai": {"model": "gpt-4o-mini", "apiKey": "${TEST_OPENAI_KEY}"}}
		},
		"agent": {"maxSteps": 3, "memoryEnabled": false, "historyLimit": 20},
		"http": {"port": 7000},
		"mcpServers": {"search": {"command": "tool-server", "args": ["--tools", "search"]}},
		"timeouts": {"toolCallTimeout": "5s"}
	}`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "2.0", cfg.Version)
	assert.Equal(t, ToolModePrompt, cfg.LLM.ToolMode)
	assert.Equal(t, "sk-test", cfg.LLM.Providers[ProviderOpenAI].APIKey)
	assert.Equal(t, 3, cfg.Agent.MaxSteps)
	assert.False(t, cfg.Agent.IsMemoryEnabled())
	assert.Equal(t, 20, cfg.Agent.HistoryLimit)
	assert.Equal(t, 7000, cfg.HTTP.Port)
	assert.Equal(t, 5*time.Second, Duration(cfg.Timeouts.ToolCallTimeout, time.Minute))
	assert.Equal(t, 2*time.Minute, Duration(cfg.Timeouts.LLMCallTimeout, time.Second))
	assert.Contains(t, cfg.MCPServers, "search")
}

func TestLoadConfigLegacyRegistry(t *testing.T) {
	path := writeFile(t, "browser_mcp.json", `{"mcpServers": {"ascii": {"command": "tool-server"}}}`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Agent.MaxSteps)
	assert.Contains(t, cfg.MCPServers, "ascii")
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "unknown top-level key", content: `{"version": "1", "slack": {}}`, want: customErrors.ErrConfigSchema},
		{name: "bad provider", content: `{"version": "1", "llm": {"provider": "cohere"}}`, want: customErrors.ErrConfigSchema},
		{name: "zero steps", content: `{"version": "1", "agent": {"maxSteps": 0}}`, want: customErrors.ErrConfigSchema},
		{name: "syntax", content: `{"version": `, want: customErrors.ErrConfigParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "config.json", tt.content), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("HOST_A", "example.com")

	assert.Equal(t, "https://example.com/sse", substituteEnvVars("https://${HOST_A}/sse"))
	assert.Equal(t, "${UNSET_VAR_XYZ}", substituteEnvVars("${UNSET_VAR_XYZ}"))
	assert.Equal(t, "plain", substituteEnvVars("plain"))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, time.Second, Duration("", time.Second))
	assert.Equal(t, time.Second, Duration("nonsense", time.Second))
	assert.Equal(t, time.Second, Duration("-5s", time.Second))
	assert.Equal(t, 3*time.Minute, Duration("3m", time.Second))
}

func TestToolsAllows(t *testing.T) {
	tools := MCPToolsConfig{BlockList: []string{"rm"}}
	assert.True(t, tools.Allows("search_web"))
	assert.False(t, tools.Allows("rm"))

	tools.AllowList = []string{"rm", "search_web"}
	assert.False(t, tools.Allows("rm"), "block list wins over allow list")
	assert.True(t, tools.Allows("search_web"))
}

func TestServerConfigAccessorsOnMapValues(t *testing.T) {
	five := 5
	servers := map[string]MCPServerConfig{
		"stdio-inferred": {Command: "search-server"},
		"sse-inferred":   {URL: "http://localhost:8081/sse"},
		"explicit-http":  {URL: "http://localhost:8082/mcp", Transport: TransportHTTP, InitializeTimeoutSeconds: &five},
		"empty":          {},
	}

	tests := []struct {
		name          string
		wantTransport string
		wantTimeout   time.Duration
	}{
		{"stdio-inferred", TransportStdio, 30 * time.Second},
		{"sse-inferred", TransportSSE, 30 * time.Second},
		{"explicit-http", TransportHTTP, 5 * time.Second},
		{"empty", TransportStdio, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTransport, servers[tt.name].GetTransport())
			assert.Equal(t, tt.wantTimeout, servers[tt.name].GetInitializeTimeout())
		})
	}
}
