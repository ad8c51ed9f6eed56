package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
)

//go:embed schema/config.schema.json
var configSchemaJSON string

const configSchemaURL = "config.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// configSchema compiles the embedded schema once
func configSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = jsonschema.CompileString(configSchemaURL, configSchemaJSON)
	})
	return compiledSchema, schemaErr
}

// validateDocument checks a decoded JSON document against the config schema.
// The document must come from encoding/json so numbers are float64.
func validateDocument(doc interface{}) error {
	schema, err := configSchema()
	if err != nil {
		return customErrors.WrapConfigError(err, customErrors.CodeSchemaError, "failed to compile configuration schema")
	}
	if err := schema.Validate(doc); err != nil {
		return customErrors.WrapConfigError(err, customErrors.CodeSchemaError, "configuration does not match schema")
	}
	return nil
}

// ValidateAfterDefaults validates configuration after defaults and env substitution
func (c *Config) ValidateAfterDefaults() error {
	if _, exists := c.LLM.Providers[c.LLM.Provider]; !exists {
		return customErrors.NewConfigErrorf(customErrors.CodeSchemaError, "LLM provider '%s' not configured", c.LLM.Provider)
	}

	switch c.LLM.ToolMode {
	case ToolModeNative, ToolModePrompt:
	default:
		return customErrors.NewConfigErrorf(customErrors.CodeSchemaError, "unknown tool mode '%s'", c.LLM.ToolMode)
	}

	if c.Agent.MaxSteps < 1 {
		return customErrors.NewConfigErrorf(customErrors.CodeSchemaError, "agent.maxSteps must be at least 1, got %d", c.Agent.MaxSteps)
	}
	if c.Agent.HistoryLimit < 0 {
		return customErrors.NewConfigError(customErrors.CodeSchemaError, "agent.historyLimit must not be negative")
	}

	switch c.Memory.Backend {
	case MemoryBackendInProcess, MemoryBackendRedis:
	default:
		return customErrors.NewConfigErrorf(customErrors.CodeSchemaError, "unknown memory backend '%s'", c.Memory.Backend)
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return customErrors.NewConfigErrorf(customErrors.CodeSchemaError, "http.port out of range: %d", c.HTTP.Port)
	}

	if c.Observability.Enabled && c.Observability.Provider == "simple-otel" {
		if c.Observability.Endpoint == "" || strings.HasPrefix(c.Observability.Endpoint, "${") {
			return customErrors.NewConfigError(customErrors.CodeSchemaError, "OTEL_EXPORTER_OTLP_ENDPOINT not set while observability is enabled")
		}
	}

	return validateServers(c.MCPServers)
}

// validateServers applies the checks the schema cannot express
func validateServers(servers map[string]MCPServerConfig) error {
	for name, server := range servers {
		if strings.TrimSpace(name) == "" {
			return customErrors.NewConfigError(customErrors.CodeSchemaError, "tool server name must not be empty")
		}
		switch server.GetTransport() {
		case TransportStdio:
			if server.Command == "" {
				return customErrors.NewConfigErrorf(customErrors.CodeSchemaError, "server '%s': command is required for stdio transport", name)
			}
		case TransportSSE, TransportHTTP:
			if server.URL == "" {
				return customErrors.NewConfigErrorf(customErrors.CodeSchemaError, "server '%s': url is required for %s transport", name, server.GetTransport())
			}
		default:
			return customErrors.NewConfigErrorf(customErrors.CodeSchemaError, "server '%s': unknown transport '%s'", name, server.Transport)
		}
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
// Unset variables are left in place.
func substituteEnvVars(input string) string {
	if !strings.Contains(input, "${") {
		return input
	}
	return envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := match[2 : len(match)-1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// SubstituteEnvironmentVariables performs environment variable substitution
func (c *Config) SubstituteEnvironmentVariables() {
	for name, provider := range c.LLM.Providers {
		provider.APIKey = substituteEnvVars(provider.APIKey)
		provider.BaseURL = substituteEnvVars(provider.BaseURL)
		provider.Model = substituteEnvVars(provider.Model)
		c.LLM.Providers[name] = provider
	}

	c.Memory.Redis.Addr = substituteEnvVars(c.Memory.Redis.Addr)
	c.Memory.Redis.Password = substituteEnvVars(c.Memory.Redis.Password)
	c.Observability.Endpoint = substituteEnvVars(c.Observability.Endpoint)
	for k, v := range c.Observability.Headers {
		c.Observability.Headers[k] = substituteEnvVars(v)
	}

	for name, server := range c.MCPServers {
		c.MCPServers[name] = substituteServerEnv(server)
	}
}

func substituteServerEnv(server MCPServerConfig) MCPServerConfig {
	server.Command = substituteEnvVars(server.Command)
	server.URL = substituteEnvVars(server.URL)
	if len(server.Args) > 0 {
		args := make([]string, len(server.Args))
		for i, arg := range server.Args {
			args[i] = substituteEnvVars(arg)
		}
		server.Args = args
	}
	if len(server.Env) > 0 {
		env := make(map[string]string, len(server.Env))
		for k, v := range server.Env {
			env[k] = substituteEnvVars(v)
		}
		server.Env = env
	}
	if len(server.Headers) > 0 {
		headers := make(map[string]string, len(server.Headers))
		for k, v := range server.Headers {
			headers[k] = substituteEnvVars(v)
		}
		server.Headers = headers
	}
	return server
}

// describeServer is used in log lines
func describeServer(server MCPServerConfig) string {
	if server.GetTransport() == TransportStdio {
		return fmt.Sprintf("%s %s", server.Command, strings.Join(server.Args, " "))
	}
	return server.URL
}
