package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
)

// readDocument reads a JSON or YAML file and returns it as normalised JSON bytes
// together with its decoded generic form.
func readDocument(path string) ([]byte, map[string]interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, customErrors.WrapConfigError(err, customErrors.CodeNotFound, "config file does not exist: "+path)
		}
		return nil, nil, customErrors.WrapConfigError(err, customErrors.CodeNotFound, "failed to read config file: "+path)
	}

	data := raw
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, nil, customErrors.WrapConfigError(err, customErrors.CodeParseError, "failed to parse YAML config file")
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, nil, customErrors.WrapConfigError(err, customErrors.CodeParseError, "YAML config is not representable as JSON")
		}
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, customErrors.WrapConfigError(err, customErrors.CodeParseError, "failed to parse config file")
	}
	if doc == nil {
		return nil, nil, customErrors.NewConfigError(customErrors.CodeParseError, "config file is empty")
	}
	return data, doc, nil
}

// isLegacyFormat checks if the document is a bare {"mcpServers": ...} registry
func isLegacyFormat(doc map[string]interface{}) bool {
	_, hasMcpServers := doc["mcpServers"]
	_, hasVersion := doc["version"]
	_, hasLLM := doc["llm"]
	_, hasAgent := doc["agent"]
	return hasMcpServers && !hasVersion && !hasLLM && !hasAgent
}

// removeSchemaField removes the $schema field to avoid strict parsing errors
func removeSchemaField(doc map[string]interface{}) ([]byte, error) {
	clean := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if k == "$schema" {
			continue
		}
		clean[k] = v
	}
	return json.Marshal(clean)
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configFile string, logger *logging.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.DebugKV("No .env file loaded", "error", err)
		}
	} else if logger != nil {
		logger.InfoKV("Loaded environment variables from .env file", "success", true)
	}

	cfg := &Config{}
	cfg.ApplyDefaults()

	// File values take precedence over environment overrides
	cfg.ApplyEnvironmentVariables()

	if configFile != "" {
		if err := loadConfigFile(cfg, configFile, logger); err != nil {
			return nil, err
		}
		// Fill anything the file zeroed out
		cfg.ApplyDefaults()
	}

	cfg.SubstituteEnvironmentVariables()

	if err := cfg.ValidateAfterDefaults(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadConfigFile loads configuration from a file
func loadConfigFile(cfg *Config, configFile string, logger *logging.Logger) error {
	_, doc, err := readDocument(configFile)
	if err != nil {
		return err
	}

	if err := validateDocument(doc); err != nil {
		return err
	}

	if isLegacyFormat(doc) {
		if logger != nil {
			logger.InfoKV("Detected tool registry format, using defaults for everything else", "file", configFile)
		}
		servers, err := decodeServers(doc)
		if err != nil {
			return err
		}
		cfg.MCPServers = servers
		return nil
	}

	data, err := removeSchemaField(doc)
	if err != nil {
		return customErrors.WrapConfigError(err, customErrors.CodeParseError, "failed to normalise config file")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return customErrors.WrapConfigError(err, customErrors.CodeSchemaError, "failed to decode config file")
	}

	if logger != nil {
		logger.InfoKV("Loaded configuration from file", "file", configFile, "servers", len(cfg.MCPServers))
	}
	return nil
}
