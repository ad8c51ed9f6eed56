package config

import (
	"bytes"
	"encoding/json"
	"sort"

	customErrors "github.com/tuannvm/mcp-creative-agent/internal/common/errors"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
)

// LoadServers reads the tool registry at path and returns the enabled tool
// servers keyed by name. The file may be a bare {"mcpServers": {...}} document
// or a full configuration file, in JSON or YAML.
//
// Errors match ErrConfigNotFound, ErrConfigParse or ErrConfigSchema.
func LoadServers(path string, logger *logging.Logger) (map[string]MCPServerConfig, error) {
	_, doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	if _, ok := doc["mcpServers"]; !ok {
		return nil, customErrors.NewConfigError(customErrors.CodeSchemaError, "tool registry has no mcpServers section").
			WithData("file", path)
	}

	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	servers, err := decodeServers(doc)
	if err != nil {
		return nil, err
	}

	enabled := make(map[string]MCPServerConfig, len(servers))
	for name, server := range servers {
		if server.Disabled {
			if logger != nil {
				logger.InfoKV("Skipping disabled tool server", "server", name)
			}
			continue
		}
		enabled[name] = substituteServerEnv(server)
	}

	if err := validateServers(enabled); err != nil {
		return nil, err
	}

	if logger != nil {
		names := make([]string, 0, len(enabled))
		for name := range enabled {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			logger.DebugKV("Registered tool server", "server", name,
				"transport", enabled[name].GetTransport(), "target", describeServer(enabled[name]))
		}
		logger.InfoKV("Loaded tool registry", "file", path, "servers", len(enabled))
	}

	return enabled, nil
}

// decodeServers strictly decodes the mcpServers section of doc
func decodeServers(doc map[string]interface{}) (map[string]MCPServerConfig, error) {
	section, err := json.Marshal(doc["mcpServers"])
	if err != nil {
		return nil, customErrors.WrapConfigError(err, customErrors.CodeParseError, "failed to normalise mcpServers section")
	}

	servers := make(map[string]MCPServerConfig)
	dec := json.NewDecoder(bytes.NewReader(section))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&servers); err != nil {
		return nil, customErrors.WrapConfigError(err, customErrors.CodeSchemaError, "invalid mcpServers section")
	}
	return servers, nil
}
