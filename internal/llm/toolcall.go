package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tuannvm/mcp-creative-agent/internal/common"
	"github.com/tuannvm/mcp-creative-agent/internal/common/logging"
)

// textToolCall is the JSON shape the model emits in prompt tool mode
type textToolCall struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}

var (
	codeBlockRegex = regexp.MustCompile("```(?:json)?\\s*({[\\s\\S]*?})\\s*```")
	lenientRegex   = regexp.MustCompile("(?i)[\\{\\s]*[\"']?tool[\"']?\\s*[\\:\\=]\\s*[\"']([^\"']+)[\"']\\s*[\\,\\s]*[\"']?args[\"']?\\s*[\\:\\=]\\s*\\{([\\s\\S]*?)\\}[\\s\\}]*")
	pairRegex      = regexp.MustCompile(`\s*"?([^"{}:,]+)"?\s*:\s*(?:"([^"]*)"|(true|false|-?\d+(?:\.\d+)?))\s*,?`)
)

// toolCallDetector finds a {"tool": ..., "args": {...}} call in model text
type toolCallDetector struct {
	available map[string]bool
	logger    *logging.Logger
}

func newToolCallDetector(tools []common.ToolDescriptor, logger *logging.Logger) *toolCallDetector {
	available := make(map[string]bool, len(tools))
	for _, t := range tools {
		available[t.Name] = true
	}
	return &toolCallDetector{available: available, logger: logger}
}

// detect tries direct JSON, then fenced code blocks, then a lenient regex.
// Calls naming a tool outside the catalogue are ignored.
func (d *toolCallDetector) detect(text string) *textToolCall {
	if call := d.tryDirect(text); call != nil {
		return call
	}
	if call := d.tryCodeBlock(text); call != nil {
		return call
	}
	if call := d.tryLenient(text); call != nil {
		return call
	}
	return nil
}

func (d *toolCallDetector) tryDirect(text string) *textToolCall {
	var call textToolCall
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &call); err != nil {
		return nil
	}
	if !d.valid(call) {
		return nil
	}
	d.logger.DebugKV("Direct JSON tool call detected", "tool", call.Tool)
	return &call
}

func (d *toolCallDetector) tryCodeBlock(text string) *textToolCall {
	for _, match := range codeBlockRegex.FindAllStringSubmatch(text, -1) {
		var call textToolCall
		if err := json.Unmarshal([]byte(match[1]), &call); err != nil {
			d.logger.DebugKV("JSON code block parsing failed", "error", err.Error())
			continue
		}
		if d.valid(call) {
			d.logger.DebugKV("JSON code block tool call detected", "tool", call.Tool)
			return &call
		}
	}
	return nil
}

func (d *toolCallDetector) tryLenient(text string) *textToolCall {
	for _, match := range lenientRegex.FindAllStringSubmatch(text, -1) {
		name := match[1]
		if !d.available[name] {
			d.logger.WarnKV("Tool not available", "tool", name, "source", "regex_match")
			continue
		}
		argsJSON := "{" + match[2] + "}"
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(argsJSON), &args); err == nil {
			return &textToolCall{Tool: name, Args: args}
		}
		if pairs := extractKeyValuePairs(argsJSON); len(pairs) > 0 {
			d.logger.DebugKV("Key-value extraction used for tool call", "tool", name)
			return &textToolCall{Tool: name, Args: pairs}
		}
	}
	return nil
}

func (d *toolCallDetector) valid(call textToolCall) bool {
	if call.Tool == "" || call.Args == nil {
		return false
	}
	if !d.available[call.Tool] {
		d.logger.WarnKV("Tool not available", "tool", call.Tool)
		return false
	}
	return true
}

// extractKeyValuePairs reads key: value pairs from almost-JSON text
func extractKeyValuePairs(text string) map[string]interface{} {
	result := make(map[string]interface{})
	for _, match := range pairRegex.FindAllStringSubmatch(text, -1) {
		key := strings.TrimSpace(match[1])
		if key == "" {
			continue
		}
		raw := match[3]
		switch {
		case raw == "":
			result[key] = match[2]
		case raw == "true":
			result[key] = true
		case raw == "false":
			result[key] = false
		case strings.Contains(raw, "."):
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				result[key] = f
			} else {
				result[key] = raw
			}
		default:
			if i, err := strconv.Atoi(raw); err == nil {
				result[key] = i
			} else {
				result[key] = raw
			}
		}
	}
	return result
}

// buildToolPrompt describes the catalogue and the JSON call format
func buildToolPrompt(tools []common.ToolDescriptor, logger *logging.Logger) string {
	if len(tools) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("You have access to the following tools. Analyze the user's request to determine if a tool is needed.\n\n")
	b.WriteString("TOOL USAGE INSTRUCTIONS:\n")
	b.WriteString("1. If a tool is appropriate AND you have ALL required arguments, respond with ONLY the JSON object.\n")
	b.WriteString("2. The JSON MUST be properly formatted with no additional text before or after.\n")
	b.WriteString("3. If any required arguments are missing, ask the user for them instead.\n")
	b.WriteString("4. After a tool result is returned, use it to answer the user in natural language.\n\n")
	b.WriteString("Available Tools:\n")

	for _, tool := range tools {
		fmt.Fprintf(&b, "\nTool Name: %s\n", tool.Name)
		fmt.Fprintf(&b, "  Description: %s\n", tool.Description)
		schemaBytes, err := json.MarshalIndent(tool.InputSchema, "  ", "  ")
		if err != nil {
			logger.ErrorKV("Error marshaling schema for tool", "tool", tool.Name, "error", err)
			b.WriteString("  Input Schema: (Error rendering schema)\n")
			continue
		}
		fmt.Fprintf(&b, "  Input Schema (JSON):\n  %s\n", string(schemaBytes))
	}

	b.WriteString("\nEXACT JSON FORMAT FOR TOOL CALLS:\n")
	b.WriteString("{\n  \"tool\": \"<tool_name>\",\n  \"args\": { <arguments matching the tool's input schema> }\n}\n")
	return b.String()
}
