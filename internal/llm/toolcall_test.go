package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannvm/mcp-creative-agent/internal/common"
)

func TestToolCallDetector(t *testing.T) {
	detector := newToolCallDetector([]common.ToolDescriptor{
		{Name: "search_web"},
		{Name: "create_ascii_art"},
	}, quietLogger())

	tests := []struct {
		name     string
		text     string
		wantTool string
		wantArgs map[string]interface{}
	}{
		{
			name:     "direct json",
			text:     `  {"tool": "search_web", "args": {"query": "mcp"}}  `,
			wantTool: "search_web",
			wantArgs: map[string]interface{}{"query": "mcp"},
		},
		{
			name:     "fenced code block",
			text:     "Here you go:\n```json\n{\"tool\": \"create_ascii_art\", \"args\": {\"text\": \"HI\"}}\n```",
			wantTool: "create_ascii_art",
			wantArgs: map[string]interface{}{"text": "HI"},
		},
		{
			name:     "lenient single quotes",
			text:     `I'll call {tool: 'search_web', args: {"query": "weather"}}`,
			wantTool: "search_web",
			wantArgs: map[string]interface{}{"query": "weather"},
		},
		{
			name:     "lenient key value fallback",
			text:     `tool: "search_web", args: {query: "go", limit: 3}`,
			wantTool: "search_web",
			wantArgs: map[string]interface{}{"query": "go", "limit": 3},
		},
		{
			name: "unknown tool",
			text: `{"tool": "rm_rf", "args": {}}`,
		},
		{
			name: "missing args",
			text: `{"tool": "search_web"}`,
		},
		{
			name: "plain prose",
			text: "Once upon a time there was a gopher.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call := detector.detect(tt.text)
			if tt.wantTool == "" {
				assert.Nil(t, call)
				return
			}
			require.NotNil(t, call)
			assert.Equal(t, tt.wantTool, call.Tool)
			assert.Equal(t, tt.wantArgs, call.Args)
		})
	}
}

func TestExtractKeyValuePairs(t *testing.T) {
	got := extractKeyValuePairs(`{name: "gopher", age: 13, ratio: 0.5, ok: true, bad: false}`)
	assert.Equal(t, map[string]interface{}{
		"name":  "gopher",
		"age":   13,
		"ratio": 0.5,
		"ok":    true,
		"bad":   false,
	}, got)
}

func TestBuildToolPrompt(t *testing.T) {
	assert.Empty(t, buildToolPrompt(nil, quietLogger()))

	prompt := buildToolPrompt([]common.ToolDescriptor{searchDescriptor}, quietLogger())
	assert.Contains(t, prompt, "Tool Name: search_web")
	assert.Contains(t, prompt, "Description: Search the web")
	assert.Contains(t, prompt, `"query"`)
}
