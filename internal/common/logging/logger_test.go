package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("test", LevelWarn, &buf)

	logger.Info("hidden %d", 1)
	logger.Warn("shown %d", 2)
	logger.ErrorKV("failed", "tool", "search_web", "attempt", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] test: shown 2")
	assert.Contains(t, out, "[ERROR] test: failed tool=search_web attempt=3")
}

func TestLoggerOddKeyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput("kv", LevelDebug, &buf)

	logger.DebugKV("odd", "key")
	assert.Contains(t, buf.String(), "key=<missing value>")
}

func TestWithNameSharesLevelAndOutput(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithOutput("parent", LevelInfo, &buf)
	child := parent.WithName("child")

	parent.SetMinLevel(LevelError)
	child.Info("dropped")
	child.Error("kept")

	var other bytes.Buffer
	child.SetOutput(&other)
	parent.Error("redirected")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "[ERROR] child: kept")
	assert.Contains(t, other.String(), "[ERROR] parent: redirected")
}

func TestWithLevelIsIndependent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithOutput("p", LevelError, &buf)
	verbose := parent.WithLevel(LevelDebug)

	verbose.Debug("visible")
	parent.Debug("invisible")

	assert.Contains(t, buf.String(), "visible")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
		"fatal":   LevelFatal,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "short", TruncateForLog("short", 10))
	assert.Equal(t, "abc...(3 more)", TruncateForLog("abcdef", 3))
	assert.Equal(t, "abcdef", TruncateForLog("abcdef", 0))
}
