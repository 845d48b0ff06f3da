package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/internal/config"
)

func newFileLogger(t *testing.T, level, format string) (*Logger, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.log")

	logger, err := NewLogger(config.LoggingConfig{
		Level:  level,
		Format: format,
		Output: "file",
		File:   path,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = logger.Close() })

	return logger, path
}

func readLog(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

func TestLogger_TextFormat(t *testing.T) {
	logger, path := newFileLogger(t, "info", "text")

	logger.Info("model loaded")

	out := readLog(t, path)
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "model loaded")
}

func TestLogger_JSONFormat(t *testing.T) {
	logger, path := newFileLogger(t, "info", "json")

	logger.WithField("table", "customers").Warn("slow query")

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(readLog(t, path))), &entry))

	assert.Equal(t, "WARN", entry.Level)
	assert.Equal(t, "slow query", entry.Message)
	assert.Equal(t, "customers", entry.Fields["table"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, path := newFileLogger(t, "warn", "text")

	logger.Debug("hidden")
	logger.Info("also hidden")
	logger.Error("visible")

	out := readLog(t, path)
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestLogger_WithFieldsDoesNotMutateParent(t *testing.T) {
	logger, path := newFileLogger(t, "info", "json")

	child := logger.WithFields(map[string]interface{}{"query_id": "abc"})
	child.Info("child entry")
	logger.Info("parent entry")

	lines := strings.Split(strings.TrimSpace(readLog(t, path)), "\n")
	require.Len(t, lines, 2)

	var parent LogEntry
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &parent))
	assert.Empty(t, parent.Fields)
}

func TestLogger_ErrorWithErr(t *testing.T) {
	logger, path := newFileLogger(t, "error", "json")

	logger.ErrorWithErr("query failed", assert.AnError)

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(readLog(t, path))), &entry))
	assert.Equal(t, "query failed", entry.Message)
	assert.Equal(t, assert.AnError.Error(), entry.Error)
}

func TestNewLogger_FileOutputRequiresPath(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "info", Format: "text", Output: "file"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "log file path is required")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, ErrorLevel, parseLogLevel("ERROR"))
	assert.Equal(t, InfoLevel, parseLogLevel("bogus"))
}
