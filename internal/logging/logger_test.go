package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	require.NoError(t, err)

	logger.Info("workflow started", "task_count", 1)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)

	var entry map[string]any
	line := strings.TrimSpace(string(data))
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "workflow started", entry["msg"])
	assert.Equal(t, float64(1), entry["task_count"])
}

func TestChildLoggersInheritAttributes(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	require.NoError(t, err)

	child := logger.WithTask("task-1-aa").WithPhase("coding")
	child.Debug("turn started", "iteration", 2)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry))
	assert.Equal(t, "task-1-aa", entry["task_id"])
	assert.Equal(t, "coding", entry["phase"])
	assert.Equal(t, float64(2), entry["iteration"])
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelError)
	require.NoError(t, err)

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Error("kept")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)

	content := string(data)
	assert.NotContains(t, content, "dropped")
	assert.Contains(t, content, "kept")
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	// Must not panic and must accept chained children.
	logger.WithTask("t").WithPhase("p").Info("ignored")
	assert.NoError(t, logger.Close())
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, parseLevel("bogus"), parseLevel(LevelInfo))
}
