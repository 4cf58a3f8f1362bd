package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func resetState(t *testing.T) {
	t.Helper()
	CloseAll()
	SetCore(nil)
	logsDir = ""
	Configure(Options{})
	t.Cleanup(func() {
		CloseAll()
		SetCore(nil)
		logsDir = ""
		Configure(Options{})
	})
}

// TestAllCategoriesLog tests that all categories create log files when debug_mode is true
func TestAllCategoriesLog(t *testing.T) {
	resetState(t)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Options{DebugMode: true, Level: "debug"}))
	assert.True(t, IsDebugMode())

	for _, cat := range AllCategories {
		assert.True(t, IsCategoryEnabled(cat), "category %s should be enabled", cat)
		Get(cat).Info("Test info message for %s", cat)
		Get(cat).Debug("Test debug message for %s", cat)
	}
	CloseAll()

	entries, err := os.ReadDir(filepath.Join(ws, ".kongaddon", "logs"))
	require.NoError(t, err)

	for _, cat := range AllCategories {
		found := false
		for _, entry := range entries {
			if strings.HasSuffix(entry.Name(), "_"+string(cat)+".log") {
				found = true
				content, err := os.ReadFile(filepath.Join(ws, ".kongaddon", "logs", entry.Name()))
				require.NoError(t, err)
				assert.Contains(t, string(content), "Test debug message for "+string(cat))
			}
		}
		assert.True(t, found, "no log file for %s", cat)
	}
}

// TestDebugModeDisabled tests that no logs are created when debug_mode is false
func TestDebugModeDisabled(t *testing.T) {
	resetState(t)
	ws := t.TempDir()

	require.NoError(t, Initialize(ws, Options{DebugMode: false}))
	Get(CategoryChat).Info("should not be written")
	CloseAll()

	_, err := os.Stat(filepath.Join(ws, ".kongaddon", "logs"))
	assert.True(t, os.IsNotExist(err), "logs directory should not exist in production mode")
}

func TestCategoryFilter(t *testing.T) {
	resetState(t)
	Configure(Options{DebugMode: true, Categories: map[string]bool{"chat": false}})

	assert.False(t, IsCategoryEnabled(CategoryChat))
	assert.True(t, IsCategoryEnabled(CategoryLayout))
}

func TestLevelThreshold(t *testing.T) {
	resetState(t)
	core, logs := observer.New(zapcore.DebugLevel)
	SetCore(core)

	Configure(Options{DebugMode: true, Level: "warn"})
	assert.False(t, level.Enabled(zapcore.InfoLevel))
	assert.True(t, level.Enabled(zapcore.WarnLevel))

	Get(CategoryLayout).Warn("mode %d", 1)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "layout", entry.LoggerName)
	assert.Equal(t, "mode 1", entry.Message)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestInitializeRequiresWorkspace(t *testing.T) {
	resetState(t)
	assert.Error(t, Initialize("", Options{}))
}
