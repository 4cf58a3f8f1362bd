package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"kongaddon/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("KONGADDON_DEBUGGER_URL", "")
	t.Setenv("KONGADDON_PREFS_PATH", "")
	t.Setenv("KONGADDON_LOG_LEVEL", "")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "kongaddon", cfg.Name)
	assert.Equal(t, "sqlite", cfg.Preferences.Backend)
	assert.Equal(t, "forth_", cfg.Preferences.Prefix)
	assert.Equal(t, 30, cfg.Preferences.TTLDays)
	assert.Len(t, cfg.Features.Positions, len(features.Names))
	require.NoError(t, cfg.Validate())
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "kongaddon.yaml")

	cfg := DefaultConfig()
	cfg.Context = "Realm Grinder"
	cfg.Preferences.Backend = "memory"
	cfg.Features.Positions["ping"] = -1
	cfg.Layout.MaxRetries = 7
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Realm Grinder", loaded.Context)
	assert.Equal(t, "memory", loaded.Preferences.Backend)
	assert.Equal(t, -1, loaded.Features.Positions["ping"])
	assert.Equal(t, 7, loaded.Layout.MaxRetries)
	assert.Equal(t, cfg.Classifier, loaded.Classifier)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "kongaddon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("layout:\n  max_retries: 3\nfeatures:\n  positions:\n    ping: -1\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Layout.MaxRetries)
	assert.Equal(t, 1103, cfg.Layout.BothWidth)
	assert.Equal(t, -1, cfg.Features.Positions["ping"])
	assert.Equal(t, 0, cfg.Features.Positions["quickLinks"])
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kongaddon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("layout: [unclosed"), 0644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestConfig_EnvOverrides(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, c *Config)
	}{
		{
			name: "debugger url",
			env:  map[string]string{"KONGADDON_DEBUGGER_URL": "ws://127.0.0.1:9222/devtools/browser/x"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/x", c.Browser.DebuggerURL)
			},
		},
		{
			name: "prefs path",
			env:  map[string]string{"KONGADDON_PREFS_PATH": "/tmp/p.db"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "/tmp/p.db", c.Preferences.Path)
			},
		},
		{
			name: "log level",
			env:  map[string]string{"KONGADDON_LOG_LEVEL": "debug"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "debug", c.Logging.Level)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown backend", func(c *Config) { c.Preferences.Backend = "redis" }},
		{"sqlite without path", func(c *Config) { c.Preferences.Path = "" }},
		{"zero ttl", func(c *Config) { c.Preferences.TTLDays = 0 }},
		{"bad pattern", func(c *Config) { c.Classifier.CrossLink.Pattern = `([` }},
		{"payload group out of range", func(c *Config) { c.Classifier.ProfileLink.PayloadGroup = 9 }},
		{"span group out of range", func(c *Config) { c.Classifier.ResourceLink.SpanGroup = 9 }},
		{"zero width", func(c *Config) { c.Layout.GameWidth = 0 }},
		{"negative retries", func(c *Config) { c.Layout.MaxRetries = -1 }},
		{"unknown feature", func(c *Config) { c.Features.Positions["darkmode"] = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}

	t.Run("disabled kind is valid", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Classifier.ProfileLink = PatternConfig{}
		assert.NoError(t, cfg.Validate())
	})
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 100*time.Millisecond, cfg.GetRetryInterval())
	assert.Equal(t, 50*time.Millisecond, cfg.GetMatchTimeout())

	cfg.Layout.RetryInterval = "nonsense"
	cfg.Browser.PollInterval = "-1s"
	assert.Equal(t, 100*time.Millisecond, cfg.GetRetryInterval())
	assert.Equal(t, 100*time.Millisecond, cfg.GetPollInterval())
}

func TestLoggingConfig(t *testing.T) {
	lc := LoggingConfig{Level: "warn", Format: "json", DebugMode: true, Categories: map[string]bool{"chat": false}}
	assert.False(t, lc.IsCategoryEnabled("chat"))
	assert.True(t, lc.IsCategoryEnabled("layout"))

	opts := lc.Options()
	assert.True(t, opts.JSONFormat)
	assert.Equal(t, "warn", opts.Level)

	lc.DebugMode = false
	assert.False(t, lc.IsCategoryEnabled("layout"))
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "kongaddon.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	var mu sync.Mutex
	var got []*Config
	w, err := NewWatcher(path, func(c *Config) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})
	require.NoError(t, err)
	w.debounceDur = 10 * time.Millisecond
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop()

	cfg := DefaultConfig()
	cfg.Layout.MaxRetries = 11
	require.NoError(t, cfg.Save(path))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1].Layout.MaxRetries == 11
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_SkipsInvalidEdits(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "kongaddon.yaml")
	require.NoError(t, DefaultConfig().Save(path))

	called := make(chan struct{}, 1)
	w, err := NewWatcher(path, func(*Config) { called <- struct{}{} })
	require.NoError(t, err)
	w.debounceDur = 10 * time.Millisecond
	require.NoError(t, w.Start(t.Context()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("preferences:\n  backend: redis\n"), 0644))

	require.Eventually(t, func() bool { return w.Stats().Errors > 0 }, 2*time.Second, 10*time.Millisecond)
	select {
	case <-called:
		t.Fatal("invalid config was delivered")
	default:
	}
}
