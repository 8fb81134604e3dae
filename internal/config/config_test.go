// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ollamaflow.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "http://127.0.0.1:11434", cfg.Server.URL)
	assert.Equal(t, 30, cfg.Server.TimeoutSecs)
	assert.Equal(t, "5m", cfg.Server.KeepAlive)
	assert.False(t, cfg.Server.SkipModelCheck)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "auto", cfg.Output.Color)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "no-such.toml"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:11434", cfg.Server.URL)
}

func TestLoadFromPath_PartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
default_model = "llama3:8b"

[server]
url = "http://gpu-box:11434"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "llama3:8b", cfg.DefaultModel)
	assert.Equal(t, "http://gpu-box:11434", cfg.Server.URL)
	// Unset fields come from defaults
	assert.Equal(t, 30, cfg.Server.TimeoutSecs)
	assert.Equal(t, "5m", cfg.Server.KeepAlive)
}

func TestLoadFromPath_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0o600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
}

func TestLoadFromPath_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[output]
color = "rainbow"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.color")
}

// =============================================================================
// SAVE / ROUND-TRIP
// =============================================================================

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.DefaultModel = "qwen2.5:7b"
	cfg.Server.URL = "http://127.0.0.1:9999"
	cfg.Chat.System = "You are terse."

	require.NoError(t, SaveTo(cfg, path))

	// Saved with restrictive permissions
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5:7b", loaded.DefaultModel)
	assert.Equal(t, "http://127.0.0.1:9999", loaded.Server.URL)
	assert.Equal(t, "You are terse.", loaded.Chat.System)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"bad url", func(c *Config) { c.Server.URL = "not a url" }, "server.url"},
		{"negative timeout", func(c *Config) { c.Server.TimeoutSecs = -1 }, "server.timeout_secs"},
		{"retries out of range", func(c *Config) { c.Server.MaxRetries = 50 }, "server.max_retries"},
		{"bad keep_alive", func(c *Config) { c.Server.KeepAlive = "forever" }, "server.keep_alive"},
		{"keep_alive duration ok", func(c *Config) { c.Server.KeepAlive = "1h30m" }, ""},
		{"keep_alive -1 ok", func(c *Config) { c.Server.KeepAlive = "-1" }, ""},
		{"bad color", func(c *Config) { c.Output.Color = "sometimes" }, "output.color"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMAFLOW_MODEL", "mistral:7b")
	t.Setenv("OLLAMAFLOW_URL", "http://remote:11434")
	t.Setenv("OLLAMAFLOW_SKIP_MODEL_CHECK", "true")
	t.Setenv("OLLAMAFLOW_NO_HISTORY", "1")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "mistral:7b", cfg.DefaultModel)
	assert.Equal(t, "http://remote:11434", cfg.Server.URL)
	assert.True(t, cfg.Server.SkipModelCheck)
	assert.False(t, cfg.History.Enabled)
}

func TestApplyEnvOverrides_OllamaHostBare(t *testing.T) {
	t.Setenv("OLLAMAFLOW_URL", "")
	t.Setenv("OLLAMA_HOST", "gpu-box:11434")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "http://gpu-box:11434", cfg.Server.URL)
}

func TestApplyEnvOverrides_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "never", cfg.Output.Color)
}

// =============================================================================
// GET/SET DOT NOTATION
// =============================================================================

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("default_model", "llama3:8b"))
	val, err := cfg.Get("default_model")
	require.NoError(t, err)
	assert.Equal(t, "llama3:8b", val)

	require.NoError(t, cfg.Set("server.timeout_secs", "45"))
	assert.Equal(t, 45, cfg.Server.TimeoutSecs)

	require.NoError(t, cfg.Set("history.enabled", "false"))
	assert.False(t, cfg.History.Enabled)

	require.NoError(t, cfg.Set("server.rate_limit_rps", "2.5"))
	assert.Equal(t, 2.5, cfg.Server.RateLimitRPS)
}

func TestGetSet_UnknownField(t *testing.T) {
	cfg := Default()

	_, err := cfg.Get("server.nope")
	require.Error(t, err)

	err = cfg.Set("nope.nope", "x")
	require.Error(t, err)
}

func TestGetAllKeys_Resolvable(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, "key %s should resolve", key)
	}
}

// =============================================================================
// WATCHER
// =============================================================================

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`default_model = "a"`), 0o600))

	changed := make(chan *Config, 1)
	w, err := NewWatcher(path, 50*time.Millisecond, func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch())

	// Give the watcher a moment to register before writing
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`default_model = "b"`), 0o600))

	select {
	case cfg := <-changed:
		assert.Equal(t, "b", cfg.DefaultModel)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report change")
	}
}
