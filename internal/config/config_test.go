package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://parthgoai.pythonanywhere.com", cfg.API.BaseURL)
	assert.Zero(t, cfg.API.Timeout)
	assert.Zero(t, cfg.API.RateLimit)
	assert.Equal(t, 2*time.Second, cfg.Polling.JobInterval)
	assert.Equal(t, 3*time.Second, cfg.Polling.OptimizeInterval)
	assert.Equal(t, 30*time.Minute, cfg.Polling.MaxPollDuration)
	assert.Equal(t, 4, cfg.Polling.MaxConcurrent)
	assert.Equal(t, 5*time.Minute, cfg.Polling.WaitTimeout)
	assert.Equal(t, 5*time.Second, cfg.Notifications.TTL)
	assert.Equal(t, "~/.config/llmredi", cfg.Storage.Path)
	assert.Equal(t, "llmredi.db", cfg.Storage.SQLiteFile)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadValidYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
api:
  base_url: "http://localhost:5002"
  timeout: 30s
polling:
  job_interval: 500ms
  max_poll_duration: 0s
logging:
  level: "debug"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(yamlContent), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5002", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Polling.JobInterval)
	assert.Zero(t, cfg.Polling.MaxPollDuration)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Non-overridden values remain defaults
	assert.Equal(t, 3*time.Second, cfg.Polling.OptimizeInterval)
	assert.Equal(t, 5*time.Second, cfg.Notifications.TTL)
}

func TestLoadInvalidYAMLReturnsError(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(":::not valid yaml{{{"), 0o644))

	_, err := Load(cfgPath)
	assert.Error(t, err)
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("polling:\n  job_interval: 0s\n"), 0o644))

	_, err := Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job_interval")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, "http://127.0.0.1:9000")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvDebug, "true")

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("api:\n  base_url: http://ignored\n"), 0o644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.API.BaseURL)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.True(t, cfg.API.Debug)
}

func TestLoadOrCreateCreatesDefaultsWhenMissing(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "sub", "deep", "config.yaml")

	cfg, err := LoadOrCreateAt(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Polling.JobInterval)

	_, statErr := os.Stat(cfgPath)
	assert.NoError(t, statErr)

	cfg2, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Polling, cfg2.Polling)
	assert.Equal(t, cfg.API.BaseURL, cfg2.API.BaseURL)
}

func TestDatabaseAndLogPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Path = "/tmp/llmredi-test"

	db, err := cfg.DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/llmredi-test/llmredi.db", db)

	logPath, err := cfg.LogPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/llmredi-test/llmredi.log", logPath)

	cfg.Logging.File = "/var/log/llmredi.log"
	logPath, err = cfg.LogPath()
	require.NoError(t, err)
	assert.Equal(t, "/var/log/llmredi.log", logPath)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	p, err := ExpandPath("~/.config/llmredi")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config/llmredi"), p)

	p, err = ExpandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", p)
}
