package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NotNil(t, cfg)
	assert.Equal(t, "text", cfg.Format)
	assert.False(t, cfg.Quiet)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, "https://collector.channeltime.io", cfg.Daemon.CollectorURL)
	assert.Equal(t, "127.0.0.1:7381", cfg.Daemon.ListenAddr)
	assert.Equal(t, time.Minute, cfg.Daemon.FlushInterval)
	assert.Equal(t, 3, cfg.Daemon.MaxRetryAttempts)
	assert.Equal(t, 100, cfg.Daemon.QueueCapacity)
	assert.Equal(t, 10*time.Second, cfg.Daemon.SenderTimeout)
}

func TestLoad(t *testing.T) {
	t.Run("returns defaults when no config file exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		origDir, _ := os.Getwd()
		os.Chdir(tmpDir)
		defer os.Chdir(origDir)
		t.Setenv("HOME", tmpDir)

		cfg, err := Load()
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "text", cfg.Format)
		assert.Equal(t, 100, cfg.Daemon.QueueCapacity)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		tmpDir := t.TempDir()
		origDir, _ := os.Getwd()
		os.Chdir(tmpDir)
		defer os.Chdir(origDir)
		t.Setenv("HOME", tmpDir)
		t.Setenv("CTW_COLLECTOR_URL", "http://localhost:9000")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:9000", cfg.Daemon.CollectorURL)
	})
}

func TestLoadFromFile(t *testing.T) {
	t.Run("loads config from file", func(t *testing.T) {
		tmpDir := t.TempDir()

		configContent := `
format: json
quiet: true
daemon:
  collector_url: "http://localhost:8080"
  listen_addr: "127.0.0.1:9999"
  flush_interval: 30s
  queue_capacity: 50
`
		configPath := filepath.Join(tmpDir, "ctw.yaml")
		err := os.WriteFile(configPath, []byte(configContent), 0644)
		require.NoError(t, err)

		cfg, err := LoadFromFile(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "json", cfg.Format)
		assert.True(t, cfg.Quiet)
		assert.Equal(t, "http://localhost:8080", cfg.Daemon.CollectorURL)
		assert.Equal(t, "127.0.0.1:9999", cfg.Daemon.ListenAddr)
		assert.Equal(t, 30*time.Second, cfg.Daemon.FlushInterval)
		assert.Equal(t, 50, cfg.Daemon.QueueCapacity)
		// Untouched keys keep their defaults
		assert.Equal(t, 3, cfg.Daemon.MaxRetryAttempts)
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		cfg, err := LoadFromFile("/nonexistent/path/config.yaml")
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "bad.yaml")
		err := os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
		require.NoError(t, err)

		cfg, err := LoadFromFile(configPath)
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})
}
