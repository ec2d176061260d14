package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
listen: 127.0.0.1:9090
log_level: debug
storage:
  path: /var/lib/spreadsheet
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/lib/spreadsheet", cfg.Storage.Path)
	assert.True(t, cfg.Storage.Enabled())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.False(t, cfg.Storage.Enabled())

	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "storage:\n  in_memory: true\n")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.True(t, cfg.Storage.Enabled())
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "listen: [")
	_, err = LoadConfig(bad)
	assert.Error(t, err)

	both := filepath.Join(dir, "both.yaml")
	writeFile(t, both, "storage:\n  path: /tmp/x\n  in_memory: true\n")
	_, err = LoadConfig(both)
	assert.Error(t, err)

	level := filepath.Join(dir, "level.yaml")
	writeFile(t, level, "log_level: loud\n")
	_, err = LoadConfig(level)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("debug", os.Stderr)
	assert.NoError(t, err)

	_, err = newLogger("verbose", os.Stderr)
	assert.Error(t, err)
}
