package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"TOOLCHAT_DATA_DIR", "TOOLCHAT_USER_ID", "TOOLCHAT_TOOL_TIMEOUT", "TOOLCHAT_SERVERS_FILE", "TOOLCHAT_DEBUG"} {
		t.Setenv(key, "")
	}
}

func TestLoadFromDefaults(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := LoadFrom(filepath.Join(home, "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.UserID)
	assert.Equal(t, DefaultToolTimeout, cfg.ToolTimeout)
	assert.False(t, cfg.Debug)
	assert.DirExists(t, cfg.DataDir())
	assert.Equal(t, filepath.Join(home, ".config", "toolchat", "mcp_servers.json"), cfg.ServersPath())
}

func TestLoadFromSettingsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	settingsPath := filepath.Join(dir, "settings.toml")
	require.NoError(t, SaveSettings(settingsPath, Settings{
		DataDirectory: filepath.Join(dir, "data"),
		UserID:        "alice",
		ToolTimeout:   "15s",
		ServersFile:   "servers.yaml",
		Debug:         true,
	}))

	cfg, err := LoadFrom(settingsPath)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir())
	assert.Equal(t, "alice", cfg.UserID)
	assert.Equal(t, 15*time.Second, cfg.ToolTimeout)
	assert.True(t, cfg.Debug)
	assert.Equal(t, filepath.Join(dir, ".config", "toolchat", "servers.yaml"), cfg.ServersPath())

	info, err := os.Stat(cfg.DataDir())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestEnvOverridesSettings(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	settingsPath := filepath.Join(dir, "settings.toml")
	require.NoError(t, SaveSettings(settingsPath, Settings{UserID: "alice", ToolTimeout: "15s"}))

	t.Setenv("TOOLCHAT_USER_ID", "bob")
	t.Setenv("TOOLCHAT_TOOL_TIMEOUT", "2s")
	t.Setenv("TOOLCHAT_DATA_DIR", filepath.Join(dir, "env-data"))
	t.Setenv("TOOLCHAT_DEBUG", "1")

	cfg, err := LoadFrom(settingsPath)
	require.NoError(t, err)

	assert.Equal(t, "bob", cfg.UserID)
	assert.Equal(t, 2*time.Second, cfg.ToolTimeout)
	assert.Equal(t, filepath.Join(dir, "env-data"), cfg.DataDir())
	assert.True(t, cfg.Debug)
}

func TestLoadRejectsBadTimeout(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	tests := []struct {
		name  string
		value string
	}{
		{"not a duration", "soon"},
		{"zero", "0s"},
		{"negative", "-5s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TOOLCHAT_TOOL_TIMEOUT", tt.value)
			_, err := LoadFrom(filepath.Join(dir, "missing.toml"))
			assert.Error(t, err)
		})
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("TOOLCHAT_TEST_DIR", "/srv/data")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, "/home/tester", ExpandPath("~"))
	assert.Equal(t, "/home/tester/notes", ExpandPath("~/notes"))
	assert.Equal(t, "/srv/data/db", ExpandPath("$TOOLCHAT_TEST_DIR/db"))
	assert.Equal(t, "/a/c", ExpandPath("/a/b/../c"))
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()

	logger, closer, err := NewLogger(dir, false)
	require.NoError(t, err)
	logger.Info("dropped")
	require.NoError(t, closer.Close())
	assert.NoFileExists(t, filepath.Join(dir, "debug.log"))

	logger, closer, err = NewLogger(dir, true)
	require.NoError(t, err)
	logger.Debug("kept", "component", "test")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "kept")
	assert.Contains(t, string(data), "component=test")
}
