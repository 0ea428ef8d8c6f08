package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultToolTimeout applies when neither settings.toml nor the
// environment name a tool timeout.
const DefaultToolTimeout = 60 * time.Second

// Settings mirrors settings.toml.
type Settings struct {
	DataDirectory string `toml:"data_directory"`
	UserID        string `toml:"user_id"`
	ToolTimeout   string `toml:"tool_timeout"`
	ServersFile   string `toml:"servers_file,omitempty"`
	Debug         bool   `toml:"debug"`
}

type Config struct {
	DataDirectory string
	UserID        string
	ToolTimeout   time.Duration
	ServersFile   string
	Debug         bool
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// ServersPath returns the tool-provider registry location. A relative
// servers_file is resolved against the config directory.
func (c *Config) ServersPath() string {
	switch {
	case c.ServersFile == "":
		return filepath.Join(GetConfigDir(), "mcp_servers.json")
	case filepath.IsAbs(c.ServersFile) || strings.HasPrefix(c.ServersFile, "~"):
		return ExpandPath(c.ServersFile)
	}
	return filepath.Join(GetConfigDir(), c.ServersFile)
}

func defaultConfig() *Config {
	return &Config{
		DataDirectory: GetDefaultDataDir(),
		UserID:        "local",
		ToolTimeout:   DefaultToolTimeout,
	}
}

// CheckDebug reports whether TOOLCHAT_DEBUG asks for debug logging.
func CheckDebug() bool {
	debug := os.Getenv("TOOLCHAT_DEBUG")
	return debug == "true" || debug == "1"
}

// Load builds the effective configuration: defaults, then settings.toml
// (when present), then environment overrides. The data directory is
// created with user-only permissions.
func Load() (*Config, error) {
	return LoadFrom(GetSettingsFilePath())
}

func LoadFrom(settingsPath string) (*Config, error) {
	cfg := defaultConfig()

	if FileExists(settingsPath) {
		var settings Settings
		if _, err := toml.DecodeFile(settingsPath, &settings); err != nil {
			return nil, fmt.Errorf("failed to parse settings: %w", err)
		}
		if err := cfg.applySettings(settings); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	dataDir := cfg.DataDir()
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	return cfg, nil
}

func (c *Config) applySettings(s Settings) error {
	if s.DataDirectory != "" {
		c.DataDirectory = s.DataDirectory
	}
	if s.UserID != "" {
		c.UserID = s.UserID
	}
	if s.ToolTimeout != "" {
		d, err := parseTimeout(s.ToolTimeout)
		if err != nil {
			return fmt.Errorf("settings tool_timeout: %w", err)
		}
		c.ToolTimeout = d
	}
	c.ServersFile = s.ServersFile
	c.Debug = s.Debug
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if dataDir := os.Getenv("TOOLCHAT_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if userID := os.Getenv("TOOLCHAT_USER_ID"); userID != "" {
		c.UserID = userID
	}
	if timeout := os.Getenv("TOOLCHAT_TOOL_TIMEOUT"); timeout != "" {
		d, err := parseTimeout(timeout)
		if err != nil {
			return fmt.Errorf("TOOLCHAT_TOOL_TIMEOUT: %w", err)
		}
		c.ToolTimeout = d
	}
	if servers := os.Getenv("TOOLCHAT_SERVERS_FILE"); servers != "" {
		c.ServersFile = servers
	}
	if CheckDebug() {
		c.Debug = true
	}
	return nil
}

func parseTimeout(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	case d <= 0:
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

// SaveSettings writes settings.toml with 0600 permissions.
func SaveSettings(path string, s Settings) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create settings file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return nil
}

func GenerateSettingsTemplate() string {
	return `# toolchat settings
# Location: ~/.config/toolchat/settings.toml
# This file uses TOML format: https://toml.io

# Directory holding the conversation database and debug log
data_directory = "~/.local/share/toolchat"

# Identity that owns stored conversations
user_id = "local"

# Default deadline for a single tool-provider request
tool_timeout = "60s"

# Tool-provider registry (JSON or YAML), relative to this directory
servers_file = "mcp_servers.json"

# Write debug.log into the data directory (also TOOLCHAT_DEBUG=1)
debug = false
`
}
