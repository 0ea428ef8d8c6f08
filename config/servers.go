package config

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// ServerConfig describes one tool provider. Stdio providers are spawned
// from Command/Args; SSE providers are reached at URL.
type ServerConfig struct {
	Transport string            `json:"transport" yaml:"transport"`
	Command   string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	URL       string            `json:"url,omitempty" yaml:"url,omitempty"`
}

type ServersConfig struct {
	MCPServers map[string]ServerConfig `json:"mcpServers" yaml:"mcpServers"`
}

// LoadServers reads the provider registry. A missing file is an empty
// registry; YAML is chosen by the .yaml/.yml extension, JSON otherwise.
func LoadServers(path string) (*ServersConfig, error) {
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return &ServersConfig{MCPServers: make(map[string]ServerConfig)}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read servers config: %w", err)
	}

	var cfg ServersConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode servers config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode servers config: %w", err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]ServerConfig)
	}
	for name, server := range cfg.MCPServers {
		if server.Transport == "" {
			server.Transport = TransportStdio
			cfg.MCPServers[name] = server
		}
		if err := server.Validate(); err != nil {
			return nil, fmt.Errorf("server %q: %w", name, err)
		}
	}

	return &cfg, nil
}

// ListServers returns the configured server names in sorted order.
func (sc *ServersConfig) ListServers() []string {
	names := make([]string, 0, len(sc.MCPServers))
	for name := range sc.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (sc *ServersConfig) Server(name string) (ServerConfig, bool) {
	server, ok := sc.MCPServers[name]
	return server, ok
}

func (s ServerConfig) Validate() error {
	switch s.Transport {
	case TransportStdio, "":
		if s.Command == "" {
			return fmt.Errorf("stdio transport requires a command")
		}
	case TransportSSE:
		if s.URL == "" {
			return fmt.Errorf("sse transport requires a url")
		}
	default:
		return fmt.Errorf("unknown transport: %s", s.Transport)
	}
	return nil
}

// Environ returns the process environment extended with the server's env.
func (s ServerConfig) Environ() []string {
	env := os.Environ()
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, s.Env[k]))
	}
	return env
}

// ResolveCommand maps launcher shims (npx, uvx) to their Windows names and
// looks the command up on PATH. Commands containing a path separator are
// returned as given.
func (s ServerConfig) ResolveCommand() (string, error) {
	command := s.Command
	switch {
	case command == "":
		return "", fmt.Errorf("empty command")
	case strings.ContainsRune(command, filepath.Separator) || strings.Contains(command, "/"):
		return command, nil
	}

	if runtime.GOOS == "windows" {
		switch command {
		case "npx", "npm":
			command += ".cmd"
		case "uvx", "uv":
			command += ".exe"
		}
	}

	resolved, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("command %q not found: %w", command, err)
	}
	return resolved, nil
}
