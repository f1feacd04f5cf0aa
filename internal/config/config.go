package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type AgentConfig struct {
	Command                 string            `toml:"command"`
	Args                    []string          `toml:"args"`
	WorkingDir              string            `toml:"working_dir"`
	Env                     map[string]string `toml:"env"`
	SkipAvailabilityCheck   bool              `toml:"skip_availability_check"`
	HandshakeTimeoutSeconds int               `toml:"handshake_timeout_seconds"`
}

type ClientConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

type HealthConfig struct {
	// Bind is the gRPC health listen address. Empty disables it.
	Bind string `toml:"bind"`
}

type Config struct {
	LogLevel string       `toml:"log_level"`
	LogFile  string       `toml:"log_file"`
	Agent    AgentConfig  `toml:"agent"`
	Client   ClientConfig `toml:"client"`
	Health   HealthConfig `toml:"health"`
}

func Default() Config {
	return Config{
		LogLevel: "info",
		LogFile:  "",
		Agent: AgentConfig{
			Command:                 "opencode",
			Args:                    []string{"acp"},
			WorkingDir:              "",
			Env:                     map[string]string{},
			SkipAvailabilityCheck:   false,
			HandshakeTimeoutSeconds: 0,
		},
		Client: ClientConfig{
			Name:    "acplink",
			Version: "0.1.0",
		},
		Health: HealthConfig{
			Bind: "",
		},
	}
}

func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.toml")
}

func LoadOrCreate(path string) (Config, error) {
	config := Default()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			if err := Write(path, config); err != nil {
				return config, err
			}
			return LoadFromEnv(config), nil
		}

		return config, err
	}

	configData, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := toml.Unmarshal(configData, &config); err != nil {
		return config, fmt.Errorf("config: parse %s: %w", path, err)
	}

	config = LoadFromEnv(config)
	config.LogFile = expandPath(config.LogFile)
	config.Agent.WorkingDir = expandPath(config.Agent.WorkingDir)
	config.Agent.Command = strings.TrimSpace(config.Agent.Command)
	config.Health.Bind = strings.TrimSpace(config.Health.Bind)

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}

// Write stores config at path, creating parent directories.
func Write(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	configData, err := toml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, configData, 0o644)
}

func (c Config) Validate() error {
	if c.Agent.Command == "" {
		return errors.New("agent command is required")
	}
	if c.Agent.HandshakeTimeoutSeconds < 0 {
		return errors.New("handshake_timeout_seconds must not be negative")
	}
	return nil
}

// HandshakeTimeout is zero when the handshake may take as long as it needs.
func (c Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Agent.HandshakeTimeoutSeconds) * time.Second
}

func defaultDataDir() string {
	homeDir, _ := os.UserHomeDir()

	if homeDir == "" {
		return ".acplink"
	}

	return filepath.Join(homeDir, ".acplink")
}

func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()

		if homeDir != "" {
			trimmed := strings.TrimPrefix(path, "~")
			trimmed = strings.TrimPrefix(trimmed, string(os.PathSeparator))

			return filepath.Join(homeDir, trimmed)
		}
	}

	return path
}
