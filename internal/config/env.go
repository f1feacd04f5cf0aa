package config

import (
	"os"
	"strings"
)

func LoadFromEnv(cfg Config) Config {
	if level := strings.TrimSpace(os.Getenv("ACPLINK_LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
	if command := strings.TrimSpace(os.Getenv("ACPLINK_AGENT_COMMAND")); command != "" {
		cfg.Agent.Command = command
	}
	if os.Getenv("ACPLINK_SKIP_AGENT_CHECK") == "1" {
		cfg.Agent.SkipAvailabilityCheck = true
	}
	return cfg
}
