package cli

import (
	"fmt"

	"github.com/erg0nix/acplink/internal/config"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "acplink",
		Short:         "Talk to an ACP agent over stdio",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("agent", "", "agent command, overrides the config")
	rootCmd.PersistentFlags().String("cwd", "", "session working directory")

	rootCmd.AddCommand(newPromptCmd())
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

func loadConfig(path string) (config.Config, error) {
	configPath := path
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
