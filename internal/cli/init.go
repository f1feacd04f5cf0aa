package cli

import (
	"fmt"
	"os"

	"github.com/erg0nix/acplink/internal/config"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE:  runInitCmd,
	}
	cmd.Flags().Bool("force", false, "overwrite an existing config")
	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	force, _ := cmd.Flags().GetBool("force")
	agent, _ := cmd.Flags().GetString("agent")

	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists; use --force to overwrite", path)
	}

	cfg := config.Default()
	if agent != "" {
		cfg.Agent.Command = agent
	}

	if err := config.Write(path, cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), styleSuccess.Render("wrote")+" "+path)
	return nil
}
