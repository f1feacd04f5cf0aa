package cli

import (
	"context"
	"fmt"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/erg0nix/acplink/internal/health"

	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Ask a running acplink whether its agent is connected",
		RunE:  runHealthCmd,
	}
	cmd.Flags().String("addr", "", "health address, defaults to [health] bind")
	return cmd
}

func runHealthCmd(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		addr = cfg.Health.Bind
	}
	if addr == "" {
		return fmt.Errorf("no health address; pass --addr or set [health] bind")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
	defer cancel()

	status, err := health.Check(ctx, addr)
	if err != nil {
		return err
	}

	style := styleError
	if status == healthpb.HealthCheckResponse_SERVING {
		style = styleSuccess
	}
	fmt.Fprintln(cmd.OutOrStdout(), style.Render(status.String())+" "+styleDim.Render(addr))
	return nil
}
