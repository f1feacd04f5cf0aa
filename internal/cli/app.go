package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/erg0nix/acplink/internal/agentclient"
	"github.com/erg0nix/acplink/internal/config"
	"github.com/erg0nix/acplink/internal/diagnostic"
	"github.com/erg0nix/acplink/internal/health"
	"github.com/erg0nix/acplink/internal/logging"
	"github.com/erg0nix/acplink/internal/protocol"

	"github.com/spf13/cobra"
)

// App bundles what every agent-facing command needs.
type App struct {
	Config config.Config
	Log    *slog.Logger
	Client *agentclient.Client

	sink       *logging.Sink
	cwd        string
	stopHealth context.CancelFunc
}

func newApp(cmd *cobra.Command) (*App, error) {
	configPath, _ := cmd.Flags().GetString("config")
	levelOverride, _ := cmd.Flags().GetString("log-level")
	agentOverride, _ := cmd.Flags().GetString("agent")
	cwd, _ := cmd.Flags().GetString("cwd")

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if levelOverride != "" {
		cfg.LogLevel = levelOverride
	}
	if agentOverride != "" {
		cfg.Agent.Command = agentOverride
	}

	sink, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}
	log := sink.Logger()

	client := agentclient.New(agentclient.Options{
		Command:               cfg.Agent.Command,
		Args:                  cfg.Agent.Args,
		Env:                   cfg.Agent.Env,
		Dir:                   cfg.Agent.WorkingDir,
		SkipAvailabilityCheck: cfg.Agent.SkipAvailabilityCheck,
		HandshakeTimeout:      cfg.HandshakeTimeout(),
		ClientInfo:            protocol.Implementation{Name: cfg.Client.Name, Version: cfg.Client.Version},
		Log:                   log,
	})

	app := &App{
		Config: cfg,
		Log:    log,
		Client: client,
		sink:   sink,
		cwd:    cwd,
	}

	client.OnAgentError(func(sig diagnostic.Signal) {
		fmt.Fprintln(os.Stderr, styledError(sig.Message, "error type: "+sig.ErrorType))
	})

	if cfg.Health.Bind != "" {
		app.startHealth(cmd.Context())
	}

	return app, nil
}

func (a *App) startHealth(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	a.stopHealth = cancel

	srv := health.NewServer(a.Log)
	srv.Track(a.Client)

	go func() {
		if err := srv.ListenAndServe(ctx, a.Config.Health.Bind); err != nil {
			a.Log.Error("health server stopped", "error", err)
		}
	}()
}

// Open connects to the agent and starts a session.
func (a *App) Open(ctx context.Context) (agentclient.SessionInfo, error) {
	if _, err := a.Client.Connect(ctx); err != nil {
		return agentclient.SessionInfo{}, fmt.Errorf("connect to %s: %w", a.Config.Agent.Command, err)
	}

	info, err := a.Client.NewSession(ctx, a.cwd)
	if err != nil {
		return agentclient.SessionInfo{}, fmt.Errorf("new session: %w", err)
	}
	return info, nil
}

func (a *App) Close() {
	a.Client.Dispose()
	if a.stopHealth != nil {
		a.stopHealth()
	}
	_ = a.sink.Close()
}
