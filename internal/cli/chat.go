package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/erg0nix/acplink/internal/agentclient"
	"github.com/erg0nix/acplink/internal/protocol"

	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive session with the agent",
		RunE:  runChatCmd,
	}
}

func runChatCmd(cmd *cobra.Command, _ []string) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	info, err := app.Open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, styledError("could not start agent", err.Error()))
		return err
	}

	printer := &eventPrinter{out: out}
	app.Client.OnEvent(printer.handle)
	app.Client.OnStateChange(func(state agentclient.State) {
		if state == agentclient.StateDisconnected || state == agentclient.StateError {
			fmt.Fprintln(out, "\n"+stateStyle(state).Render("agent "+state.String()))
		}
	})

	fmt.Fprintln(out, styleDim.Render("session ")+styleValue.Render(string(info.SessionID))+
		styleDim.Render("  /help for commands, ctrl-c cancels a turn"))

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, stylePrompt.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := runChatCommand(ctx, app, out, line)
			if err != nil {
				fmt.Fprintln(out, styledError(err.Error()))
			}
			if quit {
				return nil
			}
			continue
		}

		if !app.Client.IsConnected() {
			fmt.Fprintln(out, styledError("agent is not connected", "restart acplink chat"))
			return agentclient.ErrNotConnected
		}

		stop := cancelOnInterrupt(app)
		result, err := app.Client.SendMessage(ctx, line)
		stop()
		if err != nil {
			fmt.Fprintln(out, "\n"+styledError("prompt failed", err.Error()))
			continue
		}

		fmt.Fprintln(out)
		if result.StopReason != protocol.StopReasonEndTurn {
			printStopReason(out, result.StopReason)
		}
	}
}

// runChatCommand handles a slash command and reports whether chat should end.
func runChatCommand(ctx context.Context, app *App, out io.Writer, line string) (bool, error) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(out, styleDim.Render("/mode <id>  /model <id>  /info  /quit"))
	case "mode":
		if arg == "" {
			return false, fmt.Errorf("usage: /mode <id>")
		}
		if err := app.Client.SetMode(ctx, arg); err != nil {
			return false, err
		}
		fmt.Fprintln(out, styleDim.Render("mode ")+styleValue.Render(arg))
	case "model":
		if arg == "" {
			return false, fmt.Errorf("usage: /model <id>")
		}
		if err := app.Client.SetModel(ctx, arg); err != nil {
			return false, err
		}
		fmt.Fprintln(out, styleDim.Render("model ")+styleValue.Render(arg))
	case "info":
		printSessionMetadata(out, app.Client.SessionMetadata())
	default:
		return false, fmt.Errorf("unknown command /%s", name)
	}
	return false, nil
}

// cancelOnInterrupt turns ctrl-c into a turn cancellation until the returned
// stop func is called.
func cancelOnInterrupt(app *App) func() {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigCh, os.Interrupt)

	go func() {
		for {
			select {
			case <-sigCh:
				if err := app.Client.Cancel(context.Background()); err != nil {
					app.Log.Warn("cancel failed", "error", err)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
