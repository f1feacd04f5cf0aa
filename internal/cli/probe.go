package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/erg0nix/acplink/internal/agentclient"
	"github.com/erg0nix/acplink/internal/protocol"

	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Connect, open a session and show what the agent offers",
		RunE:  runProbeCmd,
	}
}

func runProbeCmd(cmd *cobra.Command, _ []string) error {
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

	if agent, ok := app.Client.AgentInfo(); ok {
		printAgentInfo(out, agent)
	}
	fmt.Fprintln(out, styleDim.Render("session ")+styleValue.Render(string(info.SessionID)))
	fmt.Fprintln(out)

	printSessionMetadata(out, app.Client.SessionMetadata())
	return nil
}

func printAgentInfo(out io.Writer, resp protocol.InitializeResponse) {
	name, version := "unknown", ""
	if resp.AgentInfo != nil {
		name = resp.AgentInfo.Name
		if resp.AgentInfo.Title != "" {
			name = resp.AgentInfo.Title
		}
		version = resp.AgentInfo.Version
	}

	line := styleToolName.Render(name)
	if version != "" {
		line += " " + styleDim.Render(version)
	}
	line += styleDim.Render(fmt.Sprintf("  protocol v%d", resp.ProtocolVersion))
	fmt.Fprintln(out, line)

	var caps []string
	if resp.AgentCapabilities.LoadSession {
		caps = append(caps, "load_session")
	}
	if pc := resp.AgentCapabilities.PromptCapabilities; pc != nil {
		if pc.Image {
			caps = append(caps, "image")
		}
		if pc.Audio {
			caps = append(caps, "audio")
		}
		if pc.EmbeddedContext {
			caps = append(caps, "embedded_context")
		}
	}
	if len(caps) > 0 {
		fmt.Fprintln(out, styleDim.Render("capabilities ")+strings.Join(caps, ", "))
	}
}

func printSessionMetadata(out io.Writer, meta *agentclient.SessionMetadata) {
	if meta == nil {
		fmt.Fprintln(out, styleDim.Render("no session"))
		return
	}

	if meta.Modes != nil && len(meta.Modes.AvailableModes) > 0 {
		t := newTable("MODE", "NAME", "DESCRIPTION")
		for _, m := range meta.Modes.AvailableModes {
			id := m.ID
			if id == meta.Modes.CurrentModeID {
				id = styleActive.Render("* " + id)
			}
			t.Row(id, m.Name, truncate(m.Description, 60))
		}
		fmt.Fprintln(out, t.Render())
		fmt.Fprintln(out)
	}

	if meta.Models != nil && len(meta.Models.AvailableModels) > 0 {
		t := newTable("MODEL", "NAME")
		for _, m := range meta.Models.AvailableModels {
			id := m.ModelID
			if id == meta.Models.CurrentModelID {
				id = styleActive.Render("* " + id)
			}
			t.Row(id, m.Name)
		}
		fmt.Fprintln(out, t.Render())
		fmt.Fprintln(out)
	}

	if len(meta.Commands) > 0 {
		t := newTable("COMMAND", "DESCRIPTION")
		for _, c := range meta.Commands {
			t.Row("/"+c.Name, truncate(c.Description, 60))
		}
		fmt.Fprintln(out, t.Render())
	}
}
