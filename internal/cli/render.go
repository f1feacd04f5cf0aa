package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/x/term"
	"github.com/muesli/termenv"

	"github.com/erg0nix/acplink/internal/agentclient"
	"github.com/erg0nix/acplink/internal/protocol"
)

// eventPrinter writes client events to out as they stream in. With quiet set
// message text is held back so the caller can render the final reply itself.
type eventPrinter struct {
	out   io.Writer
	quiet bool
}

func (p *eventPrinter) handle(evt agentclient.Event) {
	switch evt.Type {
	case agentclient.EvtTextDelta:
		if !p.quiet {
			fmt.Fprint(p.out, evt.Text)
		}
	case agentclient.EvtThoughtDelta:
		fmt.Fprint(p.out, styleReasoning.Render(evt.Text))
	case agentclient.EvtToolCallStarted:
		fmt.Fprintln(p.out, formatToolCall(evt.ToolCall))
	case agentclient.EvtToolCallFinished:
		fmt.Fprintln(p.out, formatToolResult(evt.ToolCallUpdate))
	case agentclient.EvtModeChanged:
		fmt.Fprintln(p.out, styleDim.Render("mode ")+styleValue.Render(evt.ModeID))
	case agentclient.EvtPlanUpdated:
		for _, entry := range evt.Plan {
			fmt.Fprintln(p.out, styleDim.Render("  ["+entry.Status+"] ")+entry.Content)
		}
	}
}

func formatToolCall(call *protocol.ToolCall) string {
	if call == nil {
		return ""
	}

	label := toolKindStyle(call.Kind).Render(toolKindLabel(call.Kind))
	line := label + " " + styleToolName.Render(call.Title)
	if call.RawInput != nil {
		if input, err := json.Marshal(call.RawInput); err == nil {
			line += styleDim.Render("(" + truncate(string(input), 80) + ")")
		}
	}
	return line
}

func formatToolResult(update *protocol.ToolCallUpdate) string {
	if update == nil || update.Status == nil {
		return ""
	}

	text := truncate(toolResultText(update.Content), 120)
	if *update.Status == protocol.ToolCallStatusFailed {
		return "  " + styleError.Render("fail") + " " + styleDim.Render(text)
	}
	return "  " + styleSuccess.Render("done") + " " + styleDim.Render(text)
}

func toolResultText(content []protocol.ToolCallContent) string {
	for _, c := range content {
		if c.Content != nil && c.Content.Text != "" {
			return c.Content.Text
		}
		if c.Type == "diff" {
			return c.Path
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}

	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func printStopReason(out io.Writer, reason protocol.StopReason) {
	switch reason {
	case protocol.StopReasonEndTurn:
		fmt.Fprintln(out, styleSuccess.Render("done"))
	case protocol.StopReasonCancelled:
		fmt.Fprintln(out, styleWarning.Render("cancelled"))
	default:
		fmt.Fprintln(out, styleWarning.Render("stopped: "+string(reason)))
	}
}

func isInteractive() bool {
	return term.IsTerminal(os.Stdout.Fd())
}

func compactStyle() ansi.StyleConfig {
	var style ansi.StyleConfig
	if termenv.HasDarkBackground() {
		style = glamourstyles.DarkStyleConfig
	} else {
		style = glamourstyles.LightStyleConfig
	}

	zero := uint(0)
	style.Document.Margin = &zero
	style.Document.BlockPrefix = ""
	style.Document.BlockSuffix = ""
	return style
}

func newMarkdownRenderer() *glamour.TermRenderer {
	width, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(compactStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

// renderMarkdown falls back to the raw text when rendering is unavailable.
func renderMarkdown(r *glamour.TermRenderer, text string) string {
	if r == nil {
		return text
	}
	rendered, err := r.Render(text)
	if err != nil {
		return text
	}
	return rendered
}
