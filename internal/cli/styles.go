package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/erg0nix/acplink/internal/agentclient"
	"github.com/erg0nix/acplink/internal/protocol"
)

var (
	colorPrimary = lipgloss.Color("#7C71F9")
	colorSuccess = lipgloss.Color("#34D399")
	colorError   = lipgloss.Color("#F87171")
	colorWarning = lipgloss.Color("#FBBF24")
	colorDim     = lipgloss.Color("#6B7280")
	colorAccent  = lipgloss.Color("#60A5FA")
)

var (
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleError   = lipgloss.NewStyle().Foreground(colorError)
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning)

	styleToolName = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	styleReasoning = lipgloss.NewStyle().Faint(true).Italic(true)

	stylePrompt      = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	styleTableHeader = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)

	styleActive = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	styleValue  = lipgloss.NewStyle().Foreground(colorAccent)
)

var toolKindColors = map[protocol.ToolKind]lipgloss.TerminalColor{
	protocol.ToolKindRead:    colorSuccess,
	protocol.ToolKindEdit:    colorWarning,
	protocol.ToolKindDelete:  colorError,
	protocol.ToolKindExecute: colorAccent,
	protocol.ToolKindSearch:  colorDim,
	protocol.ToolKindFetch:   colorDim,
}

func toolKindStyle(kind protocol.ToolKind) lipgloss.Style {
	if c, ok := toolKindColors[kind]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return styleDim
}

var toolKindLabels = map[protocol.ToolKind]string{
	protocol.ToolKindRead:    "read",
	protocol.ToolKindEdit:    "edit",
	protocol.ToolKindDelete:  "del",
	protocol.ToolKindMove:    "move",
	protocol.ToolKindExecute: "exec",
	protocol.ToolKindSearch:  "search",
	protocol.ToolKindFetch:   "fetch",
	protocol.ToolKindThink:   "think",
}

func toolKindLabel(kind protocol.ToolKind) string {
	if label, ok := toolKindLabels[kind]; ok {
		return label
	}
	return "tool"
}

func stateStyle(state agentclient.State) lipgloss.Style {
	switch state {
	case agentclient.StateConnected:
		return styleSuccess
	case agentclient.StateConnecting:
		return styleWarning
	case agentclient.StateError:
		return styleError
	}
	return styleDim
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Headers(headers...).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(true).
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleTableHeader
			}
			return lipgloss.NewStyle().PaddingRight(2)
		})
}

func styledError(msg string, hints ...string) string {
	out := styleError.Render(msg)
	for _, h := range hints {
		out += "\n  " + styleDim.Render(h)
	}
	return out
}
