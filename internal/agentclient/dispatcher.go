package agentclient

import (
	"slices"

	"github.com/erg0nix/acplink/internal/protocol"
)

// dispatch handles one session/update notification. It runs on the
// connection's read loop, so updates arrive here in the order the agent
// sent them.
func (c *Client) dispatch(notif protocol.SessionNotification) {
	u := notif.Update
	if !u.Known() {
		c.log.Debug("unhandled session update", "kind", u.Kind, "session_id", notif.SessionID)
		c.updates.Emit(notif)
		return
	}

	switch u.Kind {
	case protocol.UpdateAgentMessageChunk:
		text := u.Chunk.Content.Text

		c.mu.Lock()
		c.accumulator.WriteString(text)
		acc := c.accumulator.String()
		c.mu.Unlock()

		c.events.Emit(Event{Type: EvtTextDelta, SessionID: notif.SessionID, Text: text, Accumulated: acc})

	case protocol.UpdateAgentThoughtChunk:
		c.events.Emit(Event{Type: EvtThoughtDelta, SessionID: notif.SessionID, Text: u.Chunk.Content.Text})

	case protocol.UpdateToolCall:
		c.events.Emit(Event{Type: EvtToolCallStarted, SessionID: notif.SessionID, ToolCall: u.ToolCall})

	case protocol.UpdateToolCallUpdate:
		// intermediate statuses are not republished
		if u.ToolCallUpdate.Status != nil && u.ToolCallUpdate.Status.Terminal() {
			c.events.Emit(Event{Type: EvtToolCallFinished, SessionID: notif.SessionID, ToolCallUpdate: u.ToolCallUpdate})
		}

	case protocol.UpdateCurrentMode:
		// the cached mode is only changed by SetMode
		c.events.Emit(Event{Type: EvtModeChanged, SessionID: notif.SessionID, ModeID: u.CurrentMode.CurrentModeID})

	case protocol.UpdateAvailableCommands:
		commands := u.AvailableCommands.AvailableCommands
		c.mergeCommands(notif.SessionID, commands)
		c.events.Emit(Event{Type: EvtCommandsChanged, SessionID: notif.SessionID, Commands: slices.Clone(commands)})

	case protocol.UpdatePlan:
		c.events.Emit(Event{Type: EvtPlanUpdated, SessionID: notif.SessionID, Plan: slices.Clone(u.Plan.Entries)})

	case protocol.UpdateUserMessageChunk:
		// echo of our own prompt
	}

	c.updates.Emit(notif)
}

// mergeCommands stores commands in the session metadata when they belong to
// the active session, and in the pending slot otherwise.
func (c *Client) mergeCommands(sessionID protocol.SessionID, commands []protocol.AvailableCommand) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.meta != nil && (sessionID == "" || sessionID == c.session.ID) {
		c.meta.Commands = slices.Clone(commands)
		return
	}

	c.pendingCommands = slices.Clone(commands)
	if c.pendingCommands == nil {
		c.pendingCommands = []protocol.AvailableCommand{}
	}
	c.log.Debug("buffered commands until a session exists", "count", len(commands))
}
