package agentclient

import "github.com/erg0nix/acplink/internal/protocol"

// EventType identifies a typed session event.
type EventType string

const (
	EvtTextDelta        EventType = "text_delta"
	EvtThoughtDelta     EventType = "thought_delta"
	EvtToolCallStarted  EventType = "tool_call_started"
	EvtToolCallFinished EventType = "tool_call_finished"
	EvtModeChanged      EventType = "mode_changed"
	EvtCommandsChanged  EventType = "commands_changed"
	EvtPlanUpdated      EventType = "plan_updated"
)

// Event is a typed view of a session update. Only the fields relevant to
// Type are set.
type Event struct {
	Type      EventType
	SessionID protocol.SessionID

	// Text is the chunk for text and thought deltas. Accumulated is the
	// agent message text of the current prompt including this chunk.
	Text        string
	Accumulated string

	ToolCall       *protocol.ToolCall
	ToolCallUpdate *protocol.ToolCallUpdate

	ModeID   string
	Commands []protocol.AvailableCommand
	Plan     []protocol.PlanEntry
}
