package agentclient

import (
	"slices"

	"github.com/erg0nix/acplink/internal/protocol"
)

// Session identifies the active agent session.
type Session struct {
	ID  protocol.SessionID
	Cwd string
}

// SessionInfo is returned by NewSession.
type SessionInfo struct {
	SessionID protocol.SessionID
	Modes     *protocol.SessionModeState
	Models    *protocol.SessionModelState
}

// SessionMetadata is the locally cached view of the session's modes, models
// and commands. Nil fields mean the agent has not reported them.
type SessionMetadata struct {
	Modes    *protocol.SessionModeState
	Models   *protocol.SessionModelState
	Commands []protocol.AvailableCommand
}

// PromptResult is the outcome of one prompt turn.
type PromptResult struct {
	StopReason protocol.StopReason
	// Text is the agent message text streamed during the turn.
	Text string
}

// Clone returns a deep copy so callers never share the client's state.
func (m *SessionMetadata) Clone() *SessionMetadata {
	if m == nil {
		return nil
	}
	return &SessionMetadata{
		Modes:    cloneModes(m.Modes),
		Models:   cloneModels(m.Models),
		Commands: slices.Clone(m.Commands),
	}
}

func cloneModes(s *protocol.SessionModeState) *protocol.SessionModeState {
	if s == nil {
		return nil
	}
	return &protocol.SessionModeState{
		CurrentModeID:  s.CurrentModeID,
		AvailableModes: slices.Clone(s.AvailableModes),
	}
}

func cloneModels(s *protocol.SessionModelState) *protocol.SessionModelState {
	if s == nil {
		return nil
	}
	return &protocol.SessionModelState{
		CurrentModelID:  s.CurrentModelID,
		AvailableModels: slices.Clone(s.AvailableModels),
	}
}
