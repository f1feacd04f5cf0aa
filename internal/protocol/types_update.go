package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UpdateKind is the discriminator of a session update ("sessionUpdate" on the wire).
type UpdateKind string

const (
	UpdateUserMessageChunk  UpdateKind = "user_message_chunk"
	UpdateAgentMessageChunk UpdateKind = "agent_message_chunk"
	UpdateAgentThoughtChunk UpdateKind = "agent_thought_chunk"
	UpdateToolCall          UpdateKind = "tool_call"
	UpdateToolCallUpdate    UpdateKind = "tool_call_update"
	UpdatePlan              UpdateKind = "plan"
	UpdateAvailableCommands UpdateKind = "available_commands_update"
	UpdateCurrentMode       UpdateKind = "current_mode_update"
)

// ContentChunk is the payload of the three *_chunk update kinds.
type ContentChunk struct {
	Content ContentBlock `json:"content"`
}

// Plan is the payload of a "plan" update.
type Plan struct {
	Entries []PlanEntry `json:"entries"`
}

// AvailableCommandsUpdate is the payload of an "available_commands_update" update.
type AvailableCommandsUpdate struct {
	AvailableCommands []AvailableCommand `json:"availableCommands"`
}

// CurrentModeUpdate is the payload of a "current_mode_update" update.
type CurrentModeUpdate struct {
	CurrentModeID string `json:"currentModeId"`
}

// SessionUpdate is a decoded session update. Exactly one payload field is set
// for a known Kind. Kinds this client does not know keep their tag in Kind,
// leave every payload nil, and are still available through Raw.
type SessionUpdate struct {
	Kind UpdateKind

	Chunk             *ContentChunk
	ToolCall          *ToolCall
	ToolCallUpdate    *ToolCallUpdate
	Plan              *Plan
	AvailableCommands *AvailableCommandsUpdate
	CurrentMode       *CurrentModeUpdate

	// Raw is the update exactly as received. Empty for locally built updates.
	Raw json.RawMessage
}

// Known reports whether Kind is one of the update kinds this client decodes.
func (u SessionUpdate) Known() bool {
	return u.payload() != nil
}

func (u SessionUpdate) payload() any {
	switch u.Kind {
	case UpdateUserMessageChunk, UpdateAgentMessageChunk, UpdateAgentThoughtChunk:
		if u.Chunk != nil {
			return u.Chunk
		}
	case UpdateToolCall:
		if u.ToolCall != nil {
			return u.ToolCall
		}
	case UpdateToolCallUpdate:
		if u.ToolCallUpdate != nil {
			return u.ToolCallUpdate
		}
	case UpdatePlan:
		if u.Plan != nil {
			return u.Plan
		}
	case UpdateAvailableCommands:
		if u.AvailableCommands != nil {
			return u.AvailableCommands
		}
	case UpdateCurrentMode:
		if u.CurrentMode != nil {
			return u.CurrentMode
		}
	}
	return nil
}

// UnmarshalJSON decodes the discriminator and the matching payload.
func (u *SessionUpdate) UnmarshalJSON(data []byte) error {
	var tag struct {
		SessionUpdate UpdateKind `json:"sessionUpdate"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("protocol: decode session update: %w", err)
	}

	*u = SessionUpdate{
		Kind: tag.SessionUpdate,
		Raw:  append(json.RawMessage(nil), data...),
	}

	var err error
	switch u.Kind {
	case UpdateUserMessageChunk, UpdateAgentMessageChunk, UpdateAgentThoughtChunk:
		u.Chunk = new(ContentChunk)
		err = json.Unmarshal(data, u.Chunk)
	case UpdateToolCall:
		u.ToolCall = new(ToolCall)
		err = json.Unmarshal(data, u.ToolCall)
	case UpdateToolCallUpdate:
		u.ToolCallUpdate = new(ToolCallUpdate)
		err = json.Unmarshal(data, u.ToolCallUpdate)
	case UpdatePlan:
		u.Plan = new(Plan)
		err = json.Unmarshal(data, u.Plan)
	case UpdateAvailableCommands:
		u.AvailableCommands = new(AvailableCommandsUpdate)
		err = json.Unmarshal(data, u.AvailableCommands)
	case UpdateCurrentMode:
		u.CurrentMode = new(CurrentModeUpdate)
		err = json.Unmarshal(data, u.CurrentMode)
	}
	if err != nil {
		return fmt.Errorf("protocol: decode %s update: %w", u.Kind, err)
	}
	return nil
}

// decodeNotification decodes session/update params. When the update's
// payload does not match its kind, the error is returned together with a
// notification whose update carries only Kind and Raw.
func decodeNotification(params json.RawMessage) (SessionNotification, error) {
	var notif SessionNotification
	err := json.Unmarshal(params, &notif)
	if err == nil {
		return notif, nil
	}

	var envelope struct {
		SessionID SessionID       `json:"sessionId"`
		Update    json.RawMessage `json:"update"`
	}
	if json.Unmarshal(params, &envelope) != nil || len(envelope.Update) == 0 {
		return SessionNotification{}, err
	}

	var tag struct {
		SessionUpdate UpdateKind `json:"sessionUpdate"`
	}
	if json.Unmarshal(envelope.Update, &tag) != nil {
		return SessionNotification{}, err
	}

	return SessionNotification{
		SessionID: envelope.SessionID,
		Update: SessionUpdate{
			Kind: tag.SessionUpdate,
			Raw:  append(json.RawMessage(nil), envelope.Update...),
		},
	}, err
}

// MarshalJSON returns Raw when the update was received from the wire, and
// otherwise encodes the payload with its discriminator.
func (u SessionUpdate) MarshalJSON() ([]byte, error) {
	if len(u.Raw) > 0 {
		return u.Raw, nil
	}

	tag, err := json.Marshal(u.Kind)
	if err != nil {
		return nil, err
	}

	body := []byte("{}")
	if p := u.payload(); p != nil {
		if body, err = json.Marshal(p); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	buf.WriteString(`{"sessionUpdate":`)
	buf.Write(tag)
	if inner := bytes.TrimSpace(body[1 : len(body)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// AgentMessageChunk builds an update for a streamed text chunk from the agent.
func AgentMessageChunk(text string) SessionUpdate {
	return SessionUpdate{Kind: UpdateAgentMessageChunk, Chunk: &ContentChunk{Content: TextBlock(text)}}
}

// AgentThoughtChunk builds an update for a streamed reasoning chunk from the agent.
func AgentThoughtChunk(text string) SessionUpdate {
	return SessionUpdate{Kind: UpdateAgentThoughtChunk, Chunk: &ContentChunk{Content: TextBlock(text)}}
}

// ToolCallStart builds an update announcing a new pending tool call.
func ToolCallStart(id ToolCallID, title string, kind ToolKind) SessionUpdate {
	return SessionUpdate{Kind: UpdateToolCall, ToolCall: &ToolCall{
		ToolCallID: id,
		Title:      title,
		Kind:       kind,
		Status:     ToolCallStatusPending,
	}}
}

// ToolCallStatusUpdate builds an update moving a tool call to the given status.
func ToolCallStatusUpdate(id ToolCallID, status ToolCallStatus, content []ToolCallContent) SessionUpdate {
	return SessionUpdate{Kind: UpdateToolCallUpdate, ToolCallUpdate: &ToolCallUpdate{
		ToolCallID: id,
		Status:     &status,
		Content:    content,
	}}
}

// AvailableCommands builds an update advertising the agent's slash commands.
func AvailableCommands(commands []AvailableCommand) SessionUpdate {
	return SessionUpdate{Kind: UpdateAvailableCommands, AvailableCommands: &AvailableCommandsUpdate{AvailableCommands: commands}}
}

// CurrentMode builds an update announcing a mode switch.
func CurrentMode(modeID string) SessionUpdate {
	return SessionUpdate{Kind: UpdateCurrentMode, CurrentMode: &CurrentModeUpdate{CurrentModeID: modeID}}
}
