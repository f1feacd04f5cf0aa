package protocol

// ContentBlock represents a typed content element within a prompt or update.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// TextBlock creates a ContentBlock with type "text" and the given text.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// PromptRequest is a client request to send a user prompt to a session.
type PromptRequest struct {
	SessionID SessionID      `json:"sessionId"`
	Prompt    []ContentBlock `json:"prompt"`
}

// StopReason indicates why the agent stopped generating a response.
type StopReason string

const (
	// StopReasonEndTurn indicates the agent completed its response normally.
	StopReasonEndTurn StopReason = "end_turn"
	// StopReasonMaxTokens indicates the agent stopped because the token limit was reached.
	StopReasonMaxTokens StopReason = "max_tokens"
	// StopReasonMaxTurnRequests indicates the agent stopped because the maximum turn requests were reached.
	StopReasonMaxTurnRequests StopReason = "max_turn_requests"
	// StopReasonRefusal indicates the agent refused to respond.
	StopReasonRefusal StopReason = "refusal"
	// StopReasonCancelled indicates the prompt was cancelled by the client.
	StopReasonCancelled StopReason = "cancelled"
)

// PromptResponse is the agent's final response after processing a prompt.
type PromptResponse struct {
	StopReason StopReason `json:"stopReason"`
}

// CancelNotification is a client notification to cancel an active prompt.
type CancelNotification struct {
	SessionID SessionID `json:"sessionId"`
}

// SessionNotification is an agent notification carrying a session update event.
type SessionNotification struct {
	SessionID SessionID     `json:"sessionId"`
	Update    SessionUpdate `json:"update"`
}
