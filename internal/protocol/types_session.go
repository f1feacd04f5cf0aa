package protocol

// SessionID is the opaque identifier the agent assigns to a session.
type SessionID string

// NewSessionRequest is a client request to create a new agent session.
type NewSessionRequest struct {
	Cwd        string      `json:"cwd"`
	McpServers []McpServer `json:"mcpServers"`
}

// McpServer is an auxiliary MCP server endpoint attached to a session. This
// client always sends an empty list.
type McpServer struct {
	Name    string   `json:"name"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

// NewSessionResponse is the agent's response containing the new session ID and
// the optional initial mode and model state.
type NewSessionResponse struct {
	SessionID SessionID          `json:"sessionId"`
	Modes     *SessionModeState  `json:"modes,omitempty"`
	Models    *SessionModelState `json:"models,omitempty"`
}

// SessionMode is one selectable operating mode (for example "code" or "plan").
type SessionMode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SessionModeState is the set of available modes plus the current one.
type SessionModeState struct {
	CurrentModeID  string        `json:"currentModeId"`
	AvailableModes []SessionMode `json:"availableModes"`
}

// ModelInfo is one selectable model.
type ModelInfo struct {
	ModelID     string `json:"modelId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// SessionModelState is the set of available models plus the current one.
type SessionModelState struct {
	CurrentModelID  string      `json:"currentModelId"`
	AvailableModels []ModelInfo `json:"availableModels"`
}

// SetSessionModeRequest is a client request to change a session's operating mode.
type SetSessionModeRequest struct {
	SessionID SessionID `json:"sessionId"`
	ModeID    string    `json:"modeId"`
}

// SetSessionModeResponse is the agent's response to a mode change request.
type SetSessionModeResponse struct{}

// SetSessionModelRequest is a client request to change a session's model.
type SetSessionModelRequest struct {
	SessionID SessionID `json:"sessionId"`
	ModelID   string    `json:"modelId"`
}

// SetSessionModelResponse is the agent's response to a model change request.
type SetSessionModelResponse struct{}
