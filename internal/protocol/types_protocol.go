package protocol

// ProtocolVersion is the ACP protocol version advertised during the handshake.
const ProtocolVersion = 1

// ACP JSON-RPC method names used by the client side of the protocol.
const (
	// MethodInitialize is the method for the protocol handshake request.
	MethodInitialize = "initialize"
	// MethodAuthenticate is the method for authentication requests.
	MethodAuthenticate = "authenticate"
	// MethodSessionNew is the method for creating a new session.
	MethodSessionNew = "session/new"
	// MethodSessionPrompt is the method for sending a prompt to a session.
	MethodSessionPrompt = "session/prompt"
	// MethodSessionCancel is the notification for cancelling an active prompt.
	MethodSessionCancel = "session/cancel"
	// MethodSessionSetMode is the method for changing a session's mode.
	MethodSessionSetMode = "session/set_mode"
	// MethodSessionSetModel is the method for changing a session's model.
	MethodSessionSetModel = "session/set_model"
	// MethodSessionUpdate is the notification method for streaming session updates to the client.
	MethodSessionUpdate = "session/update"
	// MethodRequestPermission is the method for requesting tool execution approval from the client.
	MethodRequestPermission = "session/request_permission"
)

// ErrorCode represents a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	// ErrParseError indicates invalid JSON was received.
	ErrParseError ErrorCode = -32700
	// ErrInvalidRequest indicates the JSON is not a valid JSON-RPC request.
	ErrInvalidRequest ErrorCode = -32600
	// ErrMethodNotFound indicates the requested method does not exist.
	ErrMethodNotFound ErrorCode = -32601
	// ErrInvalidParams indicates invalid method parameters were supplied.
	ErrInvalidParams ErrorCode = -32602
	// ErrInternalError indicates an internal error occurred.
	ErrInternalError ErrorCode = -32603
	// ErrAuthRequired indicates authentication is required for the requested operation.
	ErrAuthRequired ErrorCode = -32000
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound ErrorCode = -32002
)
