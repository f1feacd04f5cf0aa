package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// UpdateHandler is a callback invoked when the agent sends a session update notification.
type UpdateHandler func(SessionNotification)

// PermissionHandler is a callback invoked when the agent requests tool execution approval.
type PermissionHandler func(RequestPermissionRequest) RequestPermissionResponse

// ClientCallbacks holds the callback functions for handling agent-initiated messages.
type ClientCallbacks struct {
	OnUpdate     UpdateHandler
	OnPermission PermissionHandler
}

// Client is the client side of an ACP connection to an agent.
type Client struct {
	conn      *Connection
	callbacks ClientCallbacks
	log       *slog.Logger
}

// NewClient wraps the agent's stdin (w) and stdout (r) in a JSON-RPC connection
// and starts reading. Callbacks run on the connection's read loop for
// notifications and on a dedicated goroutine for requests.
func NewClient(w io.Writer, r io.Reader, callbacks ClientCallbacks, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	c := &Client{callbacks: callbacks, log: log}
	c.conn = NewConnection(c.dispatch, w, r)
	return c
}

// dispatch routes agent → client calls.
//
//	"session/update"             → OnUpdate (notification)
//	"session/request_permission" → OnPermission, cancelled when unset
//
// Every other method is answered with method-not-found since the client
// advertises no fs or terminal capabilities.
func (c *Client) dispatch(_ context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case MethodSessionUpdate:
		notif, err := decodeNotification(params)
		if err != nil {
			if notif.Update.Raw == nil {
				c.log.Warn("dropping malformed session update", "error", err)
				return nil, nil
			}
			c.log.Warn("session update payload does not match its kind", "kind", notif.Update.Kind, "error", err)
		}
		if c.callbacks.OnUpdate != nil {
			c.callbacks.OnUpdate(notif)
		}
		return nil, nil

	case MethodRequestPermission:
		var req RequestPermissionRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, NewRPCError(ErrInvalidParams, err.Error())
		}
		if c.callbacks.OnPermission != nil {
			return c.callbacks.OnPermission(req), nil
		}
		return RequestPermissionResponse{Outcome: PermissionCancelled()}, nil
	}

	c.log.Debug("unsupported agent method", "method", method)
	return nil, NewRPCError(ErrMethodNotFound, fmt.Sprintf("unknown method: %s", method))
}

// Initialize performs the ACP protocol handshake with the agent.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (InitializeResponse, error) {
	result, err := c.conn.Request(ctx, MethodInitialize, req)
	if err != nil {
		return InitializeResponse{}, err
	}

	var resp InitializeResponse
	if err := json.Unmarshal(result, &resp); err != nil {
		return InitializeResponse{}, fmt.Errorf("protocol: unmarshal initialize response: %w", err)
	}
	return resp, nil
}

// NewSession creates a new session on the agent.
func (c *Client) NewSession(ctx context.Context, req NewSessionRequest) (NewSessionResponse, error) {
	result, err := c.conn.Request(ctx, MethodSessionNew, req)
	if err != nil {
		return NewSessionResponse{}, err
	}

	var resp NewSessionResponse
	if err := json.Unmarshal(result, &resp); err != nil {
		return NewSessionResponse{}, fmt.Errorf("protocol: unmarshal session response: %w", err)
	}
	if resp.SessionID == "" {
		return NewSessionResponse{}, fmt.Errorf("protocol: session response without sessionId")
	}
	return resp, nil
}

// SetSessionMode switches the session to another mode.
func (c *Client) SetSessionMode(ctx context.Context, req SetSessionModeRequest) error {
	_, err := c.conn.Request(ctx, MethodSessionSetMode, req)
	return err
}

// SetSessionModel switches the session to another model.
func (c *Client) SetSessionModel(ctx context.Context, req SetSessionModelRequest) error {
	_, err := c.conn.Request(ctx, MethodSessionSetModel, req)
	return err
}

// Prompt sends a user prompt to the agent and blocks until the turn completes.
func (c *Client) Prompt(ctx context.Context, req PromptRequest) (PromptResponse, error) {
	result, err := c.conn.Request(ctx, MethodSessionPrompt, req)
	if err != nil {
		return PromptResponse{}, err
	}

	var resp PromptResponse
	if err := json.Unmarshal(result, &resp); err != nil {
		return PromptResponse{}, fmt.Errorf("protocol: unmarshal prompt response: %w", err)
	}
	return resp, nil
}

// Cancel sends a cancellation notification for the active prompt in the given session.
func (c *Client) Cancel(ctx context.Context, sessionID SessionID) error {
	return c.conn.Notify(ctx, MethodSessionCancel, CancelNotification{SessionID: sessionID})
}

// Done returns a channel that is closed when the agent's output stream ends.
func (c *Client) Done() <-chan struct{} {
	return c.conn.Done()
}

// Err reports why the agent's output stream ended. See Connection.Err.
func (c *Client) Err() error {
	return c.conn.Err()
}

// Close shuts down the client's underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
