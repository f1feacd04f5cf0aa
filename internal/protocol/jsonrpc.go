package protocol

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

const maxMessageSize = 10 * 1024 * 1024

// MethodHandler is a function that handles an incoming JSON-RPC method call.
// For notifications the returned value is discarded.
type MethodHandler func(ctx context.Context, method string, params json.RawMessage) (any, error)

// Connection is a bidirectional JSON-RPC 2.0 connection over line-delimited JSON.
//
// Responses and notifications are processed inline by the read loop, so a
// handler observes notifications in the order the peer wrote them and a
// Request only returns after every notification sent before its response.
// Incoming requests run on their own goroutine.
type Connection struct {
	writer  io.Writer
	scanner *bufio.Scanner
	handler MethodHandler
	pending map[int]chan jsonrpcResponse
	nextID  int
	mu      sync.Mutex
	writeMu sync.Mutex
	done    chan struct{}
	err     error
	ctx     context.Context
	cancel  context.CancelFunc
}

type jsonrpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type jsonrpcResponse struct {
	Result json.RawMessage
	Error  *jsonrpcError
	Closed bool
}

// RPCError represents a JSON-RPC 2.0 error with a code and message.
type RPCError struct {
	Code    int
	Message string
	Data    json.RawMessage
}

// Error returns a formatted string containing the RPC error code and message.
func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// NewRPCError creates an RPCError with the given error code and message.
func NewRPCError(code ErrorCode, message string) *RPCError {
	return &RPCError{Code: int(code), Message: message}
}

// ErrConnectionClosed is returned by Request when the read loop ends before a response arrives.
var ErrConnectionClosed = errors.New("protocol: connection closed")

// NewConnection creates a Connection with the given handler and starts its read loop.
func NewConnection(handler MethodHandler, w io.Writer, r io.Reader) *Connection {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		writer:  w,
		scanner: scanner,
		handler: handler,
		pending: make(map[int]chan jsonrpcResponse),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.readLoop()
	return c
}

func (c *Connection) readLoop() {
	defer close(c.done)
	defer c.cancel()

	for c.scanner.Scan() {
		line := bytes.TrimSpace(c.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var msg jsonrpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}

		hasID := len(msg.ID) > 0 && !bytes.Equal(msg.ID, []byte("null"))

		switch {
		case hasID && msg.Method == "":
			c.deliverResponse(msg)
		case hasID:
			go c.handleRequest(msg)
		case msg.Method != "":
			c.handleNotification(msg)
		}
	}

	c.err = c.scanner.Err()

	c.mu.Lock()
	for id, ch := range c.pending {
		ch <- jsonrpcResponse{Closed: true}
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func (c *Connection) deliverResponse(msg jsonrpcMessage) {
	var id int
	if err := json.Unmarshal(msg.ID, &id); err != nil {
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if ok {
		ch <- jsonrpcResponse{Result: msg.Result, Error: msg.Error}
	}
}

func (c *Connection) handleRequest(msg jsonrpcMessage) {
	resp := jsonrpcMessage{JSONRPC: "2.0", ID: msg.ID}

	if c.handler == nil {
		resp.Error = &jsonrpcError{Code: int(ErrMethodNotFound), Message: "no handler"}
		_ = c.writeMessage(resp)
		return
	}

	result, err := c.handler(c.ctx, msg.Method, msg.Params)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			resp.Error = &jsonrpcError{Code: rpcErr.Code, Message: rpcErr.Message, Data: rpcErr.Data}
		} else {
			resp.Error = &jsonrpcError{Code: int(ErrInternalError), Message: err.Error()}
		}
	} else {
		data, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			resp.Error = &jsonrpcError{Code: int(ErrInternalError), Message: marshalErr.Error()}
		} else {
			resp.Result = data
		}
	}

	_ = c.writeMessage(resp)
}

func (c *Connection) handleNotification(msg jsonrpcMessage) {
	if c.handler == nil {
		return
	}
	_, _ = c.handler(c.ctx, msg.Method, msg.Params)
}

func (c *Connection) writeMessage(msg jsonrpcMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("protocol: marshal message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	data = append(data, '\n')
	if _, err := c.writer.Write(data); err != nil {
		return fmt.Errorf("protocol: write: %w", err)
	}
	return nil
}

// Request sends a JSON-RPC request and blocks until a response is received or the context is cancelled.
func (c *Connection) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	select {
	case <-c.done:
		return nil, ErrConnectionClosed
	default:
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan jsonrpcResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	rawParams, err := marshalParams(params)
	if err != nil {
		c.forget(id)
		return nil, err
	}

	rawID, _ := json.Marshal(id)
	msg := jsonrpcMessage{
		JSONRPC: "2.0",
		ID:      rawID,
		Method:  method,
		Params:  rawParams,
	}

	if err := c.writeMessage(msg); err != nil {
		c.forget(id)
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp.unwrap()
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	case <-c.done:
		// the read loop may have answered just before closing
		select {
		case resp := <-ch:
			return resp.unwrap()
		default:
		}
		return nil, ErrConnectionClosed
	}
}

func (r jsonrpcResponse) unwrap() (json.RawMessage, error) {
	if r.Closed {
		return nil, ErrConnectionClosed
	}
	if r.Error != nil {
		return nil, &RPCError{Code: r.Error.Code, Message: r.Error.Message, Data: r.Error.Data}
	}
	return r.Result, nil
}

// Notify sends a JSON-RPC notification (a request with no ID that expects no response).
func (c *Connection) Notify(_ context.Context, method string, params any) error {
	rawParams, err := marshalParams(params)
	if err != nil {
		return err
	}

	return c.writeMessage(jsonrpcMessage{
		JSONRPC: "2.0",
		Method:  method,
		Params:  rawParams,
	})
}

func (c *Connection) forget(id int) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal params: %w", err)
	}
	return raw, nil
}

// Done returns a channel that is closed when the connection's read loop terminates.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Err returns the read error that ended the connection, or nil after a
// clean EOF. It is only meaningful once Done is closed.
func (c *Connection) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Context returns the connection's context, which is cancelled when the connection closes.
func (c *Connection) Context() context.Context {
	return c.ctx
}

// Close cancels the connection's context and closes the underlying writer if it implements io.Closer.
func (c *Connection) Close() error {
	c.cancel()
	if closer, ok := c.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
