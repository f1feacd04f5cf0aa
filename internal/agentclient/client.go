// Package agentclient connects to an ACP agent process, holds its single
// session and republishes what the agent streams back.
package agentclient

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/erg0nix/acplink/internal/diagnostic"
	"github.com/erg0nix/acplink/internal/observer"
	"github.com/erg0nix/acplink/internal/permission"
	"github.com/erg0nix/acplink/internal/protocol"
	"github.com/erg0nix/acplink/internal/supervisor"
)

// streamExitGrace is how long a closed output stream waits for the process
// exit that usually explains it.
const streamExitGrace = 500 * time.Millisecond

// Options configure a Client.
type Options struct {
	Command string
	Args    []string
	Env     map[string]string
	Dir     string

	// SkipAvailabilityCheck disables resolving Command before spawning it.
	SkipAvailabilityCheck bool
	// HandshakeTimeout bounds the initialize round trip. Zero waits until
	// the agent answers, exits or the caller's context ends.
	HandshakeTimeout time.Duration

	ClientInfo protocol.Implementation

	// Launcher defaults to supervisor.NewExec.
	Launcher supervisor.Launcher
	// Resolve defaults to supervisor.Resolve.
	Resolve func(command string) (string, error)

	Log *slog.Logger
}

// Client is a connection to one agent process. All methods are safe for
// concurrent use.
//
// Subscribers are called synchronously. A state subscriber must not call
// Connect or Dispose itself; hand the work to another goroutine.
type Client struct {
	opts       Options
	log        *slog.Logger
	launcher   supervisor.Launcher
	resolve    func(string) (string, error)
	classifier *diagnostic.Classifier
	resolver   *permission.Resolver

	stateSubs *observer.Registry[State]
	updates   *observer.Registry[protocol.SessionNotification]
	events    *observer.Registry[Event]
	stderr    *observer.Registry[string]
	errs      *observer.Registry[diagnostic.Signal]
	state     *stateMachine

	// sessionMu serializes NewSession, SetMode and SetModel.
	sessionMu sync.Mutex

	mu              sync.Mutex
	gen             int
	exitedGen       int
	proc            supervisor.Process
	conn            *protocol.Client
	agent           *protocol.InitializeResponse
	session         *Session
	meta            *SessionMetadata
	pendingCommands []protocol.AvailableCommand
	accumulator     strings.Builder
}

// New returns a disconnected Client.
func New(opts Options) *Client {
	log := opts.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("component", "agentclient")

	c := &Client{
		opts:       opts,
		log:        log,
		launcher:   opts.Launcher,
		resolve:    opts.Resolve,
		classifier: diagnostic.NewClassifier(),
		resolver:   permission.NewResolver(opts.Log),
		stateSubs:  observer.NewRegistry[State]("state", log),
		updates:    observer.NewRegistry[protocol.SessionNotification]("session_update", log),
		events:     observer.NewRegistry[Event]("event", log),
		stderr:     observer.NewRegistry[string]("diagnostic_text", log),
		errs:       observer.NewRegistry[diagnostic.Signal]("agent_error", log),
	}
	if c.launcher == nil {
		c.launcher = supervisor.NewExec(opts.Log)
	}
	if c.resolve == nil {
		c.resolve = supervisor.Resolve
	}
	c.state = newStateMachine(c.stateSubs, log)
	return c
}

// Connect spawns the agent and performs the initialize handshake.
func (c *Client) Connect(ctx context.Context) (protocol.InitializeResponse, error) {
	if s := c.state.Current(); s == StateConnecting || s == StateConnected {
		return protocol.InitializeResponse{}, ErrAlreadyActive
	}

	if !c.opts.SkipAvailabilityCheck {
		if _, err := c.resolve(c.opts.Command); err != nil {
			c.log.Warn("agent not found", "command", c.opts.Command, "error", err)
			return protocol.InitializeResponse{}, fmt.Errorf("%w: %v", ErrAgentUnavailable, err)
		}
	}

	if !c.state.TransitionFrom(StateConnecting, StateDisconnected, StateError) {
		return protocol.InitializeResponse{}, ErrAlreadyActive
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	stale := c.proc
	c.proc, c.conn, c.agent = nil, nil, nil
	c.session, c.meta, c.pendingCommands = nil, nil, nil
	c.mu.Unlock()

	// left behind by a failed attempt
	if stale != nil {
		stale.Terminate()
	}

	exited := make(chan error, 1)
	cb := supervisor.Callbacks{
		OnStderr: c.onStderr,
		OnExit: func(e supervisor.Exit) {
			exited <- &ProcessError{Exit: &e}
			c.onExit(gen, e)
		},
		OnError: func(err error) {
			exited <- &ProcessError{Err: err}
			c.onProcessError(gen, err)
		},
	}

	c.log.Info("connecting", "command", c.opts.Command, "args", c.opts.Args)

	proc, err := c.launcher.Launch(ctx, supervisor.Spec{
		Command: c.opts.Command,
		Args:    c.opts.Args,
		Env:     c.opts.Env,
		Dir:     c.opts.Dir,
	}, cb)
	if err != nil {
		c.log.Error("failed to spawn agent", "command", c.opts.Command, "error", err)
		c.state.TransitionFrom(StateError, StateConnecting)
		return protocol.InitializeResponse{}, &SpawnError{Command: c.opts.Command, Err: err}
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		proc.Terminate()
		return protocol.InitializeResponse{}, fmt.Errorf("agentclient: connect interrupted: %w", ErrNotConnected)
	}
	c.proc = proc
	c.mu.Unlock()

	conn := protocol.NewClient(proc.Stdin(), proc.Stdout(), protocol.ClientCallbacks{
		OnUpdate:     c.dispatch,
		OnPermission: c.resolver.Resolve,
	}, c.log)

	resp, err := c.handshake(ctx, conn, exited)
	if err != nil {
		c.log.Error("handshake failed", "error", err)
		conn.Close()
		proc.Terminate()
		c.state.TransitionFrom(StateError, StateConnecting)
		return protocol.InitializeResponse{}, err
	}

	c.mu.Lock()
	if c.gen != gen || c.exitedGen == gen {
		c.mu.Unlock()
		conn.Close()
		proc.Terminate()
		c.state.TransitionFrom(StateError, StateConnecting)
		return protocol.InitializeResponse{}, fmt.Errorf("agentclient: agent went away during connect: %w", ErrNotConnected)
	}
	c.conn = conn
	c.agent = &resp
	c.mu.Unlock()

	if !c.state.TransitionFrom(StateConnected, StateConnecting) {
		return protocol.InitializeResponse{}, fmt.Errorf("agentclient: connect interrupted: %w", ErrNotConnected)
	}
	go c.watchStream(gen, conn, proc)

	name := ""
	if resp.AgentInfo != nil {
		name = resp.AgentInfo.Name
	}
	c.log.Info("connected", "agent", name, "protocol_version", resp.ProtocolVersion, "pid", proc.Pid())
	return resp, nil
}

// handshake races initialize against the process going away, so an agent
// that dies on startup fails the connect instead of hanging it.
func (c *Client) handshake(ctx context.Context, conn *protocol.Client, exited <-chan error) (protocol.InitializeResponse, error) {
	if c.opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.HandshakeTimeout)
		defer cancel()
	}

	info := c.opts.ClientInfo
	req := protocol.InitializeRequest{
		ProtocolVersion:    protocol.ProtocolVersion,
		ClientCapabilities: protocol.ClientCapabilities{},
		ClientInfo:         &info,
	}

	type result struct {
		resp protocol.InitializeResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := conn.Initialize(ctx, req)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case err := <-exited:
		// stdout is fully drained once the process is gone, so the
		// request settles too and a response written just before exiting
		// still counts
		r := <-done
		if r.err == nil {
			return r.resp, nil
		}
		return protocol.InitializeResponse{}, err
	}
}

func (c *Client) onStderr(chunk string) {
	c.log.Warn("agent stderr", "text", strings.TrimRight(chunk, "\n"))
	c.stderr.Emit(chunk)

	if sig, ok := c.classifier.Observe(chunk); ok {
		c.log.Error("agent reported an error",
			"error_type", sig.ErrorType,
			"classification", sig.Message,
			"heuristic_version", diagnostic.HeuristicVersion,
		)
		c.errs.Emit(sig)
	}
}

// onExit drops the process and session once a connected agent exits.
// Exits during connect are reported by the handshake instead.
func (c *Client) onExit(gen int, e supervisor.Exit) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.exitedGen = gen
	if c.conn == nil {
		c.mu.Unlock()
		return
	}
	conn := c.clearLocked()
	c.mu.Unlock()

	conn.Close()
	c.log.Info("agent exited", "code", e.Code, "state", e.Description)
	c.state.TransitionFrom(StateDisconnected, StateConnected, StateConnecting)
}

func (c *Client) onProcessError(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.exitedGen = gen
	if c.conn == nil {
		c.mu.Unlock()
		return
	}
	proc := c.proc
	conn := c.clearLocked()
	// an errored connection keeps its (dead) process handle
	c.proc = proc
	c.mu.Unlock()

	conn.Close()
	c.log.Error("agent process failed", "error", err)
	c.state.Transition(StateError)
}

// watchStream fails the connection when the agent's output stream ends
// while the process is still running, e.g. after an oversized message.
// A stream that ends because the process exited is left to onExit.
func (c *Client) watchStream(gen int, conn *protocol.Client, proc supervisor.Process) {
	<-conn.Done()

	select {
	case <-proc.Done():
		return
	case <-time.After(streamExitGrace):
	}

	c.mu.Lock()
	if gen != c.gen || c.conn != conn || c.exitedGen == gen {
		c.mu.Unlock()
		return
	}
	c.clearLocked()
	c.mu.Unlock()

	c.log.Error("agent output stream failed", "error", conn.Err())
	conn.Close()
	proc.Terminate()
	c.state.TransitionFrom(StateError, StateConnected)
}

// clearLocked forgets the process, connection and session and returns the
// connection for closing outside the lock.
func (c *Client) clearLocked() *protocol.Client {
	conn := c.conn
	c.proc, c.conn, c.agent = nil, nil, nil
	c.session, c.meta, c.pendingCommands = nil, nil, nil
	c.accumulator.Reset()
	return conn
}

// NewSession asks the agent for a new session rooted at cwd. An empty cwd
// means the configured working directory, or the process's own.
func (c *Client) NewSession(ctx context.Context, cwd string) (SessionInfo, error) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	conn, err := c.connected()
	if err != nil {
		return SessionInfo{}, err
	}

	if cwd == "" {
		cwd = c.opts.Dir
	}
	if cwd == "" {
		if cwd, err = os.Getwd(); err != nil {
			return SessionInfo{}, fmt.Errorf("agentclient: working directory: %w", err)
		}
	}

	resp, err := conn.NewSession(ctx, protocol.NewSessionRequest{Cwd: cwd, McpServers: []protocol.McpServer{}})
	if err != nil {
		c.log.Error("new session failed", "cwd", cwd, "error", err)
		return SessionInfo{}, err
	}

	meta := &SessionMetadata{Modes: cloneModes(resp.Modes), Models: cloneModels(resp.Models)}

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return SessionInfo{}, ErrNotConnected
	}
	if c.pendingCommands != nil {
		meta.Commands = c.pendingCommands
		c.pendingCommands = nil
	}
	c.session = &Session{ID: resp.SessionID, Cwd: cwd}
	c.meta = meta
	c.mu.Unlock()

	c.log.Info("session created", "session_id", resp.SessionID, "cwd", cwd)
	return SessionInfo{SessionID: resp.SessionID, Modes: cloneModes(resp.Modes), Models: cloneModels(resp.Models)}, nil
}

// SetMode switches the session mode and updates the cached current mode.
func (c *Client) SetMode(ctx context.Context, modeID string) error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	conn, sess, err := c.activeSession()
	if err != nil {
		return err
	}

	if err := conn.SetSessionMode(ctx, protocol.SetSessionModeRequest{SessionID: sess.ID, ModeID: modeID}); err != nil {
		c.log.Error("set mode failed", "session_id", sess.ID, "mode", modeID, "error", err)
		return err
	}

	c.mu.Lock()
	if c.meta != nil && c.session != nil && c.session.ID == sess.ID {
		if c.meta.Modes == nil {
			c.meta.Modes = &protocol.SessionModeState{}
		}
		c.meta.Modes.CurrentModeID = modeID
	}
	c.mu.Unlock()

	c.log.Info("mode set", "session_id", sess.ID, "mode", modeID)
	return nil
}

// SetModel switches the session model and updates the cached current model.
func (c *Client) SetModel(ctx context.Context, modelID string) error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	conn, sess, err := c.activeSession()
	if err != nil {
		return err
	}

	if err := conn.SetSessionModel(ctx, protocol.SetSessionModelRequest{SessionID: sess.ID, ModelID: modelID}); err != nil {
		c.log.Error("set model failed", "session_id", sess.ID, "model", modelID, "error", err)
		return err
	}

	c.mu.Lock()
	if c.meta != nil && c.session != nil && c.session.ID == sess.ID {
		if c.meta.Models == nil {
			c.meta.Models = &protocol.SessionModelState{}
		}
		c.meta.Models.CurrentModelID = modelID
	}
	c.mu.Unlock()

	c.log.Info("model set", "session_id", sess.ID, "model", modelID)
	return nil
}

// SendMessage submits text as one prompt turn and waits for the agent to
// finish it. Streamed text is published as EvtTextDelta events meanwhile.
func (c *Client) SendMessage(ctx context.Context, text string) (PromptResult, error) {
	conn, sess, err := c.activeSession()
	if err != nil {
		return PromptResult{}, err
	}

	c.resetAccumulator()
	c.classifier.Reset()
	defer c.resetAccumulator()

	resp, err := conn.Prompt(ctx, protocol.PromptRequest{
		SessionID: sess.ID,
		Prompt:    []protocol.ContentBlock{protocol.TextBlock(text)},
	})
	if err != nil {
		c.log.Error("prompt failed", "session_id", sess.ID, "error", err)
		return PromptResult{}, err
	}

	c.mu.Lock()
	streamed := c.accumulator.String()
	c.mu.Unlock()

	c.log.Debug("prompt finished", "session_id", sess.ID, "stop_reason", resp.StopReason)
	return PromptResult{StopReason: resp.StopReason, Text: streamed}, nil
}

// Cancel asks the agent to stop the current turn. Without a session it does
// nothing.
func (c *Client) Cancel(ctx context.Context) error {
	conn, sess, err := c.activeSession()
	if err != nil {
		return nil
	}

	c.log.Info("cancelling turn", "session_id", sess.ID)
	return conn.Cancel(ctx, sess.ID)
}

// Dispose stops the agent and forgets the session. It can be called at any
// time, any number of times, and leaves the Client ready to Connect again.
func (c *Client) Dispose() {
	c.mu.Lock()
	c.gen++
	proc := c.proc
	conn := c.clearLocked()
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if proc != nil {
		proc.Terminate()
	}
	c.state.Transition(StateDisconnected)
}

func (c *Client) resetAccumulator() {
	c.mu.Lock()
	c.accumulator.Reset()
	c.mu.Unlock()
}

func (c *Client) connected() (*protocol.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.state.Current() != StateConnected {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

func (c *Client) activeSession() (*protocol.Client, Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.state.Current() != StateConnected {
		return nil, Session{}, ErrNotConnected
	}
	if c.session == nil {
		return nil, Session{}, ErrNoActiveSession
	}
	return c.conn, *c.session, nil
}

// State returns the current connection state.
func (c *Client) State() State { return c.state.Current() }

// IsConnected reports whether the handshake has completed and the agent is running.
func (c *Client) IsConnected() bool { return c.state.Current() == StateConnected }

// Session returns the active session, if any.
func (c *Client) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// SessionMetadata returns a copy of the cached session metadata, or nil
// without a session.
func (c *Client) SessionMetadata() *SessionMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meta.Clone()
}

// AgentInfo returns the agent's initialize response while connected.
func (c *Client) AgentInfo() (protocol.InitializeResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.agent == nil {
		return protocol.InitializeResponse{}, false
	}
	return *c.agent, true
}

// OnStateChange registers fn for every change of connection state.
func (c *Client) OnStateChange(fn func(State)) observer.Token {
	return c.stateSubs.Add(fn)
}

// OnSessionUpdate registers fn for every session/update notification, as received.
func (c *Client) OnSessionUpdate(fn func(protocol.SessionNotification)) observer.Token {
	return c.updates.Add(fn)
}

// OnEvent registers fn for typed session events.
func (c *Client) OnEvent(fn func(Event)) observer.Token {
	return c.events.Add(fn)
}

// OnDiagnosticText registers fn for raw stderr chunks from the agent.
func (c *Client) OnDiagnosticText(fn func(string)) observer.Token {
	return c.stderr.Add(fn)
}

// OnAgentError registers fn for errors recognised in the agent's stderr.
func (c *Client) OnAgentError(fn func(diagnostic.Signal)) observer.Token {
	return c.errs.Add(fn)
}

// Unsubscribe removes a registration made by any of the On* methods.
// Unknown and already removed tokens are ignored.
func (c *Client) Unsubscribe(token observer.Token) {
	removers := []func(observer.Token) bool{
		c.stateSubs.Remove,
		c.updates.Remove,
		c.events.Remove,
		c.stderr.Remove,
		c.errs.Remove,
	}
	for _, remove := range removers {
		if remove(token) {
			return
		}
	}
}
