package agentclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/erg0nix/acplink/internal/protocol"
	"github.com/erg0nix/acplink/internal/supervisor"
)

// agentHandler answers client calls on the agent side. A nil result with a
// nil error falls through to the default agent behaviour.
type agentHandler func(agent *protocol.Connection, method string, params json.RawMessage) (any, error)

type fakeLauncher struct {
	mu        sync.Mutex
	handler   agentHandler
	launchErr error
	// failFirst fails only the first launch with launchErr
	failFirst bool
	launches  int
	procs     []*fakeProcess
}

func (l *fakeLauncher) Launch(ctx context.Context, _ supervisor.Spec, cb supervisor.Callbacks) (supervisor.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.launches++
	if l.launchErr != nil && (!l.failFirst || l.launches == 1) {
		return nil, l.launchErr
	}

	p := newFakeProcess(l.handler, cb)
	l.procs = append(l.procs, p)
	return p, nil
}

func (l *fakeLauncher) last() *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.procs[len(l.procs)-1]
}

// fakeProcess is an in-memory agent speaking ACP over io.Pipe pairs.
type fakeProcess struct {
	stdin   *io.PipeWriter
	stdout  *io.PipeReader
	agentIn *io.PipeReader
	// agentOut is the agent's raw stdout, shared with agent
	agentOut *io.PipeWriter
	agent    *protocol.Connection
	cb       supervisor.Callbacks
	done     chan struct{}
	once     sync.Once
}

func newFakeProcess(handler agentHandler, cb supervisor.Callbacks) *fakeProcess {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	p := &fakeProcess{stdin: inW, stdout: outR, agentIn: inR, agentOut: outW, cb: cb, done: make(chan struct{})}
	p.agent = protocol.NewConnection(func(_ context.Context, method string, params json.RawMessage) (any, error) {
		if handler != nil {
			if res, err := handler(p.agent, method, params); res != nil || err != nil {
				return res, err
			}
		}
		return defaultAgent(method)
	}, outW, inR)
	return p
}

func defaultAgent(method string) (any, error) {
	switch method {
	case protocol.MethodInitialize:
		return protocol.InitializeResponse{
			ProtocolVersion: protocol.ProtocolVersion,
			AgentInfo:       &protocol.Implementation{Name: "fake-agent", Version: "0.0.1"},
			AuthMethods:     []protocol.AuthMethod{},
		}, nil
	case protocol.MethodSessionNew:
		return protocol.NewSessionResponse{SessionID: "s1"}, nil
	case protocol.MethodSessionSetMode:
		return protocol.SetSessionModeResponse{}, nil
	case protocol.MethodSessionSetModel:
		return protocol.SetSessionModelResponse{}, nil
	case protocol.MethodSessionPrompt:
		return protocol.PromptResponse{StopReason: protocol.StopReasonEndTurn}, nil
	case protocol.MethodSessionCancel:
		return nil, nil
	}
	return nil, protocol.NewRPCError(protocol.ErrMethodNotFound, method)
}

func (p *fakeProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *fakeProcess) Stdout() io.Reader     { return p.stdout }
func (p *fakeProcess) Pid() int              { return 4242 }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Terminate() {
	p.exit(supervisor.Exit{Code: -1, Description: "signal: killed"})
}

// exit closes the agent's streams, then reports the exit like the real
// supervisor does.
func (p *fakeProcess) exit(e supervisor.Exit) {
	p.once.Do(func() {
		p.agent.Close()
		p.agentIn.Close()
		if p.cb.OnExit != nil {
			p.cb.OnExit(e)
		}
		close(p.done)
	})
}

func (p *fakeProcess) fail(err error) {
	p.once.Do(func() {
		p.agent.Close()
		p.agentIn.Close()
		if p.cb.OnError != nil {
			p.cb.OnError(err)
		}
		close(p.done)
	})
}

// writeRaw writes bytes to the client as if the agent printed them. It
// returns once the client has read them or the process has exited.
func (p *fakeProcess) writeRaw(data []byte) {
	_, _ = p.agentOut.Write(data)
}

func (p *fakeProcess) writeStderr(text string) {
	if p.cb.OnStderr != nil {
		p.cb.OnStderr(text)
	}
}

func notifyUpdate(t *testing.T, agent *protocol.Connection, sessionID protocol.SessionID, u protocol.SessionUpdate) {
	t.Helper()
	if err := agent.Notify(context.Background(), protocol.MethodSessionUpdate, protocol.SessionNotification{
		SessionID: sessionID,
		Update:    u,
	}); err != nil {
		t.Errorf("notify: %v", err)
	}
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func recordStates(c *Client) *stateRecorder {
	r := &stateRecorder{}
	c.OnStateChange(func(s State) {
		r.mu.Lock()
		r.states = append(r.states, s)
		r.mu.Unlock()
	})
	return r
}

func (r *stateRecorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *stateRecorder) waitFor(t *testing.T, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := r.snapshot(); len(s) > 0 && s[len(s)-1] == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state %s not reached, saw %v", want, r.snapshot())
}

func assertStates(t *testing.T, got []State, want ...State) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states = %v, want %v", got, want)
		}
	}
}

func newFakeClient(t *testing.T, handler agentHandler) (*Client, *fakeLauncher) {
	t.Helper()

	launcher := &fakeLauncher{handler: handler}
	c := New(Options{
		Command:    "fake-agent",
		Dir:        t.TempDir(),
		ClientInfo: protocol.Implementation{Name: "acplink", Version: "test"},
		Launcher:   launcher,
		Resolve:    func(cmd string) (string, error) { return "/usr/bin/" + cmd, nil },
	})
	t.Cleanup(c.Dispose)
	return c, launcher
}

func connectWithSession(t *testing.T, c *Client) {
	t.Helper()
	if _, err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := c.NewSession(context.Background(), ""); err != nil {
		t.Fatalf("new session: %v", err)
	}
}

var errBoom = errors.New("boom")
