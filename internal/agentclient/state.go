package agentclient

import (
	"log/slog"
	"sync"

	"github.com/erg0nix/acplink/internal/observer"
)

// State is the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

func (s State) String() string { return string(s) }

// stateMachine holds the current State and notifies subscribers on every
// change of value. emitMu keeps notifications in transition order while mu
// stays free for readers inside subscribers.
type stateMachine struct {
	emitMu sync.Mutex
	mu     sync.Mutex
	state  State
	subs   *observer.Registry[State]
	log    *slog.Logger
}

func newStateMachine(subs *observer.Registry[State], log *slog.Logger) *stateMachine {
	return &stateMachine{state: StateDisconnected, subs: subs, log: log}
}

func (m *stateMachine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to the given state from any state.
func (m *stateMachine) Transition(to State) {
	m.TransitionFrom(to)
}

// TransitionFrom moves to the given state if the current state is one of
// from, or unconditionally when from is empty. It reports false when the
// current state was not allowed. A transition to the current state succeeds
// without notifying anyone.
func (m *stateMachine) TransitionFrom(to State, from ...State) bool {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	prev := m.state
	if len(from) > 0 && !oneOf(prev, from) {
		m.mu.Unlock()
		return false
	}
	m.state = to
	m.mu.Unlock()

	if prev == to {
		return true
	}

	m.log.Debug("state changed", "from", prev, "to", to)
	m.subs.Emit(to)
	return true
}

func oneOf(s State, set []State) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
