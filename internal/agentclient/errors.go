package agentclient

import (
	"errors"
	"fmt"

	"github.com/erg0nix/acplink/internal/supervisor"
)

var (
	// ErrAgentUnavailable means the agent executable cannot be resolved on the host.
	ErrAgentUnavailable = errors.New("agentclient: agent unavailable")
	// ErrAlreadyActive means Connect was called while connecting or connected.
	ErrAlreadyActive = errors.New("agentclient: connection already active")
	// ErrNotConnected means the operation needs an established connection.
	ErrNotConnected = errors.New("agentclient: not connected")
	// ErrNoActiveSession means the operation needs a session.
	ErrNoActiveSession = errors.New("agentclient: no active session")
)

// SpawnError reports that the agent process could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("agentclient: spawn %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ProcessError reports that the agent process failed or went away while it
// was still needed. Exactly one of Exit and Err is set.
type ProcessError struct {
	Exit *supervisor.Exit
	Err  error
}

func (e *ProcessError) Error() string {
	if e.Exit != nil {
		return fmt.Sprintf("agentclient: agent exited (%s)", e.Exit.Description)
	}
	return fmt.Sprintf("agentclient: agent process: %v", e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }
