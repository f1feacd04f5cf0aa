// Package supervisor spawns agent subprocesses and owns their stdio streams.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"time"
)

// DefaultWaitDelay bounds how long Wait keeps stdio copies alive after the
// agent exits, for agents whose children inherit the pipes.
const DefaultWaitDelay = 2 * time.Second

// Spec describes the agent process to launch.
type Spec struct {
	Command string
	Args    []string
	// Env entries override the inherited environment.
	Env map[string]string
	Dir string
}

// Exit describes how a process ended. Code is -1 when the process was
// terminated by a signal; Description carries the host's wording.
type Exit struct {
	Code        int
	Description string
}

// Callbacks receive asynchronous process events. OnStderr is called from the
// stderr drain goroutine with raw chunks. Exactly one of OnExit or OnError is
// called once the process is gone.
type Callbacks struct {
	OnStderr func(chunk string)
	OnExit   func(Exit)
	OnError  func(error)
}

// Process is a running agent.
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Pid() int
	// Done is closed after the exit or error callback returned.
	Done() <-chan struct{}
	// Terminate kills the process. It is a no-op once the process is gone.
	Terminate()
}

// Launcher starts agent processes. Tests substitute in-memory agents.
type Launcher interface {
	Launch(ctx context.Context, spec Spec, cb Callbacks) (Process, error)
}

// Resolve reports whether command can be found on the host.
func Resolve(command string) (string, error) {
	if command == "" {
		return "", errors.New("supervisor: empty command")
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("supervisor: resolve %s: %w", command, err)
	}
	return path, nil
}

// Exec launches agents as host processes.
type Exec struct {
	Log       *slog.Logger
	WaitDelay time.Duration
}

// NewExec returns a Launcher backed by os/exec.
func NewExec(log *slog.Logger) *Exec {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Exec{Log: log.With("component", "supervisor"), WaitDelay: DefaultWaitDelay}
}

// Launch starts the process described by spec. The context only bounds the
// start itself; use Terminate to stop the process.
func (e *Exec) Launch(ctx context.Context, spec Spec, cb Callbacks) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name, args := commandLine(spec.Command, spec.Args)
	cmd := exec.Command(name, args...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(os.Environ(), spec.Env)
	cmd.WaitDelay = e.WaitDelay

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("supervisor: stdin pipe: %w", err)
	}

	// Both output streams go through io.Pipe so that Wait returns only after
	// every byte the agent wrote has been handed to the readers.
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	start := time.Now()
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutW.Close()
		stderrW.Close()
		e.Log.Error("failed to start agent", "command", spec.Command, "error", err)
		return nil, fmt.Errorf("supervisor: start %s: %w", spec.Command, err)
	}

	p := &execProcess{
		cmd:        cmd,
		stdin:      stdin,
		stdout:     stdoutR,
		stdoutW:    stdoutW,
		stderrW:    stderrW,
		cb:         cb,
		log:        e.Log.With("pid", cmd.Process.Pid),
		stderrDone: make(chan struct{}),
		done:       make(chan struct{}),
	}

	p.log.Info("agent started", "command", spec.Command, "elapsed", time.Since(start))

	go p.drainStderr(stderrR)
	go p.monitorExit()

	return p, nil
}

func commandLine(command string, args []string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd.exe", append([]string{"/c", command}, args...)
	}
	return command, args
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(keys))
	env = append(env, base...)
	for _, k := range keys {
		// later entries win in os/exec
		env = append(env, k+"="+overrides[k])
	}
	return env
}
