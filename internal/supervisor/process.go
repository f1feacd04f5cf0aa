package supervisor

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"unicode/utf8"
)

type execProcess struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *io.PipeReader
	stdoutW *io.PipeWriter
	stderrW *io.PipeWriter
	cb      Callbacks
	log     *slog.Logger

	stderrDone chan struct{}
	done       chan struct{}

	mu     sync.Mutex
	exited bool
}

func (p *execProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *execProcess) Stdout() io.Reader     { return p.stdout }
func (p *execProcess) Pid() int              { return p.cmd.Process.Pid }
func (p *execProcess) Done() <-chan struct{} { return p.done }

// Terminate kills the agent and unblocks anyone reading its output.
func (p *execProcess) Terminate() {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.log.Debug("kill failed", "error", err)
	}
	p.stdin.Close()
	p.stdout.CloseWithError(io.ErrClosedPipe)
}

// drainStderr forwards stderr chunks as they arrive. A rune split across
// two reads is held back until it is complete.
func (p *execProcess) drainStderr(stderr io.Reader) {
	defer close(p.stderrDone)

	buf := make([]byte, 4096)
	var pending []byte
	for {
		n, err := stderr.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			cut := completeRunes(pending)
			p.emitStderr(pending[:cut])
			pending = append(pending[:0], pending[cut:]...)
		}
		if err != nil {
			p.emitStderr(pending)
			if !errors.Is(err, io.EOF) {
				p.log.Debug("error reading stderr", "error", err)
			}
			return
		}
	}
}

func (p *execProcess) emitStderr(b []byte) {
	if len(b) > 0 && p.cb.OnStderr != nil {
		p.cb.OnStderr(string(b))
	}
}

// completeRunes returns the length of the longest prefix of b that does not
// end inside a multi-byte UTF-8 sequence.
func completeRunes(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}

// monitorExit is the sole caller of cmd.Wait. Both output streams are
// copied by Wait, so WaitDelay bounds them even when a grandchild keeps the
// pipes open.
func (p *execProcess) monitorExit() {
	defer close(p.done)

	err := p.cmd.Wait()
	p.stderrW.Close()
	<-p.stderrDone
	p.stdoutW.Close()

	p.mu.Lock()
	p.exited = true
	p.mu.Unlock()

	var exitErr *exec.ExitError
	switch {
	case err == nil, errors.Is(err, exec.ErrWaitDelay):
		state := p.cmd.ProcessState
		p.log.Info("agent exited", "code", state.ExitCode())
		if p.cb.OnExit != nil {
			p.cb.OnExit(Exit{Code: state.ExitCode(), Description: state.String()})
		}
	case errors.As(err, &exitErr):
		p.log.Info("agent exited", "code", exitErr.ExitCode(), "state", exitErr.String())
		if p.cb.OnExit != nil {
			p.cb.OnExit(Exit{Code: exitErr.ExitCode(), Description: exitErr.String()})
		}
	default:
		p.log.Error("agent wait failed", "error", err)
		if p.cb.OnError != nil {
			p.cb.OnError(err)
		}
	}
}
