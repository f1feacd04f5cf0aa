// Package logging builds the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Options struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string
	// File receives the log when set; otherwise logs go to Output.
	File string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// Sink owns the logger, its level and the log file, if any.
type Sink struct {
	logger *slog.Logger
	level  *slog.LevelVar

	mu   sync.Mutex
	file *os.File
}

func New(opts Options) (*Sink, error) {
	level := new(slog.LevelVar)
	if err := setLevel(level, opts.Level); err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	s := &Sink{level: level}

	if opts.File != "" {
		dir := filepath.Dir(opts.File)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logging: create log directory %s: %w", dir, err)
		}

		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file %s: %w", opts.File, err)
		}
		s.file = f
		out = f
	}

	s.logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	return s, nil
}

func (s *Sink) Logger() *slog.Logger {
	return s.logger
}

// SetLevel changes the minimum level of every logger derived from this sink.
func (s *Sink) SetLevel(name string) error {
	return setLevel(s.level, name)
}

func (s *Sink) Level() slog.Level {
	return s.level.Level()
}

// Close flushes and closes the log file. It is safe to call more than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	s.file = nil

	if closeErr != nil {
		return closeErr
	}
	return syncErr
}

func setLevel(v *slog.LevelVar, name string) error {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		v.Set(slog.LevelInfo)
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn", "warning":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		return fmt.Errorf("logging: unknown level %q", name)
	}
	return nil
}
