package pty

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Session is a pseudo-terminal with at most one child process attached.
//
// The terminal is created by NewSession; Start launches the child. Close must
// only be called once the child has exited (see Wait); it releases the pipe
// handles first, then the pseudo-console, then the process handles.
type Session struct {
	term      *PseudoTerminal
	createdAt time.Time

	mu       sync.Mutex
	proc     *Process
	command  string
	exited   bool
	exitCode int
	waitErr  error
	waitDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewSession creates a pseudo-terminal rooted at workDir. An empty workDir
// means the current directory.
func NewSession(workDir string) (*Session, error) {
	term, err := NewPseudoTerminal(workDir)
	if err != nil {
		return nil, err
	}
	slog.Debug("pseudo terminal created", "width", term.Size().Width, "height", term.Size().Height, "dir", term.WorkDir())
	return &Session{
		term:      term,
		createdAt: time.Now(),
		waitDone:  make(chan struct{}),
	}, nil
}

// Size returns the extent the pseudo-terminal was created with.
func (s *Session) Size() Size { return s.term.Size() }

// WorkDir returns the child's working directory.
func (s *Session) WorkDir() string { return s.term.WorkDir() }

// Input is where bytes destined for the child's stdin are written.
func (s *Session) Input() io.Writer { return s.term.Input() }

// Output yields everything the child writes to its terminal.
func (s *Session) Output() io.Reader { return s.term.Output() }

// CreatedAt reports when the pseudo-terminal was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Start launches command attached to the pseudo-terminal. Only one process can
// be started per session.
func (s *Session) Start(command string) error {
	if strings.TrimSpace(command) == "" {
		return ErrEmptyCommand
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc != nil {
		return fmt.Errorf("pty: process %q already started", s.command)
	}

	proc, err := Start(command, s.term.WorkDir(), s.term)
	if err != nil {
		return err
	}
	s.proc = proc
	s.command = command
	slog.Info("process started", "command", command, "pid", proc.Pid())

	go s.waitExit(proc)
	return nil
}

// waitExit blocks until the child exits and records its status.
func (s *Session) waitExit(proc *Process) {
	code, err := proc.Wait()

	s.mu.Lock()
	s.exited = true
	s.exitCode = code
	s.waitErr = err
	s.mu.Unlock()

	slog.Info("process exited", "command", s.command, "exit_code", code, "error", err)
	close(s.waitDone)
}

// Wait blocks until the child exits and returns its exit code. It does not
// time out.
func (s *Session) Wait() (int, error) {
	s.mu.Lock()
	started := s.proc != nil
	s.mu.Unlock()
	if !started {
		return 0, ErrNotStarted
	}

	<-s.waitDone

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode, s.waitErr
}

// Exited reports whether the child has terminated.
func (s *Session) Exited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}

// Resize changes the pseudo-terminal extent.
func (s *Session) Resize(size Size) error {
	return s.term.Resize(size)
}

// Close tears the session down. It returns ErrProcessRunning, and releases
// nothing, if a started child has not exited yet. It is safe to call Close
// multiple times.
func (s *Session) Close() error {
	s.mu.Lock()
	running := s.proc != nil && !s.exited
	proc := s.proc
	s.mu.Unlock()
	if running {
		return ErrProcessRunning
	}

	s.closeOnce.Do(func() {
		var errs []error
		if err := s.term.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close terminal: %w", err))
		}
		if proc != nil {
			if err := proc.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close process: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
		slog.Debug("session closed", "command", s.command, "error", s.closeErr)
	})
	return s.closeErr
}
