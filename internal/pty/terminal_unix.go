//go:build !windows

package pty

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	creackpty "github.com/creack/pty"
)

// DefaultShell is recorded when SHELL is unset.
const DefaultShell = "/bin/sh"

// PseudoTerminal is the development rendition of the Windows pseudo-console:
// a pty master shared by input and output, and the slave end handed to the
// child.
type PseudoTerminal struct {
	ptmx    *os.File
	tty     *os.File
	size    Size
	workDir string
	modes   *consoleModes

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewPseudoTerminal opens a pty pair sized after the real terminal and puts
// the real terminal into raw mode when stdin is one.
func NewPseudoTerminal(workDir string) (*PseudoTerminal, error) {
	dir, err := resolveWorkDir(workDir)
	if err != nil {
		return nil, err
	}

	ptmx, tty, err := creackpty.Open()
	if err != nil {
		return nil, fmt.Errorf("open pty: %w", err)
	}

	size := consoleSize()
	if err := creackpty.Setsize(ptmx, &creackpty.Winsize{Cols: uint16(size.Width), Rows: uint16(size.Height)}); err != nil {
		ptmx.Close()
		tty.Close()
		return nil, fmt.Errorf("set pty size: %w", err)
	}

	modes, err := makeConsoleRaw()
	if err != nil {
		ptmx.Close()
		tty.Close()
		return nil, fmt.Errorf("set console mode: %w", err)
	}

	return &PseudoTerminal{
		ptmx:    ptmx,
		tty:     tty,
		size:    size,
		workDir: dir,
		modes:   modes,
	}, nil
}

func (t *PseudoTerminal) Size() Size        { return t.size }
func (t *PseudoTerminal) WorkDir() string   { return t.workDir }
func (t *PseudoTerminal) Input() io.Writer  { return t.ptmx }
func (t *PseudoTerminal) Output() io.Reader { return t.ptmx }

// childEnd returns the slave side for a new child, or ErrClosed.
func (t *PseudoTerminal) childEnd() (*os.File, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	if t.tty == nil {
		return nil, errors.New("pty: terminal already attached to a process")
	}
	return t.tty, nil
}

// releaseChildEnd closes the parent's copy of the slave once the child owns it,
// so that reads on the master fail when the child exits.
func (t *PseudoTerminal) releaseChildEnd() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tty != nil {
		_ = t.tty.Close()
		t.tty = nil
	}
}

// Resize changes the pty extent.
func (t *PseudoTerminal) Resize(size Size) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if err := creackpty.Setsize(t.ptmx, &creackpty.Winsize{Cols: uint16(size.Width), Rows: uint16(size.Height)}); err != nil {
		return fmt.Errorf("resize pty: %w", err)
	}
	t.size = size
	return nil
}

// Close releases the pty and restores the real terminal.
func (t *PseudoTerminal) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		tty := t.tty
		t.tty = nil
		t.mu.Unlock()

		var errs []error
		if tty != nil {
			errs = append(errs, tty.Close())
		}
		if err := t.ptmx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pty: %w", err))
		}
		if err := t.modes.restore(); err != nil {
			errs = append(errs, fmt.Errorf("restore console mode: %w", err))
		}
		t.closeErr = errors.Join(errs...)
	})
	return t.closeErr
}
