//go:build windows

package pty

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/windows"
)

// DefaultShell is recorded when SHELL is unset.
const DefaultShell = "powershell.exe"

// PseudoTerminal owns a ConPTY handle and this process's ends of its two pipes.
type PseudoTerminal struct {
	console windows.Handle
	input   *os.File // write end of the console's stdin pipe
	output  *os.File // read end of the console's stdout pipe
	size    Size
	workDir string
	modes   *consoleModes

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// NewPseudoTerminal creates both pipes, sizes the console after the real one,
// switches the real console to raw VT mode and binds a pseudo-console to the
// pipe pair. Any failure releases what was created and is returned.
func NewPseudoTerminal(workDir string) (*PseudoTerminal, error) {
	dir, err := resolveWorkDir(workDir)
	if err != nil {
		return nil, err
	}

	var ptyIn, inWrite windows.Handle
	if err := windows.CreatePipe(&ptyIn, &inWrite, nil, 0); err != nil {
		return nil, fmt.Errorf("create input pipe: %w", err)
	}
	var outRead, ptyOut windows.Handle
	if err := windows.CreatePipe(&outRead, &ptyOut, nil, 0); err != nil {
		closeHandles(ptyIn, inWrite)
		return nil, fmt.Errorf("create output pipe: %w", err)
	}

	size := consoleSize()

	modes, err := makeConsoleRaw()
	if err != nil {
		closeHandles(ptyIn, inWrite, outRead, ptyOut)
		return nil, fmt.Errorf("set console mode: %w", err)
	}

	var console windows.Handle
	coord := windows.Coord{X: size.Width, Y: size.Height}
	if err := windows.CreatePseudoConsole(coord, ptyIn, ptyOut, 0, &console); err != nil {
		_ = modes.restore()
		closeHandles(ptyIn, inWrite, outRead, ptyOut)
		return nil, fmt.Errorf("create pseudo console: %w", err)
	}

	// The pseudo-console holds its own references to these ends.
	closeHandles(ptyIn, ptyOut)

	return &PseudoTerminal{
		console: console,
		input:   os.NewFile(uintptr(inWrite), "pty-input"),
		output:  os.NewFile(uintptr(outRead), "pty-output"),
		size:    size,
		workDir: dir,
		modes:   modes,
	}, nil
}

func (t *PseudoTerminal) Size() Size        { return t.size }
func (t *PseudoTerminal) WorkDir() string   { return t.workDir }
func (t *PseudoTerminal) Input() io.Writer  { return t.input }
func (t *PseudoTerminal) Output() io.Reader { return t.output }

// handle returns the pseudo-console handle, or ErrClosed after Close.
func (t *PseudoTerminal) handle() (windows.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrClosed
	}
	return t.console, nil
}

// Resize changes the pseudo-console extent.
func (t *PseudoTerminal) Resize(size Size) error {
	h, err := t.handle()
	if err != nil {
		return err
	}
	if err := windows.ResizePseudoConsole(h, windows.Coord{X: size.Width, Y: size.Height}); err != nil {
		return fmt.Errorf("resize pseudo console: %w", err)
	}
	t.mu.Lock()
	t.size = size
	t.mu.Unlock()
	return nil
}

// Close releases the input and output pipes, then the pseudo-console, then
// restores the real console's modes. A read blocked on the output pipe ends
// once ClosePseudoConsole breaks the pipe; closing our end alone does not
// interrupt it. The attached process must have exited already.
func (t *PseudoTerminal) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()

		var errs []error
		if err := t.input.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input pipe: %w", err))
		}
		if err := t.output.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close output pipe: %w", err))
		}
		windows.ClosePseudoConsole(t.console)
		if err := t.modes.restore(); err != nil {
			errs = append(errs, fmt.Errorf("restore console mode: %w", err))
		}
		t.closeErr = errors.Join(errs...)
	})
	return t.closeErr
}

func closeHandles(handles ...windows.Handle) {
	for _, h := range handles {
		if h != 0 && h != windows.InvalidHandle {
			_ = windows.CloseHandle(h)
		}
	}
}
