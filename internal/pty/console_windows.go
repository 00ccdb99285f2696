//go:build windows

package pty

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
	"golang.org/x/term"
)

// consoleSize returns the visible window of the real console, or DefaultSize.
func consoleSize() Size {
	out, err := os.OpenFile("CONOUT$", os.O_RDWR, 0)
	if err != nil {
		return DefaultSize()
	}
	defer out.Close()
	return sizeOrDefault(term.GetSize(int(out.Fd())))
}

// consoleModes remembers the real console's modes so teardown can put them back.
type consoleModes struct {
	in      *os.File
	inState *term.State
	out     *os.File
	outMode uint32
}

// makeConsoleRaw disables line buffering, echo and input processing on the
// console input and enables VT processing on the console output, so that the
// bytes captured are the bytes a native terminal would render.
func makeConsoleRaw() (*consoleModes, error) {
	in, err := os.OpenFile("CONIN$", os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open console input: %w", err)
	}
	inState, err := term.MakeRaw(int(in.Fd()))
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("raw console input: %w", err)
	}

	out, err := os.OpenFile("CONOUT$", os.O_RDWR, 0)
	if err != nil {
		_ = term.Restore(int(in.Fd()), inState)
		in.Close()
		return nil, fmt.Errorf("open console output: %w", err)
	}
	h := windows.Handle(out.Fd())
	var outMode uint32
	if err := windows.GetConsoleMode(h, &outMode); err != nil {
		_ = term.Restore(int(in.Fd()), inState)
		in.Close()
		out.Close()
		return nil, fmt.Errorf("get console output mode: %w", err)
	}
	raw := outMode | windows.ENABLE_PROCESSED_OUTPUT | windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING
	if err := windows.SetConsoleMode(h, raw); err != nil {
		_ = term.Restore(int(in.Fd()), inState)
		in.Close()
		out.Close()
		return nil, fmt.Errorf("set console output mode: %w", err)
	}

	return &consoleModes{in: in, inState: inState, out: out, outMode: outMode}, nil
}

func (m *consoleModes) restore() error {
	if m == nil {
		return nil
	}
	var errs []error
	if err := term.Restore(int(m.in.Fd()), m.inState); err != nil {
		errs = append(errs, err)
	}
	if err := windows.SetConsoleMode(windows.Handle(m.out.Fd()), m.outMode); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, m.in.Close(), m.out.Close())
	return errors.Join(errs...)
}
