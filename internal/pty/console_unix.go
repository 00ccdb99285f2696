//go:build !windows

package pty

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

func consoleSize() Size {
	return sizeOrDefault(term.GetSize(int(os.Stdout.Fd())))
}

type consoleModes struct {
	fd    int
	state *term.State
}

// makeConsoleRaw puts stdin into raw mode. When stdin is not a terminal
// (pipes, tests) there is nothing to change.
func makeConsoleRaw() (*consoleModes, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("raw terminal input: %w", err)
	}
	return &consoleModes{fd: fd, state: state}, nil
}

func (m *consoleModes) restore() error {
	if m == nil {
		return nil
	}
	return term.Restore(m.fd, m.state)
}
