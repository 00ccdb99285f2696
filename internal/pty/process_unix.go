//go:build !windows

package pty

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"github.com/kballard/go-shellquote"
)

// Process is a child started inside a PseudoTerminal.
type Process struct {
	cmd *exec.Cmd
}

// Start runs command with the pty slave as its controlling terminal. The
// command line is split with shell quoting rules.
func Start(command, workDir string, t *PseudoTerminal) (*Process, error) {
	argv, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}

	tty, err := t.childEnd()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workDir
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    0,
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("create process %q: %w", command, err)
	}
	t.releaseChildEnd()

	return &Process{cmd: cmd}, nil
}

// Pid returns the child's process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Wait blocks until the child exits and returns its exit code. A non-zero
// exit is reported through the code, not as an error.
func (p *Process) Wait() (int, error) {
	err := p.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return 0, fmt.Errorf("wait for process %d: %w", p.Pid(), err)
	}
	return p.cmd.ProcessState.ExitCode(), nil
}

// Close is a no-op: Wait already released the process resources.
func (p *Process) Close() error { return nil }
