//go:build windows

package pty

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Process is a child started inside a PseudoTerminal. It exclusively owns the
// process and thread handles.
type Process struct {
	process windows.Handle
	thread  windows.Handle
	pid     int

	closeOnce sync.Once
	closeErr  error
}

// Start creates command bound to t's pseudo-console with workDir as its
// current directory. The attribute list carrying the pseudo-console binding
// lives until CreateProcess has returned and is released exactly once.
func Start(command, workDir string, t *PseudoTerminal) (*Process, error) {
	if command == "" {
		return nil, ErrEmptyCommand
	}
	hpc, err := t.handle()
	if err != nil {
		return nil, err
	}

	// NewProcThreadAttributeList performs the sizing call, allocates the
	// buffer and initializes it for exactly one attribute.
	attrs, err := windows.NewProcThreadAttributeList(1)
	if err != nil {
		return nil, fmt.Errorf("init attribute list: %w", err)
	}
	defer attrs.Delete()

	// The HPCON value itself is the attribute payload, not a pointer to it.
	if err := attrs.Update(windows.PROC_THREAD_ATTRIBUTE_PSEUDOCONSOLE, unsafe.Pointer(hpc), unsafe.Sizeof(hpc)); err != nil {
		return nil, fmt.Errorf("bind pseudo console attribute: %w", err)
	}

	cmdLine, err := windows.UTF16PtrFromString(command)
	if err != nil {
		return nil, fmt.Errorf("encode command line: %w", err)
	}
	var dir *uint16
	if workDir != "" {
		if dir, err = windows.UTF16PtrFromString(workDir); err != nil {
			return nil, fmt.Errorf("encode working directory: %w", err)
		}
	}

	si := &windows.StartupInfoEx{ProcThreadAttributeList: attrs.List()}
	si.Cb = uint32(unsafe.Sizeof(*si))

	var pi windows.ProcessInformation
	flags := uint32(windows.EXTENDED_STARTUPINFO_PRESENT | windows.CREATE_UNICODE_ENVIRONMENT)
	if err := windows.CreateProcess(nil, cmdLine, nil, nil, false, flags, nil, dir, &si.StartupInfo, &pi); err != nil {
		return nil, fmt.Errorf("create process %q: %w", command, err)
	}

	return &Process{process: pi.Process, thread: pi.Thread, pid: int(pi.ProcessId)}, nil
}

// Pid returns the child's process id.
func (p *Process) Pid() int { return p.pid }

// Wait blocks until the child exits and returns its exit code.
func (p *Process) Wait() (int, error) {
	if _, err := windows.WaitForSingleObject(p.process, windows.INFINITE); err != nil {
		return 0, fmt.Errorf("wait for process %d: %w", p.pid, err)
	}
	var code uint32
	if err := windows.GetExitCodeProcess(p.process, &code); err != nil {
		return 0, fmt.Errorf("get exit code of process %d: %w", p.pid, err)
	}
	return int(code), nil
}

// Close releases the process and thread handles.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = errors.Join(windows.CloseHandle(p.thread), windows.CloseHandle(p.process))
	})
	return p.closeErr
}
