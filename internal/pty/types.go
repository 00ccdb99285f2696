package pty

import (
	"errors"
	"fmt"
	"os"
)

// ReadChunkSize bounds a single read from the pseudo-terminal output pipe.
const ReadChunkSize = 1024

// Fallback console extent used when the real console cannot be queried.
const (
	DefaultWidth  int16 = 140
	DefaultHeight int16 = 80
)

var (
	// ErrClosed is returned when a pseudo-terminal has already been torn down.
	ErrClosed = errors.New("pty: terminal is closed")
	// ErrProcessRunning is returned by Session.Close while the child is alive.
	ErrProcessRunning = errors.New("pty: process has not exited")
	// ErrNotStarted is returned by Session.Wait before a process was launched.
	ErrNotStarted = errors.New("pty: process not started")
	// ErrEmptyCommand is returned when no command line is given.
	ErrEmptyCommand = errors.New("pty: command must not be empty")
)

// Size is a console extent in character cells.
type Size struct {
	Width  int16
	Height int16
}

// DefaultSize is the extent used when the console size is unavailable.
func DefaultSize() Size {
	return Size{Width: DefaultWidth, Height: DefaultHeight}
}

// sizeOrDefault validates a queried extent and falls back to DefaultSize.
func sizeOrDefault(width, height int, err error) Size {
	if err != nil || width <= 0 || height <= 0 || width > 0x7fff || height > 0x7fff {
		return DefaultSize()
	}
	return Size{Width: int16(width), Height: int16(height)}
}

// resolveWorkDir returns dir, or the current directory when dir is empty.
func resolveWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return wd, nil
}
