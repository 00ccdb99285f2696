package asciicast

import (
	"fmt"
	"io"
	"sync"
)

// Writer serializes a header and events to an underlying sink. Each call
// produces exactly one line with a single Write, under a mutex, so events from
// concurrent callers never share a line.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes h as one line. A nil Env is written as an empty object.
func (w *Writer) WriteHeader(h Header) error {
	if h.Version == 0 {
		h.Version = Version
	}
	if h.Env == nil {
		h.Env = map[string]string{}
	}
	line, err := encodeLine(h)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	return w.writeLine(line)
}

// WriteEvent writes e as one line.
func (w *Writer) WriteEvent(e Event) error {
	line, err := encodeLine(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return w.writeLine(line)
}

func (w *Writer) writeLine(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.w.Write(line)
	if err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	if n < len(line) {
		return fmt.Errorf("write line: %w", io.ErrShortWrite)
	}
	return nil
}
