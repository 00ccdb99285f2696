package pty

import (
	"io"
	"log/slog"
)

// PumpInput starts a goroutine that writes every chunk received from src to w.
// It exits when src is closed or a write fails. The returned channel is closed
// when the goroutine has exited.
func PumpInput(w io.Writer, src <-chan []byte) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for chunk := range src {
			if len(chunk) == 0 {
				continue
			}
			if _, err := w.Write(chunk); err != nil {
				slog.Debug("input pump stopped", "error", err)
				return
			}
		}
		slog.Debug("input pump source closed")
	}()
	return done
}

// PumpOutput starts a goroutine that reads up to ReadChunkSize bytes at a time
// from r and sends each chunk, in read order, to dst. When a read fails it
// sends one zero-length chunk as the end-of-stream sentinel and closes dst.
// PumpOutput is the only sender on dst.
func PumpOutput(r io.Reader, dst chan<- []byte) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(dst)

		buf := make([]byte, ReadChunkSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				dst <- chunk
			}
			if err != nil {
				slog.Debug("output pump stopped", "error", err)
				dst <- []byte{}
				return
			}
		}
	}()
	return done
}
