package pty

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type failingWriter struct{ writes int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, errors.New("broken pipe")
}

func TestPumpOutputChunksAndSentinel(t *testing.T) {
	src := strings.Repeat("x", ReadChunkSize+10)
	out := make(chan []byte, 8)
	done := PumpOutput(strings.NewReader(src), out)

	var chunks [][]byte
	for chunk := range out {
		chunks = append(chunks, chunk)
	}
	<-done

	if len(chunks) != 3 {
		t.Fatalf("expected 2 data chunks and a sentinel, got %d chunks", len(chunks))
	}
	if len(chunks[0]) != ReadChunkSize || len(chunks[1]) != 10 {
		t.Errorf("unexpected chunk sizes %d, %d", len(chunks[0]), len(chunks[1]))
	}
	if len(chunks[2]) != 0 {
		t.Errorf("last chunk should be the empty sentinel, got %q", chunks[2])
	}
}

func TestPumpOutputEmptyStream(t *testing.T) {
	out := make(chan []byte, 1)
	PumpOutput(bytes.NewReader(nil), out)

	select {
	case chunk, ok := <-out:
		if !ok || len(chunk) != 0 {
			t.Fatalf("expected sentinel, got %q (open=%v)", chunk, ok)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sentinel")
	}
	if _, ok := <-out; ok {
		t.Fatal("channel should be closed after the sentinel")
	}
}

func TestPumpOutputCopiesChunks(t *testing.T) {
	r, w := io.Pipe()
	out := make(chan []byte, 4)
	PumpOutput(r, out)

	w.Write([]byte("first"))
	first := <-out
	w.Write([]byte("second"))
	second := <-out
	w.Close()

	if string(first) != "first" || string(second) != "second" {
		t.Errorf("got %q, %q", first, second)
	}
}

func TestPumpInputWritesInOrder(t *testing.T) {
	var buf bytes.Buffer
	src := make(chan []byte, 4)
	done := PumpInput(&buf, src)

	src <- []byte("ab")
	src <- []byte{}
	src <- []byte("cd")
	close(src)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("input pump did not exit")
	}
	if buf.String() != "abcd" {
		t.Errorf("expected %q, got %q", "abcd", buf.String())
	}
}

func TestPumpInputStopsOnWriteError(t *testing.T) {
	w := &failingWriter{}
	src := make(chan []byte, 2)
	done := PumpInput(w, src)

	src <- []byte("a")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("input pump did not exit after a failed write")
	}
	if w.writes != 1 {
		t.Errorf("expected one write attempt, got %d", w.writes)
	}
}
