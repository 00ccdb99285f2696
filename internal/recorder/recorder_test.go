package recorder

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/powersession/internal/asciicast"
	"github.com/user/powersession/internal/pty"
)

// fakeConsole runs script in place of a child process. The script's output
// stream ends when it returns, like a pty whose only writer exited.
type fakeConsole struct {
	size     pty.Size
	script   func(in io.Reader, out io.Writer)
	exitCode int

	inR, outR *io.PipeReader
	inW, outW *io.PipeWriter
	done      chan struct{}

	mu      sync.Mutex
	command string
	closed  int
}

func newFakeConsole(script func(in io.Reader, out io.Writer)) *fakeConsole {
	c := &fakeConsole{
		size:   pty.Size{Width: 100, Height: 30},
		script: script,
		done:   make(chan struct{}),
	}
	c.inR, c.inW = io.Pipe()
	c.outR, c.outW = io.Pipe()
	return c
}

func (c *fakeConsole) Size() pty.Size    { return c.size }
func (c *fakeConsole) Input() io.Writer  { return c.inW }
func (c *fakeConsole) Output() io.Reader { return c.outR }

func (c *fakeConsole) Start(command string) error {
	c.mu.Lock()
	c.command = command
	c.mu.Unlock()
	go func() {
		c.script(c.inR, c.outW)
		c.outW.Close()
		close(c.done)
	}()
	return nil
}

func (c *fakeConsole) Wait() (int, error) {
	<-c.done
	return c.exitCode, nil
}

func (c *fakeConsole) Close() error {
	c.mu.Lock()
	c.closed++
	c.mu.Unlock()
	c.inR.Close()
	c.outR.Close()
	return nil
}

func writeChunks(chunks ...string) func(io.Reader, io.Writer) {
	return func(_ io.Reader, out io.Writer) {
		for _, c := range chunks {
			out.Write([]byte(c))
		}
	}
}

// fakeClock advances by step on every call.
func fakeClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := time.Unix(1700000000, 0)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := now
		now = now.Add(step)
		return t
	}
}

func testOptions(t *testing.T, path string) Options {
	t.Helper()
	return Options{
		Path:    path,
		Command: "fake-shell",
		Stdin:   strings.NewReader(""),
		Stdout:  &bytes.Buffer{},
		Getenv: func(key string) string {
			return map[string]string{"SHELL": "pwsh.exe", "TERM": "xterm-256color"}[key]
		},
		Now:          fakeClock(100 * time.Millisecond),
		DrainTimeout: 50 * time.Millisecond,
	}
}

func readRecording(t *testing.T, path string) (asciicast.Header, []asciicast.Event) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open(%s) error = %v", path, err)
	}
	defer f.Close()

	r, err := asciicast.NewReader(f)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	var events []asciicast.Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		events = append(events, ev)
	}
	return r.Header(), events
}

func TestRunRecordsHeaderAndEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.cast")
	opts := testOptions(t, path)
	opts.Env = map[string]string{"LANG": "en_US.UTF-8"}
	stdout := opts.Stdout.(*bytes.Buffer)

	rec, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if rec.State() != StateCreated {
		t.Fatalf("state = %s, want created", rec.State())
	}

	console := newFakeConsole(writeChunks("hello ", "world\r\n"))
	console.exitCode = 7
	res, err := rec.Run(console)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rec.State() != StateFinished {
		t.Errorf("state = %s, want finished", rec.State())
	}
	if res.ExitCode != 7 {
		t.Errorf("ExitCode = %d, want 7", res.ExitCode)
	}
	if res.Events != 2 {
		t.Errorf("Events = %d, want 2", res.Events)
	}
	if console.command != "fake-shell" {
		t.Errorf("started command = %q", console.command)
	}
	if console.closed == 0 {
		t.Error("console was not closed")
	}

	header, events := readRecording(t, path)
	if header.Version != 2 || header.Width != 100 || header.Height != 30 {
		t.Errorf("unexpected header %+v", header)
	}
	if header.Timestamp != 1700000000 {
		t.Errorf("header timestamp = %d", header.Timestamp)
	}
	wantEnv := map[string]string{"LANG": "en_US.UTF-8", "SHELL": "pwsh.exe", "TERM": "xterm-256color"}
	if len(header.Env) != len(wantEnv) {
		t.Errorf("header env = %v, want %v", header.Env, wantEnv)
	}
	for k, v := range wantEnv {
		if header.Env[k] != v {
			t.Errorf("header env[%s] = %q, want %q", k, header.Env[k], v)
		}
	}

	var content strings.Builder
	for i, ev := range events {
		if ev.Type != asciicast.EventOutput {
			t.Errorf("event %d type = %q", i, ev.Type)
		}
		if i > 0 && ev.Time < events[i-1].Time {
			t.Errorf("event %d time %v before previous %v", i, ev.Time, events[i-1].Time)
		}
		content.WriteString(ev.Data)
	}
	if content.String() != "hello world\r\n" {
		t.Errorf("recorded content = %q", content.String())
	}

	out := stdout.String()
	if !strings.HasPrefix(out, "hello world\r\n") {
		t.Errorf("stdout mirror = %q", out)
	}
	if !strings.Contains(out, "Record finished. Result saved to file "+path) {
		t.Errorf("missing finish message in %q", out)
	}
}

func TestRunSinkEndsWithCompleteLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.cast")
	rec, err := New(testOptions(t, path))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	chunks := make([]string, 50)
	for i := range chunks {
		chunks[i] = strings.Repeat("x", i+1) + "\n"
	}
	if _, err := rec.Run(newFakeConsole(writeChunks(chunks...))); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.HasSuffix(data, []byte("\n")) {
		t.Fatalf("recording does not end with a newline")
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	for i, line := range lines[1:] {
		if _, err := asciicast.ParseEvent([]byte(line)); err != nil {
			t.Errorf("line %d is not a complete event: %q", i+2, line)
		}
	}
}

func TestRunForwardsInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.cast")
	opts := testOptions(t, path)
	opts.Stdin = strings.NewReader("typed\n")

	rec, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	console := newFakeConsole(func(in io.Reader, out io.Writer) {
		line, _ := bufio.NewReader(in).ReadString('\n')
		out.Write([]byte("got " + line))
	})
	if _, err := rec.Run(console); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	_, events := readRecording(t, path)
	if len(events) != 1 || events[0].Data != "got typed\n" {
		t.Errorf("events = %+v", events)
	}
}

type resizableConsole struct {
	*fakeConsole
	resized chan pty.Size
}

func (c *resizableConsole) Resize(size pty.Size) error {
	c.resized <- size
	return nil
}

func TestRunFollowsTerminalResize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resize.cast")
	opts := testOptions(t, path)
	stopSeen := make(chan struct{})
	opts.WatchResize = func(stop <-chan struct{}, onResize func(pty.Size)) {
		go func() {
			onResize(pty.Size{Width: 90, Height: 20})
			<-stop
			close(stopSeen)
		}()
	}

	rec, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	console := &resizableConsole{resized: make(chan pty.Size, 1)}
	console.fakeConsole = newFakeConsole(func(_ io.Reader, out io.Writer) {
		size := <-console.resized
		out.Write([]byte(fmt.Sprintf("%dx%d", size.Width, size.Height)))
	})
	res, err := rec.Run(console)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	select {
	case <-stopSeen:
	case <-time.After(time.Second):
		t.Error("resize watcher not stopped after the child exited")
	}
	if res.Header.Width != 100 || res.Header.Height != 30 {
		t.Errorf("header size = %dx%d, want the size at start", res.Header.Width, res.Header.Height)
	}
	_, events := readRecording(t, path)
	if len(events) != 1 || events[0].Data != "90x20" {
		t.Errorf("events = %+v", events)
	}
}

func TestRunCarriesSplitUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utf8.cast")
	rec, err := New(testOptions(t, path))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	euro := "€" // 3 bytes
	console := newFakeConsole(writeChunks("a"+euro[:1], euro[1:]+"b"))
	if _, err := rec.Run(console); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	_, events := readRecording(t, path)
	var content strings.Builder
	for _, ev := range events {
		content.WriteString(ev.Data)
	}
	if content.String() != "a€b" {
		t.Errorf("content = %q", content.String())
	}
}

func TestRunInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cast")
	opts := testOptions(t, path)
	stdout := opts.Stdout.(*bytes.Buffer)
	rec, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	console := newFakeConsole(writeChunks("ok\n", "\xff\xfe", "after\n"))
	res, err := rec.Run(console)
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("Run() error = %v, want ErrInvalidUTF8", err)
	}
	if res == nil || res.Events != 1 {
		t.Fatalf("result = %+v, want one event", res)
	}
	if !strings.Contains(stdout.String(), "after\n") {
		t.Errorf("output after the bad bytes was not mirrored: %q", stdout.String())
	}

	_, events := readRecording(t, path)
	if len(events) != 1 || events[0].Data != "ok\n" {
		t.Errorf("events = %+v", events)
	}
}

func TestRunTruncatedUTF8AtEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trunc.cast")
	rec, err := New(testOptions(t, path))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := rec.Run(newFakeConsole(writeChunks("x\xe2\x82"))); !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("Run() error = %v, want ErrInvalidUTF8", err)
	}
}

func TestRunTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.cast")
	rec, err := New(testOptions(t, path))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := rec.Run(newFakeConsole(writeChunks("x"))); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := rec.Run(newFakeConsole(writeChunks("x"))); err == nil {
		t.Fatal("second Run() should fail")
	}
}

func TestNewRefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.cast")
	if err := os.WriteFile(path, []byte("keep me"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(testOptions(t, path)); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("New() error = %v, want ErrSessionExists", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "keep me" {
		t.Errorf("existing file modified: %q", data)
	}
}

func TestNewForceReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.cast")
	if err := os.WriteFile(path, []byte("old content that is longer than the new one\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := testOptions(t, path)
	opts.Force = true
	rec, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := rec.Run(newFakeConsole(writeChunks("new"))); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "old content") {
		t.Errorf("old content survived: %q", data)
	}
	_, events := readRecording(t, path)
	if len(events) != 1 || events[0].Data != "new" {
		t.Errorf("events = %+v", events)
	}
}

func TestNewDefaultCommand(t *testing.T) {
	opts := testOptions(t, filepath.Join(t.TempDir(), "default.cast"))
	opts.Command = ""
	rec, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer rec.Abort()
	if rec.Command() != "pwsh.exe" {
		t.Errorf("Command() = %q, want SHELL", rec.Command())
	}
}

func TestAbortRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aborted.cast")
	rec, err := New(testOptions(t, path))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := rec.Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Abort() left %s on disk", path)
	}
	if _, err := rec.Run(newFakeConsole(writeChunks("x"))); err == nil {
		t.Error("Run() after Abort() should fail")
	}
}
