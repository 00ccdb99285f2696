// Package recorder runs a command inside a pseudo-terminal and writes its
// output to an asciicast file while mirroring it to the real terminal.
package recorder

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/muesli/cancelreader"

	"github.com/user/powersession/internal/asciicast"
	"github.com/user/powersession/internal/pty"
)

// ErrSessionExists is returned by New when the target file exists and
// overwriting was not requested.
var ErrSessionExists = errors.New("recorder: recording already exists")

const (
	outputQueueSize = 64
	inputQueueSize  = 16

	// defaultDrainTimeout bounds how long Run waits for the output stream to
	// end on its own after the child exited.
	defaultDrainTimeout = 300 * time.Millisecond
)

// State is the recording lifecycle position.
type State int

const (
	StateCreated State = iota
	StateRecording
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRecording:
		return "recording"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Console is the pseudo-terminal a recording drives. *pty.Session satisfies it.
type Console interface {
	Size() pty.Size
	Input() io.Writer
	Output() io.Reader
	Start(command string) error
	Wait() (int, error)
	Close() error
}

// resizer is implemented by consoles whose extent can follow the real
// terminal.
type resizer interface {
	Resize(size pty.Size) error
}

// Options configures a Recorder.
type Options struct {
	Path    string
	Command string
	Force   bool
	// Env holds extra header environment entries.
	Env map[string]string

	Stdin  io.Reader
	Stdout io.Writer
	Getenv func(string) string
	Now    func() time.Time

	DrainTimeout time.Duration
	// WatchResize reports real terminal size changes until stop is closed.
	WatchResize func(stop <-chan struct{}, onResize func(pty.Size))
}

// Result describes a finished recording.
type Result struct {
	Path     string
	Command  string
	Header   asciicast.Header
	ExitCode int
	Events   int
	Duration time.Duration
}

// Recorder is a single recording session.
type Recorder struct {
	opts Options
	file *os.File
	sink *asciicast.Writer

	mu    sync.Mutex
	state State
}

// New validates the target and opens it for writing. An existing file is
// removed first when opts.Force is set; otherwise New returns
// ErrSessionExists and leaves it untouched.
func New(opts Options) (*Recorder, error) {
	if opts.Path == "" {
		return nil, errors.New("recorder: empty path")
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}
	if opts.Command == "" {
		opts.Command = DefaultCommand(opts.Getenv)
	}
	if opts.WatchResize == nil {
		opts.WatchResize = pty.WatchResize
	}

	if _, err := os.Stat(opts.Path); err == nil {
		if !opts.Force {
			return nil, fmt.Errorf("%w: %s", ErrSessionExists, opts.Path)
		}
		if err := os.Remove(opts.Path); err != nil {
			return nil, fmt.Errorf("remove existing recording: %w", err)
		}
		slog.Info("existing recording removed", "path", opts.Path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat recording: %w", err)
	}

	f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrSessionExists, opts.Path)
		}
		return nil, fmt.Errorf("create recording: %w", err)
	}

	return &Recorder{
		opts: opts,
		file: f,
		sink: asciicast.NewWriter(f),
	}, nil
}

// Path returns the recording file.
func (r *Recorder) Path() string { return r.opts.Path }

// Command returns the command line that is recorded.
func (r *Recorder) Command() string { return r.opts.Command }

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Recorder) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Abort closes and removes the sink of a recorder that was never run.
func (r *Recorder) Abort() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateCreated {
		return fmt.Errorf("recorder: abort in state %s", r.state)
	}
	r.state = StateFinished
	return errors.Join(r.file.Close(), os.Remove(r.opts.Path))
}

// Run records console until the child exits. It writes the header, starts the
// command, pumps stdin into the console and console output into the sink and
// stdout, then tears the console down once the child has exited. Run always
// closes the sink. The returned Result is non-nil whenever the child was
// started, even if err is not.
func (r *Recorder) Run(console Console) (*Result, error) {
	r.mu.Lock()
	if r.state != StateCreated {
		r.mu.Unlock()
		return nil, fmt.Errorf("recorder: run in state %s", r.state)
	}
	r.state = StateRecording
	r.mu.Unlock()
	defer r.setState(StateFinished)

	size := console.Size()
	start := r.opts.Now()
	header := asciicast.Header{
		Version:   asciicast.Version,
		Width:     size.Width,
		Height:    size.Height,
		Timestamp: start.Unix(),
		Env:       MergeEnv(r.opts.Env, r.opts.Getenv),
	}
	if err := r.sink.WriteHeader(header); err != nil {
		return nil, errors.Join(fmt.Errorf("write header: %w", err), console.Close(), r.file.Close())
	}

	if err := console.Start(r.opts.Command); err != nil {
		return nil, errors.Join(fmt.Errorf("start %q: %w", r.opts.Command, err), console.Close(), r.file.Close())
	}
	slog.Info("recording started", "path", r.opts.Path, "command", r.opts.Command, "width", size.Width, "height", size.Height)

	stdin, err := cancelreader.NewReader(r.opts.Stdin)
	if err != nil {
		slog.Warn("stdin is not cancellable", "error", err)
		stdin = nil
	}

	stop := make(chan struct{})
	if rz, ok := console.(resizer); ok {
		r.opts.WatchResize(stop, func(size pty.Size) {
			if err := rz.Resize(size); err != nil {
				slog.Debug("resize console", "width", size.Width, "height", size.Height, "error", err)
				return
			}
			slog.Debug("console resized", "width", size.Width, "height", size.Height)
		})
	}
	input := make(chan []byte, inputQueueSize)
	var readerDone <-chan struct{}
	if stdin != nil {
		readerDone = readInput(stdin, input, stop)
	} else {
		close(input)
	}
	pty.PumpInput(console.Input(), input)

	output := make(chan []byte, outputQueueSize)
	pty.PumpOutput(console.Output(), output)
	consumed := make(chan consumeResult, 1)
	go func() { consumed <- r.consume(output, start) }()

	exitCode, waitErr := console.Wait()
	slog.Info("recorded process exited", "exit_code", exitCode, "error", waitErr)

	close(stop)
	if stdin != nil {
		if stdin.Cancel() {
			<-readerDone
		}
		if err := stdin.Close(); err != nil {
			slog.Debug("close stdin reader", "error", err)
		}
	}

	var res consumeResult
	select {
	case res = <-consumed:
	case <-time.After(r.opts.DrainTimeout):
		slog.Debug("output still open after exit, closing console")
	}

	closeErr := console.Close()
	switch {
	case res.done:
	case closeErr == nil:
		res = <-consumed
	default:
		// The console could not be released, so the output pump may never
		// end. Stop waiting for it after one more drain period.
		select {
		case res = <-consumed:
		case <-time.After(r.opts.DrainTimeout):
		}
	}
	if err := r.file.Close(); err != nil {
		closeErr = errors.Join(closeErr, fmt.Errorf("close recording: %w", err))
	}

	result := &Result{
		Path:     r.opts.Path,
		Command:  r.opts.Command,
		Header:   header,
		ExitCode: exitCode,
		Events:   res.events,
		Duration: res.duration,
	}
	slog.Info("recording finished", "path", r.opts.Path, "events", res.events, "duration", res.duration)
	fmt.Fprintf(r.opts.Stdout, "Record finished. Result saved to file %s\n", r.opts.Path)

	if waitErr != nil {
		return result, fmt.Errorf("wait for process: %w", waitErr)
	}
	if res.err != nil {
		return result, res.err
	}
	if closeErr != nil {
		return result, closeErr
	}
	return result, nil
}

type consumeResult struct {
	done     bool
	events   int
	duration time.Duration
	err      error
}

// consume writes every output chunk to stdout and, as an event, to the sink,
// in the order the pump produced them. It returns at the end-of-stream
// sentinel or when the channel closes. After a fatal error it keeps mirroring
// and draining but writes no more events, so the sink never holds a partial
// line.
func (r *Recorder) consume(output <-chan []byte, start time.Time) consumeResult {
	res := consumeResult{done: true}
	var dec utf8Decoder
	var last float64

	for chunk := range output {
		if len(chunk) == 0 {
			slog.Debug("end of output stream")
			break
		}

		if _, err := r.opts.Stdout.Write(chunk); err != nil {
			slog.Debug("mirror output", "error", err)
		}

		if res.err != nil {
			continue
		}

		now := r.opts.Now()
		elapsed := asciicast.Elapsed(start, now)
		if elapsed < last {
			elapsed = last
		}

		text, err := dec.decode(chunk)
		if err != nil {
			slog.Error("output is not UTF-8, recording stopped", "offset_seconds", elapsed)
			res.err = err
			continue
		}
		if text == "" {
			continue
		}

		if err := r.sink.WriteEvent(asciicast.Event{Time: elapsed, Type: asciicast.EventOutput, Data: text}); err != nil {
			slog.Error("write event", "error", err)
			res.err = fmt.Errorf("write event: %w", err)
			continue
		}
		last = elapsed
		res.events++
		res.duration = now.Sub(start)
	}

	// Drain so the pump can exit.
	for range output {
	}

	if res.err == nil {
		res.err = dec.flush()
	}
	return res
}

// readInput copies src into dst until src fails or stop is closed, then
// closes dst.
func readInput(src io.Reader, dst chan<- []byte, stop <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(dst)

		buf := make([]byte, pty.ReadChunkSize)
		for {
			n, err := src.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case dst <- chunk:
				case <-stop:
					return
				}
			}
			if err != nil {
				if !errors.Is(err, cancelreader.ErrCanceled) && !errors.Is(err, io.EOF) {
					slog.Debug("stdin reader stopped", "error", err)
				}
				return
			}
		}
	}()
	return done
}
