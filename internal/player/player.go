// Package player replays an asciicast recording with its original timing.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/user/powersession/internal/asciicast"
)

// ErrSessionNotFound is returned by Load when the recording does not exist.
var ErrSessionNotFound = errors.New("player: recording not found")

// State is the playback lifecycle position.
type State int

const (
	StateLoaded State = iota
	StatePlaying
	StateDone
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Player.
type Option func(*Player)

// WithSleep replaces the timed wait between events.
func WithSleep(fn SleepFunc) Option {
	return func(p *Player) { p.sleep = fn }
}

// Player plays one recording, once.
type Player struct {
	path   string
	file   *os.File
	reader *asciicast.Reader
	sleep  SleepFunc
	state  State
}

// Load opens path and parses its header. Events are parsed lazily by Play.
func Load(path string, opts ...Option) (*Player, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, path)
		}
		return nil, fmt.Errorf("open recording: %w", err)
	}

	r, err := asciicast.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	p := &Player{path: path, file: f, reader: r, sleep: sleepContext}
	for _, opt := range opts {
		opt(p)
	}
	slog.Debug("recording loaded", "path", path, "width", r.Header().Width, "height", r.Header().Height)
	return p, nil
}

// Header returns the recording header.
func (p *Player) Header() asciicast.Header { return p.reader.Header() }

// State returns the current lifecycle state.
func (p *Player) State() State { return p.state }

// Play writes every output event to out. The first event is written at once;
// each later one after the difference between its timestamp and the previous
// one. Input events are skipped. A malformed line stops playback with an
// error wrapping asciicast.ErrMalformedEvent. Play can only run once.
func (p *Player) Play(ctx context.Context, out io.Writer) error {
	if p.state != StateLoaded {
		return errors.New("player: recording already played")
	}
	p.state = StatePlaying
	defer func() { p.state = StateDone }()

	var (
		previous float64
		first    = true
		played   int
	)
	for {
		ev, err := p.reader.Next()
		if errors.Is(err, io.EOF) {
			slog.Debug("playback finished", "path", p.path, "events", played)
			return nil
		}
		if err != nil {
			return fmt.Errorf("play %s: %w", p.path, err)
		}
		if ev.Type != asciicast.EventOutput {
			continue
		}

		var delay time.Duration
		if !first {
			delay = time.Duration((ev.Time - previous) * float64(time.Second))
		}
		if delay < 0 {
			delay = 0
		}
		previous = ev.Time
		first = false

		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
		if _, err := io.WriteString(out, ev.Data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		if f, ok := out.(interface{ Flush() error }); ok {
			if err := f.Flush(); err != nil {
				return fmt.Errorf("flush output: %w", err)
			}
		}
		played++
	}
}

// Close releases the recording file.
func (p *Player) Close() error {
	return p.file.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
