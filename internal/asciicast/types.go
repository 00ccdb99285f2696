// Package asciicast implements the newline-delimited recording format: one JSON
// header line followed by one JSON array per event.
package asciicast

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// Version is written into every header produced by this package.
const Version = 2

var (
	ErrMalformedHeader = errors.New("asciicast: malformed header")
	ErrMalformedEvent  = errors.New("asciicast: malformed event")
)

// EventType tags the direction of an event.
type EventType string

const (
	// EventOutput is data the child wrote to its terminal.
	EventOutput EventType = "o"
	// EventInput is data typed into the terminal. Reserved; the recorder does
	// not emit it.
	EventInput EventType = "i"
)

// Header is the first line of every recording.
type Header struct {
	Version   int               `json:"version"`
	Width     int16             `json:"width"`
	Height    int16             `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Env       map[string]string `json:"env"`
}

// Event is one timestamped chunk of terminal data.
type Event struct {
	// Time is seconds since the session started.
	Time float64
	Type EventType
	Data string
}

// Delay returns the event time as a duration.
func (e Event) Delay() time.Duration {
	return time.Duration(e.Time * float64(time.Second))
}

// MarshalJSON encodes the event as [time, type, data].
func (e Event) MarshalJSON() ([]byte, error) {
	line, err := encodeLine([]any{e.Time, e.Type, e.Data})
	if err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(line, []byte("\n")), nil
}

// Elapsed returns the seconds between start and now.
func Elapsed(start, now time.Time) float64 {
	return now.Sub(start).Seconds()
}

// encodeLine renders v as a single JSON line terminated by '\n'.
func encodeLine(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
