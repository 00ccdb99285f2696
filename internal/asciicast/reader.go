package asciicast

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

const maxLineSize = 4 * 1024 * 1024

// Reader parses a recording. The header is read eagerly by NewReader; events
// are parsed one line at a time by Next. A Reader cannot be rewound, and once
// Next has returned an error every later call returns the same error.
type Reader struct {
	scanner *bufio.Scanner
	header  Header
	line    int
	err     error
}

// NewReader reads and validates the header line from r.
func NewReader(r io.Reader) (*Reader, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		return nil, fmt.Errorf("%w: empty recording", ErrMalformedHeader)
	}

	header, err := ParseHeader(scanner.Bytes())
	if err != nil {
		return nil, err
	}
	return &Reader{scanner: scanner, header: header, line: 1}, nil
}

// Header returns the parsed header.
func (r *Reader) Header() Header { return r.header }

// Next returns the next event, or io.EOF once the recording is exhausted.
func (r *Reader) Next() (Event, error) {
	if r.err != nil {
		return Event{}, r.err
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			r.err = fmt.Errorf("read line %d: %w", r.line+1, err)
		} else {
			r.err = io.EOF
		}
		return Event{}, r.err
	}
	r.line++

	ev, err := ParseEvent(r.scanner.Bytes())
	if err != nil {
		r.err = fmt.Errorf("line %d: %w", r.line, err)
		return Event{}, r.err
	}
	return ev, nil
}

// ParseHeader decodes a header line.
func ParseHeader(line []byte) (Header, error) {
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedHeader, h.Version)
	}
	if h.Env == nil {
		h.Env = map[string]string{}
	}
	return h, nil
}

// ParseEvent decodes an event line. The line must be a JSON array of exactly
// three elements: a number, the type tag and a string.
func ParseEvent(line []byte) (Event, error) {
	if !gjson.ValidBytes(line) {
		return Event{}, fmt.Errorf("%w: invalid json", ErrMalformedEvent)
	}
	res := gjson.ParseBytes(line)
	if !res.IsArray() {
		return Event{}, fmt.Errorf("%w: not an array", ErrMalformedEvent)
	}
	fields := res.Array()
	if len(fields) != 3 {
		return Event{}, fmt.Errorf("%w: want 3 fields, got %d", ErrMalformedEvent, len(fields))
	}
	if fields[0].Type != gjson.Number {
		return Event{}, fmt.Errorf("%w: time is not a number", ErrMalformedEvent)
	}
	if fields[1].Type != gjson.String {
		return Event{}, fmt.Errorf("%w: type is not a string", ErrMalformedEvent)
	}
	typ := EventType(fields[1].Str)
	switch typ {
	case EventOutput, EventInput:
	default:
		return Event{}, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, fields[1].Str)
	}
	if fields[2].Type != gjson.String {
		return Event{}, fmt.Errorf("%w: data is not a string", ErrMalformedEvent)
	}
	return Event{Time: fields[0].Num, Type: typ, Data: fields[2].Str}, nil
}
