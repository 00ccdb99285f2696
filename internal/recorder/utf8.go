package recorder

import (
	"errors"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned when the child writes bytes that are not UTF-8.
var ErrInvalidUTF8 = errors.New("recorder: output is not valid UTF-8")

// utf8Decoder turns a chunked byte stream into strings. A multi-byte sequence
// cut by a chunk boundary is held back until the rest of it arrives.
type utf8Decoder struct {
	pending []byte
}

func (d *utf8Decoder) decode(chunk []byte) (string, error) {
	buf := append(d.pending, chunk...)

	cut := len(buf)
	for i := len(buf) - 1; i >= 0 && i >= len(buf)-utf8.UTFMax; i-- {
		if utf8.RuneStart(buf[i]) {
			if !utf8.FullRune(buf[i:]) {
				cut = i
			}
			break
		}
	}

	text := buf[:cut]
	if !utf8.Valid(text) {
		d.pending = nil
		return "", ErrInvalidUTF8
	}
	d.pending = append([]byte(nil), buf[cut:]...)
	return string(text), nil
}

// flush reports a sequence left incomplete at end of stream.
func (d *utf8Decoder) flush() error {
	if len(d.pending) > 0 {
		d.pending = nil
		return ErrInvalidUTF8
	}
	return nil
}
