// Package protocol implements the chat room wire format: a fixed width decimal
// length header followed by the UTF-8 payload, and the command grammar carried
// inside it.
package protocol

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// HeaderSize is the width of the ASCII length header preceding every payload.
const HeaderSize = 64

// FramingError reports a malformed or truncated message. The connection it was
// read from is no longer usable.
type FramingError struct {
	Op  string
	Err error
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing: %s: %v", e.Op, e.Err)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// Encode returns text framed for the wire.
func Encode(text string) ([]byte, error) {
	size := strconv.Itoa(len(text))
	if len(size) > HeaderSize {
		return nil, fmt.Errorf("payload of %s bytes does not fit the header", size)
	}
	buf := make([]byte, 0, HeaderSize+len(text))
	buf = append(buf, size...)
	buf = append(buf, strings.Repeat(" ", HeaderSize-len(size))...)
	buf = append(buf, text...)
	return buf, nil
}

// WriteMessage frames text and writes it to w in a single write.
func WriteMessage(w io.Writer, text string) error {
	buf, err := Encode(text)
	if err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// ReadMessage reads one framed message from r without a payload bound.
func ReadMessage(r io.Reader) (string, error) {
	return NewReader(r, 0).ReadMessage()
}

// Reader decodes consecutive messages from a stream.
type Reader struct {
	r          io.Reader
	maxPayload int64
	header     [HeaderSize]byte
}

// NewReader returns a Reader that rejects payloads larger than maxPayload
// bytes. A maxPayload of zero or less disables the bound.
func NewReader(r io.Reader, maxPayload int64) *Reader {
	return &Reader{r: r, maxPayload: maxPayload}
}

// ReadMessage returns the next payload. It returns io.EOF when the stream ends
// cleanly before a header starts, and a *FramingError for anything else that
// leaves the stream unusable.
func (r *Reader) ReadMessage() (string, error) {
	if _, err := io.ReadFull(r.r, r.header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", &FramingError{Op: "read header", Err: err}
	}

	size, err := parseHeader(r.header[:])
	if err != nil {
		return "", &FramingError{Op: "parse header", Err: err}
	}
	if r.maxPayload > 0 && size > r.maxPayload {
		return "", &FramingError{Op: "parse header", Err: fmt.Errorf("payload of %d bytes exceeds limit of %d", size, r.maxPayload)}
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", &FramingError{Op: "read payload", Err: err}
	}
	return string(payload), nil
}

func parseHeader(header []byte) (int64, error) {
	field := strings.TrimSpace(strings.Trim(string(header), "\x00"))
	if field == "" {
		return 0, errors.New("empty length header")
	}
	size, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid length header %q", field)
	}
	if size < 0 {
		return 0, fmt.Errorf("negative length %d", size)
	}
	return size, nil
}
