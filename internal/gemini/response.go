package gemini

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// TransferBufferSize bounds each body chunk handed to the engine.
	TransferBufferSize = 1024
	// MaxMetaSize is the longest meta string a header may carry.
	MaxMetaSize = 1024
)

// Header is a Gemini response status line.
type Header struct {
	Status Status
	Meta   string
}

// Validate checks that the header can be sent as a single status line.
func (h Header) Validate() error {
	if !h.Status.Valid() {
		return fmt.Errorf("status %d out of range 10-69", int(h.Status))
	}
	if len(h.Meta) > MaxMetaSize {
		return fmt.Errorf("meta is %d bytes, limit is %d", len(h.Meta), MaxMetaSize)
	}
	if strings.ContainsAny(h.Meta, "\r\n") {
		return errors.New("meta must not contain CR or LF")
	}
	return nil
}

// Bytes returns the wire form: "<status> <meta>\r\n".
func (h Header) Bytes() []byte {
	return []byte(fmt.Sprintf("%02d %s%s", int(h.Status), h.Meta, Terminator))
}

func (h Header) String() string {
	return fmt.Sprintf("%02d %s", int(h.Status), h.Meta)
}

// Response is what a Handler produces for one request. Body may be nil for
// responses without content; it is closed by the server.
type Response struct {
	Header Header
	Body   io.ReadCloser
}

// BodySourceError reports a failure of the content collaborator to produce
// body bytes after the header was sent.
type BodySourceError struct {
	Written int64
	Err     error
}

func (e *BodySourceError) Error() string {
	return fmt.Sprintf("body source failed after %d bytes: %v", e.Written, e.Err)
}

func (e *BodySourceError) Unwrap() error {
	return e.Err
}

// PlaintextWriter is the encrypting side of a TLS record engine. Written
// bytes are staged until Flush.
type PlaintextWriter interface {
	WritePlaintext(p []byte) (int, error)
	Flush() error
}

// WriteResponse sends the header, then streams body in chunks of at most
// TransferBufferSize bytes, flushing after each. body may be nil. It returns
// the number of body bytes written.
func WriteResponse(w PlaintextWriter, h Header, body io.Reader) (int64, error) {
	if err := h.Validate(); err != nil {
		return 0, fmt.Errorf("invalid response header: %w", err)
	}
	if err := writeAndFlush(w, h.Bytes()); err != nil {
		return 0, fmt.Errorf("failed to send header: %w", err)
	}
	if body == nil {
		return 0, nil
	}

	var written int64
	buf := make([]byte, TransferBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if err := writeAndFlush(w, buf[:n]); err != nil {
				return written, fmt.Errorf("failed to send body: %w", err)
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, &BodySourceError{Written: written, Err: readErr}
		}
	}
}

func writeAndFlush(w PlaintextWriter, p []byte) error {
	if _, err := w.WritePlaintext(p); err != nil {
		return err
	}
	return w.Flush()
}
