package gemini

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
)

const (
	// MaxURLSize is the longest URL a request line may carry.
	MaxURLSize = 1024
	// MaxRequestSize is the longest request line including the terminator.
	MaxRequestSize = MaxURLSize + len(Terminator)
	// Terminator ends both request and response header lines.
	Terminator = "\r\n"
)

var (
	// ErrPeerClosed is returned when the client closes the connection
	// without sending a single byte. It is a clean closure, not a fault.
	ErrPeerClosed = errors.New("peer closed connection before sending a request")

	// ErrRequestTooShort is returned when fewer bytes than the terminator
	// length arrived before the peer closed.
	ErrRequestTooShort = errors.New("request too short to contain a terminator")
)

// MalformedRequestError reports a request line whose last two bytes are not
// the terminator. Raw carries what was received for diagnostics.
type MalformedRequestError struct {
	Raw     []byte
	TooLong bool
}

func (e *MalformedRequestError) Error() string {
	if e.TooLong {
		return fmt.Sprintf("malformed request: no terminator within %d bytes", MaxRequestSize)
	}
	return fmt.Sprintf("malformed request: %d bytes not ending in CRLF", len(e.Raw))
}

// InvalidURLError reports a well-framed request whose content is not an
// absolute URL.
type InvalidURLError struct {
	Raw string
	Err error
}

func (e *InvalidURLError) Error() string {
	return fmt.Sprintf("invalid request URL %q: %v", e.Raw, e.Err)
}

func (e *InvalidURLError) Unwrap() error {
	return e.Err
}

// Request is a validated Gemini request.
type Request struct {
	// URL is the parsed absolute URL, terminator stripped
	URL *url.URL
	// Raw is the request line as received, terminator stripped
	Raw string
}

// PlaintextReader is the decrypted side of a TLS record engine.
// ReadPlaintext returns (0, nil) when the peer has closed.
type PlaintextReader interface {
	ReadPlaintext(buf []byte) (int, error)
}

// ReadRequest assembles exactly one request line from r. Plaintext is
// accumulated across reads until the terminator arrives, the peer closes, or
// MaxRequestSize bytes have been received, so a request split over several
// TLS records is handled.
func ReadRequest(r PlaintextReader) (*Request, error) {
	buf := make([]byte, MaxRequestSize)
	size := 0

	for size < len(buf) {
		n, err := r.ReadPlaintext(buf[size:])
		if err != nil {
			return nil, fmt.Errorf("failed to read request: %w", err)
		}
		if n == 0 {
			break
		}
		size += n

		if i := bytes.Index(buf[:size], []byte(Terminator)); i >= 0 {
			if i+len(Terminator) != size {
				// Anything after the first line is pipelining, which
				// Gemini does not allow.
				return nil, &MalformedRequestError{Raw: clone(buf[:size])}
			}
			break
		}
	}

	return ParseRequestLine(buf[:size])
}

// ParseRequestLine validates a complete request line, terminator included.
func ParseRequestLine(line []byte) (*Request, error) {
	switch {
	case len(line) == 0:
		return nil, ErrPeerClosed
	case len(line) < len(Terminator):
		return nil, ErrRequestTooShort
	case !bytes.HasSuffix(line, []byte(Terminator)):
		return nil, &MalformedRequestError{
			Raw:     clone(line),
			TooLong: len(line) >= MaxRequestSize,
		}
	case len(line) > MaxRequestSize:
		return nil, &MalformedRequestError{Raw: clone(line), TooLong: true}
	}

	raw := string(line[:len(line)-len(Terminator)])
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &InvalidURLError{Raw: raw, Err: err}
	}
	if !u.IsAbs() {
		return nil, &InvalidURLError{Raw: raw, Err: errors.New("URL is not absolute")}
	}

	return &Request{URL: u, Raw: raw}, nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
