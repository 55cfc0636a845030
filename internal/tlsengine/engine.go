package tlsengine

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/muurk/gemd/internal/logging"
	"go.uber.org/zap"
)

// State is the lifecycle phase of an Engine.
type State int

const (
	StateHandshaking State = iota
	StateEstablished
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrNotEstablished is returned by plaintext operations attempted before the
// handshake has completed or after the engine has been closed.
var ErrNotEstablished = errors.New("tls engine: connection not established")

// HandshakeError reports a packet-processing fault during the handshake:
// malformed records, rejected certificates, protocol mismatch.
type HandshakeError struct {
	RemoteAddr string
	Err        error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("tls handshake with %s failed: %v", e.RemoteAddr, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// Engine mediates all ciphertext I/O for one transport connection and
// exposes a plaintext interface to the Gemini layer. An Engine is owned by a
// single goroutine and is not safe for concurrent use.
type Engine struct {
	rc    *recordConn
	tls   *tls.Conn
	state State

	remoteAddr string
}

// New binds an engine to transport using the shared, read-only cfg. The
// engine starts in StateHandshaking; nothing is read or written until
// AdvanceHandshake is called.
func New(transport net.Conn, cfg *tls.Config) *Engine {
	rc := newRecordConn(transport)
	remoteAddr := ""
	if addr := transport.RemoteAddr(); addr != nil {
		remoteAddr = addr.String()
	}
	return &Engine{
		rc:         rc,
		tls:        tls.Server(rc, cfg),
		state:      StateHandshaking,
		remoteAddr: remoteAddr,
	}
}

// State returns the current lifecycle phase.
func (e *Engine) State() State {
	return e.state
}

// RemoteAddr returns the peer address of the underlying transport.
func (e *Engine) RemoteAddr() string {
	return e.remoteAddr
}

// WantsRead reports whether the engine can make progress by reading
// ciphertext from the transport.
func (e *Engine) WantsRead() bool {
	if e.rc.peerClosed {
		return false
	}
	return e.state == StateHandshaking || e.state == StateEstablished
}

// WantsWrite reports whether ciphertext is staged and waiting for Flush.
func (e *Engine) WantsWrite() bool {
	return e.rc.wantsWrite()
}

// BytesIn and BytesOut report the ciphertext transferred so far.
func (e *Engine) BytesIn() int64  { return e.rc.bytesIn }
func (e *Engine) BytesOut() int64 { return e.rc.bytesOut }

// ConnectionState returns the negotiated TLS parameters. Only meaningful once
// the engine is established.
func (e *Engine) ConnectionState() tls.ConnectionState {
	return e.tls.ConnectionState()
}

// SetDeadline bounds all future transport I/O for this connection.
func (e *Engine) SetDeadline(t time.Time) error {
	return e.rc.Conn.SetDeadline(t)
}

// AdvanceHandshake drives the handshake to completion. Each transport read
// made by the packet processor first drains every staged record, so pending
// writes always go out before the next read.
//
// A peer that disconnects before the handshake completes is not a fault:
// the engine moves to StateClosed and nil is returned. Callers must check
// State afterwards.
func (e *Engine) AdvanceHandshake(ctx context.Context) error {
	if e.state != StateHandshaking {
		return nil
	}

	err := e.tls.HandshakeContext(ctx)
	if err != nil {
		if e.rc.peerClosed {
			logging.Debug("Peer closed during handshake",
				zap.String("remote_addr", e.remoteAddr),
				zap.Int64("bytes_in", e.rc.bytesIn),
			)
			e.state = StateClosed
			_ = e.rc.shutdown()
			return nil
		}

		logging.Error("TLS handshake failed",
			zap.String("remote_addr", e.remoteAddr),
			zap.Error(err),
		)
		// crypto/tls may have staged an alert for the peer.
		_ = e.rc.flush()
		e.state = StateClosed
		_ = e.rc.shutdown()
		return &HandshakeError{RemoteAddr: e.remoteAddr, Err: err}
	}

	if err := e.rc.flush(); err != nil {
		e.state = StateClosed
		_ = e.rc.shutdown()
		return fmt.Errorf("failed to flush final handshake flight: %w", err)
	}

	e.state = StateEstablished
	logging.LogTLSHandshake(e.remoteAddr, e.tls.ConnectionState())
	return nil
}

// ReadPlaintext reads the next decrypted application bytes into buf. A
// return of (0, nil) means the peer closed the connection.
func (e *Engine) ReadPlaintext(buf []byte) (int, error) {
	if e.state != StateEstablished && e.state != StateClosing {
		return 0, ErrNotEstablished
	}
	if len(buf) == 0 {
		return 0, nil
	}

	n, err := e.tls.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) || (n == 0 && e.rc.peerClosed) {
			return n, nil
		}
		return n, fmt.Errorf("failed to read application data: %w", err)
	}
	return n, nil
}

// WritePlaintext encrypts p into staged records. Nothing is transmitted
// until Flush.
func (e *Engine) WritePlaintext(p []byte) (int, error) {
	if e.state != StateEstablished {
		return 0, ErrNotEstablished
	}

	n, err := e.tls.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to encrypt application data: %w", err)
	}
	return n, nil
}

// Flush drains all staged ciphertext to the transport.
func (e *Engine) Flush() error {
	if err := e.rc.flush(); err != nil {
		return fmt.Errorf("failed to write ciphertext: %w", err)
	}
	return nil
}

// Close sends close-notify (when the handshake has completed), flushes, and
// shuts the transport down in both directions. Calling Close again is a
// no-op and writes nothing.
func (e *Engine) Close() error {
	if e.state == StateClosed {
		return nil
	}

	var errs []error
	if e.state == StateEstablished {
		e.state = StateClosing
		if err := e.tls.CloseWrite(); err != nil {
			errs = append(errs, fmt.Errorf("failed to queue close-notify: %w", err))
		}
		if err := e.Flush(); err != nil {
			errs = append(errs, err)
		}
	}

	e.state = StateClosed
	if err := e.rc.shutdown(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("failed to shut down transport: %w", err))
	}
	return errors.Join(errs...)
}
