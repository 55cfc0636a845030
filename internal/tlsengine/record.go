package tlsengine

import (
	"bytes"
	"errors"
	"io"
	"net"
	"time"
)

// recordConn sits between crypto/tls and the transport. Outbound ciphertext
// is staged in out until flush; inbound ciphertext is read straight from the
// transport. Every read drains out first so a handshake flight is always on
// the wire before we wait for the peer's answer.
type recordConn struct {
	net.Conn

	out bytes.Buffer

	bytesIn    int64
	bytesOut   int64
	peerClosed bool
}

func newRecordConn(transport net.Conn) *recordConn {
	return &recordConn{Conn: transport}
}

// Read is called by the packet processor whenever it wants ciphertext.
func (rc *recordConn) Read(p []byte) (int, error) {
	if err := rc.flush(); err != nil {
		return 0, err
	}

	n, err := rc.Conn.Read(p)
	rc.bytesIn += int64(n)
	if errors.Is(err, io.EOF) || (n == 0 && err == nil) {
		rc.peerClosed = true
		if err == nil {
			err = io.EOF
		}
	}
	return n, err
}

// Write stages ciphertext; nothing reaches the transport until flush.
func (rc *recordConn) Write(p []byte) (int, error) {
	return rc.out.Write(p)
}

// SetWriteDeadline ignores deadlines set by the packet processor. Its writes
// only reach the staging buffer; crypto/tls pins the deadline to now after
// queuing close-notify, which would fail the flush that sends it. Transport
// deadlines are set through the embedded conn's SetDeadline.
func (rc *recordConn) SetWriteDeadline(time.Time) error {
	return nil
}

func (rc *recordConn) wantsWrite() bool {
	return rc.out.Len() > 0
}

// flush drains staged ciphertext, looping over short writes.
func (rc *recordConn) flush() error {
	for rc.wantsWrite() {
		n, err := rc.Conn.Write(rc.out.Bytes())
		rc.bytesOut += int64(n)
		rc.out.Next(n)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}

type closeReader interface {
	CloseRead() error
}

type closeWriter interface {
	CloseWrite() error
}

// shutdown closes both directions of the transport, then the transport.
func (rc *recordConn) shutdown() error {
	if cw, ok := rc.Conn.(closeWriter); ok {
		_ = cw.CloseWrite()
	}
	if cr, ok := rc.Conn.(closeReader); ok {
		_ = cr.CloseRead()
	}
	return rc.Conn.Close()
}
