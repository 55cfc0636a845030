package tlsengine

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/gemd/internal/certs"
)

var (
	serverConfigOnce sync.Once
	serverConfig     *tls.Config
	serverConfigErr  error
)

func testServerConfig(t *testing.T) *tls.Config {
	t.Helper()
	serverConfigOnce.Do(func() {
		var sc *certs.ServerCert
		sc, serverConfigErr = certs.GenerateSelfSigned(certs.DefaultCertParams())
		if serverConfigErr != nil {
			return
		}
		serverConfig, serverConfigErr = certs.NewTLSConfigFromMemory(sc.CertPEM, sc.KeyPEM, nil)
	})
	require.NoError(t, serverConfigErr)
	return serverConfig
}

func clientConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{"gemini"},
	}
}

// countingConn records every transport write so tests can tell what the
// engine put on the wire.
type countingConn struct {
	net.Conn
	writes atomic.Int64
	bytes  atomic.Int64
}

func (c *countingConn) Write(p []byte) (int, error) {
	c.writes.Add(1)
	n, err := c.Conn.Write(p)
	c.bytes.Add(int64(n))
	return n, err
}

// tcpPair returns both ends of a loopback TCP connection. Kernel buffering
// lets a test run client and engine from separate goroutines without the
// lock-step behaviour of net.Pipe.
func tcpPair(t *testing.T) (server *countingConn, client net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- conn
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	conn, ok := <-accepted
	require.True(t, ok, "accept failed")

	t.Cleanup(func() {
		conn.Close()
		client.Close()
	})
	return &countingConn{Conn: conn}, client
}

// establish runs a full handshake and returns the engine and the TLS client.
func establish(t *testing.T) (*Engine, *countingConn, *tls.Conn) {
	t.Helper()

	transport, raw := tcpPair(t)
	engine := New(transport, testServerConfig(t))
	client := tls.Client(raw, clientConfig())

	errc := make(chan error, 1)
	go func() { errc <- client.Handshake() }()

	require.NoError(t, engine.AdvanceHandshake(context.Background()))
	require.NoError(t, <-errc)
	require.Equal(t, StateEstablished, engine.State())

	return engine, transport, client
}

func TestNew_StartsHandshaking(t *testing.T) {
	transport, _ := tcpPair(t)
	engine := New(transport, testServerConfig(t))

	assert.Equal(t, StateHandshaking, engine.State())
	assert.True(t, engine.WantsRead())
	assert.False(t, engine.WantsWrite())
	assert.NotEmpty(t, engine.RemoteAddr())
}

func TestAdvanceHandshake_Completes(t *testing.T) {
	engine, _, client := establish(t)

	state := engine.ConnectionState()
	assert.True(t, state.HandshakeComplete)
	assert.Equal(t, "gemini", state.NegotiatedProtocol)
	assert.Equal(t, "gemini", client.ConnectionState().NegotiatedProtocol)
	assert.False(t, engine.WantsWrite(), "final flight must be flushed")
	assert.Positive(t, engine.BytesIn())
	assert.Positive(t, engine.BytesOut())
}

func TestAdvanceHandshake_PeerClosesEarly(t *testing.T) {
	transport, raw := tcpPair(t)
	engine := New(transport, testServerConfig(t))

	require.NoError(t, raw.Close())

	err := engine.AdvanceHandshake(context.Background())
	assert.NoError(t, err, "disconnect mid-handshake is not a fault")
	assert.Equal(t, StateClosed, engine.State())
	assert.False(t, engine.WantsRead())
}

func TestAdvanceHandshake_Fault(t *testing.T) {
	transport, raw := tcpPair(t)
	engine := New(transport, testServerConfig(t))

	go func() {
		_, _ = raw.Write([]byte("GET / HTTP/1.1\r\nHost: example.org\r\n\r\n"))
	}()

	err := engine.AdvanceHandshake(context.Background())
	require.Error(t, err)

	var hsErr *HandshakeError
	require.True(t, errors.As(err, &hsErr), "error = %T, want *HandshakeError", err)
	assert.Equal(t, engine.RemoteAddr(), hsErr.RemoteAddr)
	assert.Equal(t, StateClosed, engine.State())
}

func TestAdvanceHandshake_NoopWhenEstablished(t *testing.T) {
	engine, transport, _ := establish(t)
	writes := transport.writes.Load()

	assert.NoError(t, engine.AdvanceHandshake(context.Background()))
	assert.Equal(t, writes, transport.writes.Load())
}

func TestPlaintext_RoundTrip(t *testing.T) {
	engine, _, client := establish(t)

	go func() {
		_, _ = client.Write([]byte("gemini://example.org/\r\n"))
	}()

	buf := make([]byte, 64)
	n, err := engine.ReadPlaintext(buf)
	require.NoError(t, err)
	assert.Equal(t, "gemini://example.org/\r\n", string(buf[:n]))

	_, err = engine.WritePlaintext([]byte("20 text/gemini\r\nhello"))
	require.NoError(t, err)
	require.NoError(t, engine.Flush())
	require.NoError(t, engine.Close())

	got, err := io.ReadAll(client)
	require.NoError(t, err)
	assert.Equal(t, "20 text/gemini\r\nhello", string(got))
}

func TestWritePlaintext_StagesUntilFlush(t *testing.T) {
	engine, transport, client := establish(t)
	before := transport.bytes.Load()

	_, err := engine.WritePlaintext([]byte("staged"))
	require.NoError(t, err)
	assert.True(t, engine.WantsWrite())
	assert.Equal(t, before, transport.bytes.Load(), "nothing may reach the transport before Flush")

	require.NoError(t, engine.Flush())
	assert.False(t, engine.WantsWrite())
	assert.Greater(t, transport.bytes.Load(), before)

	buf := make([]byte, 16)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	n, err := client.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "staged", string(buf[:n]))
}

func TestReadPlaintext_PeerClosureAfterHandshake(t *testing.T) {
	engine, _, client := establish(t)

	require.NoError(t, client.Close())

	n, err := engine.ReadPlaintext(make([]byte, 16))
	assert.NoError(t, err, "clean closure is not a fault")
	assert.Zero(t, n)
}

func TestPlaintext_RequiresEstablished(t *testing.T) {
	transport, _ := tcpPair(t)
	engine := New(transport, testServerConfig(t))

	_, err := engine.ReadPlaintext(make([]byte, 8))
	assert.ErrorIs(t, err, ErrNotEstablished)

	_, err = engine.WritePlaintext([]byte("x"))
	assert.ErrorIs(t, err, ErrNotEstablished)
}

func TestClose_Idempotent(t *testing.T) {
	engine, transport, client := establish(t)

	require.NoError(t, engine.Close())
	assert.Equal(t, StateClosed, engine.State())
	writes := transport.writes.Load()
	bytesOut := engine.BytesOut()
	assert.Positive(t, writes, "close-notify must be written")

	assert.NoError(t, engine.Close())
	assert.Equal(t, writes, transport.writes.Load(), "second Close must not write")
	assert.Equal(t, bytesOut, engine.BytesOut())

	_, err := engine.WritePlaintext([]byte("late"))
	assert.ErrorIs(t, err, ErrNotEstablished)

	// The client sees a clean end of stream
	got, err := io.ReadAll(client)
	assert.NoError(t, err)
	assert.Empty(t, got)
}

func TestClose_DuringHandshake(t *testing.T) {
	transport, _ := tcpPair(t)
	engine := New(transport, testServerConfig(t))

	assert.NoError(t, engine.Close())
	assert.Equal(t, StateClosed, engine.State())
	assert.Zero(t, transport.writes.Load(), "no close-notify before the handshake")
	assert.NoError(t, engine.Close())
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateHandshaking, "handshaking"},
		{StateEstablished, "established"},
		{StateClosing, "closing"},
		{StateClosed, "closed"},
		{State(9), "State(9)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}
