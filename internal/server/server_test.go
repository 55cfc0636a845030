package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/gemd/internal/certs"
	"github.com/muurk/gemd/internal/content"
	"github.com/muurk/gemd/internal/gemini"
)

var (
	tlsConfigOnce sync.Once
	tlsConfig     *tls.Config
	tlsConfigErr  error
)

func testTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	tlsConfigOnce.Do(func() {
		var sc *certs.ServerCert
		sc, tlsConfigErr = certs.GenerateSelfSigned(certs.DefaultCertParams())
		if tlsConfigErr != nil {
			return
		}
		tlsConfig, tlsConfigErr = certs.NewTLSConfigFromMemory(sc.CertPEM, sc.KeyPEM, nil)
	})
	require.NoError(t, tlsConfigErr)
	return tlsConfig
}

// startServer runs Serve on a loopback listener and returns its address.
func startServer(t *testing.T, cfg *Config, handler gemini.Handler) (*Server, string) {
	t.Helper()
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = 5 * time.Second
	}

	srv := NewWithTLSConfig(cfg, testTLSConfig(t), handler)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		assert.NoError(t, <-done)
	})
	return srv, ln.Addr().String()
}

func dial(t *testing.T, addr string) *tls.Conn {
	t.Helper()
	conn, err := tls.Dial("tcp", addr, &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{"gemini"},
	})
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(10*time.Second)))
	t.Cleanup(func() { conn.Close() })
	return conn
}

// fetch sends one request line (the caller supplies any terminator) and
// returns everything the server sent before closing.
func fetch(t *testing.T, addr, line string) string {
	t.Helper()
	conn := dial(t, addr)

	_, err := conn.Write([]byte(line))
	require.NoError(t, err)

	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(got)
}

func TestServer_ValidRequest(t *testing.T) {
	_, addr := startServer(t, &Config{}, content.NewStatic("", ""))

	got := fetch(t, addr, "gemini://example.org/\r\n")

	assert.Equal(t, "20 text/gemini\r\n# Hello World\nTesting", got)
}

func TestServer_BodySpansChunks(t *testing.T) {
	body := strings.Repeat("=> gemini://example.org/ link\n", 200)
	handler := gemini.HandlerFunc(func(req *gemini.Request) (*gemini.Response, error) {
		return gemini.TextResponse(gemini.StatusSuccess, "text/gemini", body), nil
	})
	_, addr := startServer(t, &Config{}, handler)

	got := fetch(t, addr, "gemini://example.org/\r\n")

	require.True(t, strings.HasPrefix(got, "20 text/gemini\r\n"))
	assert.Equal(t, body, strings.TrimPrefix(got, "20 text/gemini\r\n"))
}

func TestServer_MissingTerminator(t *testing.T) {
	_, addr := startServer(t, &Config{}, content.NewStatic("", ""))
	conn := dial(t, addr)

	_, err := conn.Write([]byte("gemini://example.org/"))
	require.NoError(t, err)
	require.NoError(t, conn.CloseWrite())

	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Empty(t, got, "no response bytes for malformed input")
}

func TestServer_RejectMalformed(t *testing.T) {
	_, addr := startServer(t, &Config{RejectMalformed: true}, content.NewStatic("", ""))

	got := fetch(t, addr, "not a url at all\r\n")

	assert.Equal(t, "59 bad request\r\n", got)
}

func TestServer_InvalidURLClosesSilently(t *testing.T) {
	_, addr := startServer(t, &Config{}, content.NewStatic("", ""))

	got := fetch(t, addr, "/relative/path\r\n")

	assert.Empty(t, got)
}

func TestServer_RequestSplitAcrossRecords(t *testing.T) {
	var gotURL string
	var mu sync.Mutex
	handler := gemini.HandlerFunc(func(req *gemini.Request) (*gemini.Response, error) {
		mu.Lock()
		gotURL = req.URL.String()
		mu.Unlock()
		return gemini.TextResponse(gemini.StatusSuccess, "text/plain", "ok"), nil
	})
	_, addr := startServer(t, &Config{}, handler)
	conn := dial(t, addr)

	// Each Write becomes its own TLS record
	for _, part := range []string{"gemini://exa", "mple.org/split", "\r\n"} {
		_, err := conn.Write([]byte(part))
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
	}

	got, err := io.ReadAll(conn)
	require.NoError(t, err)
	assert.Equal(t, "20 text/plain\r\nok", string(got))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "gemini://example.org/split", gotURL)
}

func TestServer_MaximumRequestSize(t *testing.T) {
	_, addr := startServer(t, &Config{}, content.NewStatic("", ""))

	url := "gemini://example.org/" + strings.Repeat("a", gemini.MaxURLSize-len("gemini://example.org/"))
	require.Len(t, url+"\r\n", 1026)

	got := fetch(t, addr, url+"\r\n")

	assert.True(t, strings.HasPrefix(got, "20 text/gemini\r\n"), "got %q", got)
}

func TestServer_PeerClosesBeforeHandshake(t *testing.T) {
	srv, addr := startServer(t, &Config{}, content.NewStatic("", ""))

	raw, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	assert.Eventually(t, func() bool { return srv.ActiveConnections() == 0 },
		2*time.Second, 10*time.Millisecond)

	// The supervisor keeps serving
	got := fetch(t, addr, "gemini://example.org/\r\n")
	assert.Equal(t, "20 text/gemini\r\n# Hello World\nTesting", got)
}

func TestServer_PeerClosesAfterHandshake(t *testing.T) {
	srv, addr := startServer(t, &Config{}, content.NewStatic("", ""))

	conn := dial(t, addr)
	require.NoError(t, conn.Handshake())
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return srv.ActiveConnections() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestServer_HandshakeGarbage(t *testing.T) {
	_, addr := startServer(t, &Config{}, content.NewStatic("", ""))

	raw, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.Write([]byte("GET / HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	require.NoError(t, raw.SetReadDeadline(time.Now().Add(5*time.Second)))

	// The server drops the connection without a response
	_, _ = io.ReadAll(raw)

	got := fetch(t, addr, "gemini://example.org/\r\n")
	assert.True(t, strings.HasPrefix(got, "20 "))
}

func TestServer_ConcurrentClients(t *testing.T) {
	handler := gemini.HandlerFunc(func(req *gemini.Request) (*gemini.Response, error) {
		// Large enough to interleave on the wire if connections shared state
		body := strings.Repeat(req.URL.Path, 4000)
		return gemini.TextResponse(gemini.StatusSuccess, "text/plain", body), nil
	})
	_, addr := startServer(t, &Config{}, handler)

	const clients = 8
	var wg sync.WaitGroup
	errs := make(chan error, clients)

	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/client-%d", i)

			conn, err := tls.Dial("tcp", addr, &tls.Config{InsecureSkipVerify: true})
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()
			_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

			if _, err := conn.Write([]byte("gemini://example.org" + path + "\r\n")); err != nil {
				errs <- err
				return
			}
			got, err := io.ReadAll(conn)
			if err != nil {
				errs <- err
				return
			}

			want := "20 text/plain\r\n" + strings.Repeat(path, 4000)
			if string(got) != want {
				errs <- fmt.Errorf("%s: got %d bytes, want %d", path, len(got), len(want))
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestServer_HandlerPanicIsContained(t *testing.T) {
	handler := gemini.HandlerFunc(func(req *gemini.Request) (*gemini.Response, error) {
		if req.URL.Path == "/panic" {
			panic("handler exploded")
		}
		return gemini.TextResponse(gemini.StatusSuccess, "text/plain", "alive"), nil
	})
	_, addr := startServer(t, &Config{}, handler)

	conn := dial(t, addr)
	_, err := conn.Write([]byte("gemini://example.org/panic\r\n"))
	require.NoError(t, err)
	got, _ := io.ReadAll(conn)
	assert.Empty(t, got)

	assert.Equal(t, "20 text/plain\r\nalive", fetch(t, addr, "gemini://example.org/\r\n"))
}

func TestServer_HandlerError(t *testing.T) {
	handler := gemini.HandlerFunc(func(req *gemini.Request) (*gemini.Response, error) {
		return nil, errors.New("backend down")
	})
	_, addr := startServer(t, &Config{}, handler)

	got := fetch(t, addr, "gemini://example.org/\r\n")

	assert.Equal(t, "40 temporary failure\r\n", got)
}

type brokenBody struct {
	sent bool
}

func (b *brokenBody) Read(p []byte) (int, error) {
	if !b.sent {
		b.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("disk unplugged")
}

func (b *brokenBody) Close() error { return nil }

func TestServer_BodySourceFaultClosesGracefully(t *testing.T) {
	handler := gemini.HandlerFunc(func(req *gemini.Request) (*gemini.Response, error) {
		return &gemini.Response{
			Header: gemini.Header{Status: gemini.StatusSuccess, Meta: "text/plain"},
			Body:   &brokenBody{},
		}, nil
	})
	_, addr := startServer(t, &Config{}, handler)

	// io.ReadAll returning nil means close-notify arrived
	got := fetch(t, addr, "gemini://example.org/\r\n")

	assert.Equal(t, "20 text/plain\r\npartial", got)
}

func TestServer_ConnTimeout(t *testing.T) {
	srv, addr := startServer(t, &Config{ConnTimeout: 200 * time.Millisecond}, content.NewStatic("", ""))

	conn := dial(t, addr)
	require.NoError(t, conn.Handshake())
	// Never send a request

	got, _ := io.ReadAll(conn)
	assert.Empty(t, got)
	assert.Eventually(t, func() bool { return srv.ActiveConnections() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestServer_ShutdownStopsServe(t *testing.T) {
	srv := NewWithTLSConfig(&Config{}, testTLSConfig(t), content.NewStatic("", ""))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, time.Second, 5*time.Millisecond)
	require.NoError(t, srv.Shutdown(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Shutdown")
	}
}
