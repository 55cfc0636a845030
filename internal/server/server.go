package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/muurk/gemd/internal/certs"
	"github.com/muurk/gemd/internal/discovery"
	"github.com/muurk/gemd/internal/gemini"
	"github.com/muurk/gemd/internal/logging"
	"github.com/muurk/gemd/internal/tlsengine"
	"github.com/muurk/gemd/internal/version"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds the server configuration
type Config struct {
	Host         string
	Port         int
	CertPath     string   // Path to certificate file (optional if GenerateCert is true)
	KeyPath      string   // Path to private key file (optional if GenerateCert is true)
	GenerateCert bool     // If true, generate a self-signed certificate in memory
	Hostnames    []string // SANs for the generated certificate
	Protocols    []string // ALPN identifiers advertised to clients
	LogLevel     string

	// ConnTimeout bounds the whole exchange on one connection. Zero disables it.
	ConnTimeout time.Duration
	// RejectMalformed answers malformed requests with "59 bad request"
	// instead of closing without a response.
	RejectMalformed bool

	MDNS         bool   // Advertise the capsule over mDNS
	MDNSInstance string // mDNS instance name (empty = "gemd on <hostname>")
}

// Server accepts transport connections and runs one Gemini exchange per
// connection in its own goroutine. The TLS configuration is the only state
// shared between connections and is never mutated after New.
type Server struct {
	config      *Config
	listener    net.Listener
	tlsConfig   *tls.Config
	handler     gemini.Handler
	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]net.Conn
}

// New creates a new Server instance
func New(config *Config, handler gemini.Handler) (*Server, error) {
	if err := logging.Initialize(config.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	var tlsConfig *tls.Config
	var err error

	if config.GenerateCert {
		logging.Info("Generating self-signed server certificate")
		tlsConfig, err = generateAndLoadCert(config)
		if err != nil {
			return nil, fmt.Errorf("failed to generate certificate: %w", err)
		}
	} else {
		tlsConfig, err = certs.NewTLSConfig(config.CertPath, config.KeyPath, config.Protocols)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	return NewWithTLSConfig(config, tlsConfig, handler), nil
}

// NewWithTLSConfig creates a Server around an already built TLS
// configuration. Logging is left as it is.
func NewWithTLSConfig(config *Config, tlsConfig *tls.Config, handler gemini.Handler) *Server {
	return &Server{
		config:      config,
		tlsConfig:   tlsConfig,
		handler:     handler,
		activeConns: make(map[string]net.Conn),
	}
}

// Start binds the listener and serves until ctx is cancelled or a shutdown
// signal arrives.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	cert := s.config.CertPath
	if s.config.GenerateCert {
		cert = "auto-generated (in-memory)"
	}
	logging.Info("Starting Gemini server",
		zap.String("addr", addr),
		zap.String("cert", cert),
		zap.String("log_level", s.config.LogLevel),
		zap.Duration("conn_timeout", s.config.ConnTimeout),
	)
	logging.Info("TLS Configuration",
		zap.Any("tls_info", certs.GetTLSInfo(s.tlsConfig)),
	)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	logging.Info("Server listening for connections",
		zap.String("addr", listener.Addr().String()),
	)

	var ad *discovery.Advertiser
	if s.config.MDNS {
		ad, err = discovery.Advertise(discovery.Advertisement{
			Instance: s.config.MDNSInstance,
			Port:     listener.Addr().(*net.TCPAddr).Port,
			Version:  version.Version,
		})
		if err != nil {
			// The capsule is still reachable by address
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			logging.Info("Advertising capsule over mDNS", zap.String("service", discovery.ServiceType))
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Serve(listener)
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Info("Shutdown signal received, stopping server...")
		ad.Shutdown()
		return s.Shutdown(context.Background())
	})

	return g.Wait()
}

// Serve accepts connections on listener until it is closed. Each
// connection runs in its own goroutine; nothing that happens on one
// connection can stop the loop.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Addr returns the listener address, or nil before Serve is called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// handleConnection runs handshake, request, response and close for a single
// transport connection.
func (s *Server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()

	s.mu.Lock()
	s.activeConns[remoteAddr] = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.activeConns, remoteAddr)
		s.mu.Unlock()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Recovered panic in connection handler",
				zap.String("remote_addr", remoteAddr),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	logging.LogConnection(remoteAddr, "connection_accepted")

	engine := tlsengine.New(conn, s.tlsConfig)
	defer func() {
		if err := engine.Close(); err != nil {
			logging.Debug("Close sequence incomplete",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
		}
	}()

	if s.config.ConnTimeout > 0 {
		_ = engine.SetDeadline(time.Now().Add(s.config.ConnTimeout))
	}

	// Faults are logged by the engine
	if err := engine.AdvanceHandshake(context.Background()); err != nil {
		return
	}
	if engine.State() != tlsengine.StateEstablished {
		return
	}

	req, err := gemini.ReadRequest(engine)
	if err != nil {
		s.rejectRequest(engine, err)
		return
	}

	logging.LogRequest(remoteAddr, req.URL.String())
	s.respond(engine, req)
}

// rejectRequest logs why no request could be assembled and, when
// configured, tells the client before the connection closes.
func (s *Server) rejectRequest(engine *tlsengine.Engine, err error) {
	remoteAddr := engine.RemoteAddr()

	var malformed *gemini.MalformedRequestError
	var invalid *gemini.InvalidURLError

	switch {
	case errors.Is(err, gemini.ErrPeerClosed):
		logging.Debug("Peer closed before sending a request", zap.String("remote_addr", remoteAddr))
		return
	case errors.Is(err, gemini.ErrRequestTooShort):
		logging.Warn("Request too short", zap.String("remote_addr", remoteAddr))
	case errors.As(err, &malformed):
		logging.Warn("Malformed request",
			zap.String("remote_addr", remoteAddr),
			zap.Int("length", len(malformed.Raw)),
			zap.Bool("too_long", malformed.TooLong),
		)
		logging.LogRawBytes("Malformed request bytes", malformed.Raw)
	case errors.As(err, &invalid):
		logging.Warn("Invalid request URL",
			zap.String("remote_addr", remoteAddr),
			zap.String("raw", invalid.Raw),
			zap.Error(invalid.Err),
		)
	default:
		logging.Error("Failed to read request",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return
	}

	if s.config.RejectMalformed {
		header := gemini.Header{Status: gemini.StatusBadRequest, Meta: "bad request"}
		if _, err := gemini.WriteResponse(engine, header, nil); err != nil {
			logging.Debug("Failed to send bad request status",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
		}
	}
}

// respond asks the handler for content and streams it to the client.
func (s *Server) respond(engine *tlsengine.Engine, req *gemini.Request) {
	remoteAddr := engine.RemoteAddr()

	resp, err := s.handler.ServeGemini(req)
	if err == nil && resp == nil {
		err = errors.New("handler returned no response")
	}
	if err != nil {
		logging.Error("Handler failed",
			zap.String("remote_addr", remoteAddr),
			zap.String("url", req.Raw),
			zap.Error(err),
		)
		resp = gemini.StatusResponse(gemini.StatusTemporaryFailure, "temporary failure")
	}
	if resp.Body != nil {
		defer resp.Body.Close()
	}

	n, err := gemini.WriteResponse(engine, resp.Header, resp.Body)
	if err != nil {
		var bodyErr *gemini.BodySourceError
		if errors.As(err, &bodyErr) {
			logging.Error("Body source failed",
				zap.String("remote_addr", remoteAddr),
				zap.Int64("written", bodyErr.Written),
				zap.Error(bodyErr.Err),
			)
			return
		}
		logging.Error("Failed to send response",
			zap.String("remote_addr", remoteAddr),
			zap.Int64("written", n),
			zap.Error(err),
		)
		return
	}

	logging.LogResponse(remoteAddr, int(resp.Header.Status), resp.Header.Meta, n)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}

	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	case <-time.After(10 * time.Second):
		logging.Warn("Shutdown timeout after 10 seconds, forcing close")
	}

	logging.Sync()

	return nil
}

// ActiveConnections returns the number of connections being served
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

// generateAndLoadCert generates a self-signed certificate and returns a TLS
// configuration using it. The key is kept in memory only.
func generateAndLoadCert(config *Config) (*tls.Config, error) {
	params := certs.DefaultCertParams()
	if len(config.Hostnames) > 0 {
		params.CommonName = config.Hostnames[0]
		params.Hostnames = config.Hostnames
	}

	logging.Info("Generating certificate with parameters",
		zap.String("CN", params.CommonName),
		zap.Strings("SANs", params.Hostnames),
		zap.Int("valid_days", params.ValidDays),
	)

	serverCert, err := certs.GenerateSelfSigned(params)
	if err != nil {
		return nil, err
	}

	logging.Info("Certificate generated successfully",
		zap.String("CN", serverCert.Certificate.Subject.CommonName),
		zap.Time("not_before", serverCert.Certificate.NotBefore),
		zap.Time("not_after", serverCert.Certificate.NotAfter),
	)

	return certs.NewTLSConfigFromMemory(serverCert.CertPEM, serverCert.KeyPEM, config.Protocols)
}
