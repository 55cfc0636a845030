package certs

import (
	"crypto/tls"

	"github.com/muurk/gemd/internal/logging"
	"go.uber.org/zap"
)

// DefaultProtocols is the ALPN list advertised to clients. Only "gemini" is
// served; the others are advertised for compatibility with clients that
// insist on a match.
var DefaultProtocols = []string{"gemini", "h2", "http/1.1"}

// NewTLSConfig loads a PEM certificate chain and private key from disk and
// returns the shared server configuration.
func NewTLSConfig(certPath, keyPath string, protocols []string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, &CertificateError{Operation: "load", Path: certPath, Err: err}
	}

	logging.Info("TLS configuration created from files",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
	)

	return buildGeminiTLSConfig(cert, protocols), nil
}

// NewTLSConfigFromMemory creates a TLS configuration from in-memory PEM data.
// This is used when the certificate is generated at startup.
func NewTLSConfigFromMemory(certPEM, keyPEM []byte, protocols []string) (*tls.Config, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, &CertificateError{Operation: "load_memory", Err: err}
	}

	logging.Info("TLS configuration created from in-memory certificate",
		zap.String("source", "auto-generated"),
	)

	return buildGeminiTLSConfig(cert, protocols), nil
}

// buildGeminiTLSConfig creates the configuration shared by every connection.
// It must not be mutated after the server starts.
func buildGeminiTLSConfig(cert tls.Certificate, protocols []string) *tls.Config {
	if len(protocols) == 0 {
		protocols = DefaultProtocols
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},

		// Gemini requires TLS 1.2 or higher
		MinVersion: tls.VersionTLS12,

		NextProtos: append([]string(nil), protocols...),

		// Clients authenticate with self-signed certificates, if at all
		ClientAuth: tls.RequestClientCert,
	}
}

// GetTLSInfo returns human-readable TLS configuration information
func GetTLSInfo(config *tls.Config) map[string]interface{} {
	return map[string]interface{}{
		"min_version": tls.VersionName(config.MinVersion),
		"alpn":        config.NextProtos,
		"num_certs":   len(config.Certificates),
		"client_auth": config.ClientAuth.String(),
	}
}
