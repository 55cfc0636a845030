package certs

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// CertificateError represents a failure while generating, loading or
// writing certificate material.
type CertificateError struct {
	// Operation is the step that failed (e.g. "generate_key", "load")
	Operation string
	// Path is the file involved, if any
	Path string
	// Err is the underlying error
	Err error
}

func (e *CertificateError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("certificate %s failed for %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("certificate %s failed: %v", e.Operation, e.Err)
}

func (e *CertificateError) Unwrap() error {
	return e.Err
}

// CertParams holds parameters for generating a self-signed server certificate.
type CertParams struct {
	// CommonName is the CN field (default: localhost)
	CommonName string
	// Organization is the O field (default: gemd)
	Organization string
	// Hostnames are added as DNS SANs; entries that parse as IPs become IP SANs
	Hostnames []string
	// ValidDays is certificate validity in days (default: 3650)
	ValidDays int
	// KeyBits is the RSA modulus size (default: 2048)
	KeyBits int
}

// DefaultCertParams returns parameters suitable for a capsule served on the
// loopback interface.
func DefaultCertParams() CertParams {
	return CertParams{
		CommonName:   "localhost",
		Organization: "gemd",
		Hostnames:    []string{"localhost", "127.0.0.1", "::1"},
		ValidDays:    3650,
		KeyBits:      2048,
	}
}

// ServerCert represents a generated server certificate.
type ServerCert struct {
	// CertPEM is the certificate in PEM format
	CertPEM []byte
	// KeyPEM is the private key in PEM format
	KeyPEM []byte
	// Certificate is the parsed x509 certificate
	Certificate *x509.Certificate
}

// GenerateSelfSigned creates a self-signed certificate. Gemini clients pin
// server certificates on first use, so no CA is involved.
func GenerateSelfSigned(params CertParams) (*ServerCert, error) {
	defaults := DefaultCertParams()
	if params.CommonName == "" {
		params.CommonName = defaults.CommonName
	}
	if params.Organization == "" {
		params.Organization = defaults.Organization
	}
	if params.ValidDays <= 0 {
		params.ValidDays = defaults.ValidDays
	}
	if params.KeyBits <= 0 {
		params.KeyBits = defaults.KeyBits
	}
	if len(params.Hostnames) == 0 {
		params.Hostnames = []string{params.CommonName}
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, params.KeyBits)
	if err != nil {
		return nil, &CertificateError{Operation: "generate_key", Err: err}
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, &CertificateError{Operation: "generate_serial", Err: err}
	}

	notBefore := time.Now().UTC().Add(-time.Hour)
	notAfter := notBefore.AddDate(0, 0, params.ValidDays)

	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{params.Organization},
			CommonName:   params.CommonName,
		},
		NotBefore: notBefore,
		NotAfter:  notAfter,

		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},

		BasicConstraintsValid: true,
		IsCA:                  false,
	}
	addSANs(&template, params.Hostnames)

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, &CertificateError{Operation: "create_certificate", Err: err}
	}

	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, &CertificateError{Operation: "parse_certificate", Err: err}
	}

	certPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "CERTIFICATE",
		Bytes: certDER,
	})

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	return &ServerCert{
		CertPEM:     certPEM,
		KeyPEM:      keyPEM,
		Certificate: cert,
	}, nil
}

// WriteFiles writes the certificate and key as PEM files. The key file is
// created with owner-only permissions.
func (sc *ServerCert) WriteFiles(certPath, keyPath string) error {
	for _, p := range []string{certPath, keyPath} {
		if dir := filepath.Dir(p); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return &CertificateError{Operation: "write", Path: p, Err: err}
			}
		}
	}
	if err := os.WriteFile(certPath, sc.CertPEM, 0644); err != nil {
		return &CertificateError{Operation: "write", Path: certPath, Err: err}
	}
	if err := os.WriteFile(keyPath, sc.KeyPEM, 0600); err != nil {
		return &CertificateError{Operation: "write", Path: keyPath, Err: err}
	}
	return nil
}

func addSANs(template *x509.Certificate, hostnames []string) {
	for _, h := range hostnames {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
			continue
		}
		template.DNSNames = append(template.DNSNames, h)
	}
}
