package config

import (
	"fmt"
	"time"
)

// CurrentVersion is the config file schema version.
const CurrentVersion = 1

// ServerFile represents the entire server configuration file.
// Command-line flags take precedence over values stored here.
type ServerFile struct {
	Version int    `yaml:"version"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`

	// CertPath and KeyPath name the PEM certificate chain and private key
	CertPath string `yaml:"cert,omitempty"`
	KeyPath  string `yaml:"key,omitempty"`
	// GenerateCert creates a self-signed in-memory certificate when no files are given
	GenerateCert bool `yaml:"generate_cert"`
	// Hostnames are the SANs of the generated certificate
	Hostnames []string `yaml:"hostnames,omitempty"`
	// Protocols are the ALPN identifiers, in preference order
	Protocols []string `yaml:"protocols,omitempty"`

	// Content is the resource served for every request
	Content string `yaml:"content,omitempty"`
	// MIME overrides the type derived from Content
	MIME string `yaml:"mime,omitempty"`

	// ConnTimeout is the per-connection I/O deadline, 0 disables it
	ConnTimeout Duration `yaml:"conn_timeout"`
	// Reject answers malformed requests with status 59 instead of closing silently
	Reject bool `yaml:"reject_malformed"`

	LogLevel string `yaml:"log_level,omitempty"`
	MDNS     *MDNS  `yaml:"mdns,omitempty"`
}

// MDNS holds the zeroconf advertisement settings.
type MDNS struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance,omitempty"` // Service instance name (default: hostname)
}

// Duration is a time.Duration that reads and writes as "30s" in YAML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// NewServerFile creates a ServerFile with default values.
func NewServerFile() *ServerFile {
	return &ServerFile{
		Version:      CurrentVersion,
		Host:         "127.0.0.1",
		Port:         1965,
		GenerateCert: true,
		Protocols:    []string{"gemini", "h2", "http/1.1"},
		ConnTimeout:  Duration{30 * time.Second},
		LogLevel:     "info",
		MDNS:         &MDNS{Enabled: false},
	}
}

// Validate checks values that would otherwise fail late at startup.
func (f *ServerFile) Validate() error {
	if f.Port < 0 || f.Port > 65535 {
		return fmt.Errorf("port %d out of range", f.Port)
	}
	if (f.CertPath == "") != (f.KeyPath == "") {
		return fmt.Errorf("cert and key must be set together")
	}
	if f.CertPath == "" && !f.GenerateCert {
		return fmt.Errorf("no certificate configured and generate_cert is false")
	}
	if f.ConnTimeout.Duration < 0 {
		return fmt.Errorf("conn_timeout must not be negative")
	}
	return nil
}
