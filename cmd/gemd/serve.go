package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/gemd/internal/config"
	"github.com/muurk/gemd/internal/content"
	"github.com/muurk/gemd/internal/discovery"
	"github.com/muurk/gemd/internal/server"
	"github.com/muurk/gemd/internal/ui"
)

var serveFlags struct {
	certPath        string
	keyPath         string
	host            string
	port            int
	contentPath     string
	mimeType        string
	logLevel        string
	connTimeout     time.Duration
	rejectMalformed bool
	mdns            bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Gemini server",
	Long: `Start the Gemini server.

A self-signed certificate is generated in memory unless --cert and --key are
given. Every request is answered with the resource named by --content, or a
built-in page when none is set.`,
	Example: `  # Serve the built-in page on 127.0.0.1:1965 with a generated certificate
  gemd serve

  # Serve a file with your own certificate on all interfaces
  gemd serve --host 0.0.0.0 --cert test.pem --key test.key --content index.gmi

  # Answer malformed requests with status 59 and advertise over mDNS
  gemd serve --reject-malformed --mdns --log-level debug`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.certPath, "cert", "", "Path to PEM certificate chain (optional, will auto-generate if not provided)")
	f.StringVar(&serveFlags.keyPath, "key", "", "Path to PEM private key (optional, will auto-generate if not provided)")
	f.StringVar(&serveFlags.host, "host", "", "Listen address (default from config: 127.0.0.1)")
	f.IntVar(&serveFlags.port, "port", 0, "Listen port (default from config: 1965)")
	f.StringVar(&serveFlags.contentPath, "content", "", "File served for every request (default: built-in page)")
	f.StringVar(&serveFlags.mimeType, "mime", "", "MIME type of the served file (default: derived from extension)")
	f.StringVar(&serveFlags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.DurationVar(&serveFlags.connTimeout, "conn-timeout", 0, "Per-connection I/O deadline (default from config: 30s)")
	f.BoolVar(&serveFlags.rejectMalformed, "reject-malformed", false, "Answer malformed requests with status 59")
	f.BoolVar(&serveFlags.mdns, "mdns", false, "Advertise the capsule over mDNS")
}

func runServe(cmd *cobra.Command, args []string) error {
	file, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if file.MDNS == nil {
		file.MDNS = &config.MDNS{}
	}

	flags := cmd.Flags()
	if (serveFlags.certPath != "") != (serveFlags.keyPath != "") {
		return fmt.Errorf("both --cert and --key must be provided together, or neither (will auto-generate)")
	}
	if serveFlags.certPath != "" {
		file.CertPath = serveFlags.certPath
		file.KeyPath = serveFlags.keyPath
	}
	if flags.Changed("host") {
		file.Host = serveFlags.host
	}
	if flags.Changed("port") {
		file.Port = serveFlags.port
	}
	if flags.Changed("content") {
		file.Content = serveFlags.contentPath
	}
	if flags.Changed("mime") {
		file.MIME = serveFlags.mimeType
	}
	if flags.Changed("log-level") {
		file.LogLevel = serveFlags.logLevel
	}
	if flags.Changed("conn-timeout") {
		file.ConnTimeout.Duration = serveFlags.connTimeout
	}
	if flags.Changed("reject-malformed") {
		file.Reject = serveFlags.rejectMalformed
	}
	if flags.Changed("mdns") {
		file.MDNS.Enabled = serveFlags.mdns
	}

	if err := file.Validate(); err != nil {
		return err
	}

	certProvided := file.CertPath != ""
	if certProvided {
		for _, p := range []string{file.CertPath, file.KeyPath} {
			if _, err := os.Stat(p); os.IsNotExist(err) {
				return fmt.Errorf("file not found: %s", p)
			}
		}
	}

	cfg := &server.Config{
		Host:            file.Host,
		Port:            file.Port,
		CertPath:        file.CertPath,
		KeyPath:         file.KeyPath,
		GenerateCert:    !certProvided,
		Hostnames:       file.Hostnames,
		Protocols:       file.Protocols,
		LogLevel:        file.LogLevel,
		ConnTimeout:     file.ConnTimeout.Duration,
		RejectMalformed: file.Reject,
		MDNS:            file.MDNS.Enabled,
		MDNSInstance:    file.MDNS.Instance,
	}

	ui.NewPrinter(cmd.OutOrStdout()).PrintHeader("Gemini server", "gemd serve", serveFields(cfg, file))

	srv, err := server.New(cfg, content.NewStatic(file.Content, file.MIME))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(cmd.Context())
}

func serveFields(cfg *server.Config, file *config.ServerFile) []ui.Field {
	cert := cfg.CertPath
	if cfg.GenerateCert {
		cert = "auto-generated (in-memory)"
	}
	resource := file.Content
	if resource == "" {
		resource = "built-in page"
	}

	fields := []ui.Field{
		{Key: "Listen", Value: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))},
		{Key: "Certificate", Value: cert},
		{Key: "Content", Value: resource},
		{Key: "Timeout", Value: cfg.ConnTimeout.String()},
	}
	if cfg.RejectMalformed {
		fields = append(fields, ui.Field{Key: "Malformed", Value: "answered with 59"})
	}
	if cfg.MDNS {
		fields = append(fields, ui.Field{Key: "mDNS", Value: "advertising " + discovery.ServiceType})
	}
	return fields
}
