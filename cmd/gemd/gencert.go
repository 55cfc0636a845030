package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/gemd/internal/certs"
	"github.com/muurk/gemd/internal/ui"
)

var gencertFlags struct {
	certPath  string
	keyPath   string
	hostnames []string
	validDays int
}

var gencertCmd = &cobra.Command{
	Use:   "gencert",
	Short: "Generate a self-signed certificate and key",
	Long: `Generate a self-signed RSA certificate and key as PEM files.

Gemini clients pin server certificates on first use, so a self-signed
certificate is the normal choice. Keep the files: a new certificate on every
start makes clients warn about a changed identity.`,
	Example: `  gemd gencert --host example.org --cert test.pem --key test.key`,
	RunE: func(cmd *cobra.Command, args []string) error {
		params := certs.DefaultCertParams()
		if len(gencertFlags.hostnames) > 0 {
			params.CommonName = gencertFlags.hostnames[0]
			params.Hostnames = gencertFlags.hostnames
		}
		params.ValidDays = gencertFlags.validDays

		p := ui.NewPrinter(cmd.OutOrStdout())
		p.PrintHeader("Certificate generation", "gemd gencert", []ui.Field{
			{Key: "Common name", Value: params.CommonName},
			{Key: "Hostnames", Value: strings.Join(params.Hostnames, ", ")},
			{Key: "Valid days", Value: strconv.Itoa(params.ValidDays)},
		})

		sc, err := certs.GenerateSelfSigned(params)
		if err != nil {
			p.PrintFailure("Certificate generation failed", err, nil)
			return err
		}
		if err := sc.WriteFiles(gencertFlags.certPath, gencertFlags.keyPath); err != nil {
			p.PrintFailure("Could not write certificate files", err, []string{
				"Check that the output directory exists and is writable",
			})
			return err
		}

		p.PrintSuccess("Certificate written", []ui.Field{
			{Key: "Certificate", Value: gencertFlags.certPath},
			{Key: "Private key", Value: gencertFlags.keyPath},
			{Key: "Expires", Value: sc.Certificate.NotAfter.Format("2006-01-02")},
		})
		return nil
	},
}

func init() {
	f := gencertCmd.Flags()
	f.StringVar(&gencertFlags.certPath, "cert", "test.pem", "Output path for the certificate")
	f.StringVar(&gencertFlags.keyPath, "key", "test.key", "Output path for the private key")
	f.StringSliceVar(&gencertFlags.hostnames, "host", nil, "Hostnames or IPs for the certificate (repeatable, default: localhost)")
	f.IntVar(&gencertFlags.validDays, "days", 3650, "Validity in days")
}
