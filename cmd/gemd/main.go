// Gemd is a minimal server for the Gemini protocol.
//
// It serves one fixed resource over TLS on port 1965, one request per
// connection. Settings come from a YAML config file and can be overridden
// with flags.
//
// Usage:
//
//	gemd serve [flags]
//	gemd gencert [flags]
//	gemd discover [flags]
//
// See 'gemd <command> --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/gemd/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "gemd",
	Short: "Minimal Gemini server",
	Long: `A minimal server for the Gemini protocol.

Each connection carries exactly one request: a CRLF-terminated URL sent over
TLS, answered with a status line and a body, then closed.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/gemd/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(gencertCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gemd %s\n", version.Full())
	},
}
