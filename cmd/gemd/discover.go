package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/gemd/internal/discovery"
	"github.com/muurk/gemd/internal/ui"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List Gemini capsules advertised on the local network",
	Long: `Browse mDNS for _gemini._tcp services and print their gemini:// URLs.

Press q to stop scanning early and show what has been found so far.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner := discovery.NewScanner()
		scanner.Timeout = discoverTimeout

		out := cmd.OutOrStdout()
		capsules, err := ui.RunScan(cmd.Context(),
			ui.ScanLabel(discovery.ServiceType, discoverTimeout),
			scanner.ScanForCapsules, out)

		p := ui.NewPrinter(out)
		if err != nil {
			p.PrintFailure("Scan failed", err, []string{
				"mDNS needs a multicast-capable network interface",
				"Firewalls often block UDP port 5353",
			})
			return err
		}

		p.PrintCapsules(capsules)
		return nil
	},
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", discovery.DefaultScanTimeout, "How long to listen for advertisements")
}
