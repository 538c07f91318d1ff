package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wsecho/internal/discovery"
	"github.com/muurk/wsecho/internal/ui"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find wsecho servers on the local network",
	Long: `Browse for wsecho servers advertising over mDNS.

Servers advertise only when started with --discovery.`,
	Example: `  # Browse for 5 seconds (default)
  wsecho-client discover

  # Longer browse for busy networks
  wsecho-client discover --timeout 15s`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", discovery.DefaultScanTimeout, "How long to browse")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	p := ui.NewPrinter(cmd.OutOrStdout())

	scanner := discovery.NewScanner()
	scanner.Timeout = discoverTimeout

	services, err := scanner.Scan(cmd.Context())
	if err != nil {
		p.Result(ui.NewFailureResult("Discovery failed", err,
			"Multicast must be allowed on this interface (UDP 5353)"))
		return err
	}

	if len(services) == 0 {
		p.Result(ui.NewFailureResult(fmt.Sprintf("No servers found in %s", discoverTimeout), nil,
			"Start the server with --discovery",
			"Client and server must share a network segment",
			"Try a longer --timeout"))
		return nil
	}

	p.Table([]string{"INSTANCE", "URL", "HOST", "VERSION"}, serviceRows(services))
	return nil
}

func serviceRows(services []*discovery.Service) [][]string {
	rows := make([][]string, 0, len(services))
	for _, svc := range services {
		rows = append(rows, []string{svc.Instance, svc.URL(), svc.Hostname, svc.GetMetadata("version")})
	}
	return rows
}
