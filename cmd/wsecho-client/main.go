// Wsecho-client talks to wsecho servers.
//
// It sends messages over a WebSocket connection and checks that every echo
// matches what was sent, and it can browse the local network for servers
// that advertise themselves over mDNS.
//
// Usage:
//
//	wsecho-client send [flags] message...
//	wsecho-client discover [flags]
//
// Set WSECHO_LOG_LEVEL to see log output alongside the client output.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wsecho/internal/logging"
	"github.com/muurk/wsecho/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wsecho-client",
	Short: "WebSocket echo client",
	Long: `A client for wsecho servers.

Sends messages and verifies the echoes, or discovers servers on the local
network over mDNS.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.InitializeFromEnv()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "wsecho-client %s\n", version.Full())
	},
}
