// Wsecho-server is a WebSocket echo server.
//
// It performs the RFC 6455 opening handshake over plain TCP or TLS and echoes
// every data frame back to the client, answers pings and completes the close
// handshake. Frames can optionally be captured to JSON lines for analysis.
//
// Usage:
//
//	wsecho-server server [flags]
//
// See 'wsecho-server server --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wsecho/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var configFile string

var rootCmd = &cobra.Command{
	Use:   "wsecho-server",
	Short: "WebSocket echo server",
	Long: `A standalone WebSocket echo server.

The server owns the whole connection: it reads the HTTP upgrade request,
negotiates the handshake, parses frames incrementally as bytes arrive and
writes the echoes back with flow control.

Configuration is read from wsecho.yaml (see 'wsecho-server config'),
WSECHO_* environment variables and flags, in increasing priority.`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./wsecho.yaml, then the user config dir)")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "wsecho-server %s\n", version.Full())
	},
}
