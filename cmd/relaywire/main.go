package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "relaywire",
		Short: "A namespaced real-time event gateway",
		Long: `Relaywire is a real-time, bidirectional event gateway.

Browser clients hold one persistent WebSocket each; traffic is organized
into independent namespaces and relayed between clients and the server:

  • Origin allow-list admission before the transport upgrade
  • Namespace multiplexing over a single endpoint
  • Broadcast and unicast event routing per namespace
  • Prometheus metrics and graceful shutdown built in`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
