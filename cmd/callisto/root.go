package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "callisto",
	Short: "Callisto - local inference bridge",
	Long: `Callisto bridges a locally hosted inference provider to a remote
caller through an outbound tunnel.

It runs a loopback-only proxy on a fixed port in front of the provider,
provisions a public tunnel against that port through the local tunnel
agent, and forwards OpenAI-compatible API traffic both ways. The machine
never opens an inbound port; external reachability comes exclusively
from the tunnel.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
