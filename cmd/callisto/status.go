package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/callisto/pkg/cli"
	"mercator-hq/callisto/pkg/config"
	"mercator-hq/callisto/pkg/provider"
	"mercator-hq/callisto/pkg/proxy"
)

var statusFlags struct {
	format string
}

// bridgeStatus is what the status command reports. The full tunnel
// status lives inside the daemon; from outside we can only observe the
// listener and the provider.
type bridgeStatus struct {
	BridgeListening   bool     `json:"bridge_listening"`
	BridgeAddr        string   `json:"bridge_addr"`
	ProviderReachable bool     `json:"provider_reachable"`
	ProviderURL       string   `json:"provider_url"`
	Models            []string `json:"models"`
}

func (s bridgeStatus) String() string {
	state := "stopped"
	if s.BridgeListening {
		state = "listening"
	}
	providerState := "unreachable"
	if s.ProviderReachable {
		providerState = fmt.Sprintf("reachable (%d models)", len(s.Models))
	}
	return fmt.Sprintf("bridge: %s on %s\nprovider: %s at %s", state, s.BridgeAddr, providerState, s.ProviderURL)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show bridge status",
	Long: `Show whether the bridge proxy is listening on its fixed port and
whether the local inference provider is reachable.`,
	RunE: showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusFlags.format, "format", "f", "text", "output format (text, json)")
}

func showStatus(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(statusFlags.format))
	if err != nil {
		return cli.NewCommandError("status", err)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	status := bridgeStatus{
		BridgeAddr:  fmt.Sprintf("127.0.0.1:%d", proxy.DefaultPort),
		ProviderURL: cfg.Bridge.ProviderURL,
	}

	// A successful connect means some process holds the bridge port;
	// with the fixed single-instance port that is the bridge.
	conn, err := net.DialTimeout("tcp", status.BridgeAddr, 2*time.Second)
	if err == nil {
		status.BridgeListening = true
		_ = conn.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := provider.NewClient(provider.ClientConfig{BaseURL: cfg.Bridge.ProviderURL})
	for _, m := range client.Models(ctx) {
		status.Models = append(status.Models, m.ID)
	}
	status.ProviderReachable = len(status.Models) > 0

	return formatter.FormatTo(os.Stdout, status)
}
