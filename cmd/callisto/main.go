// Callisto is a local bridge that exposes a locally hosted inference
// provider to a remote caller through an outbound tunnel.
//
// It runs a loopback-only proxy in front of the provider, provisions a
// public tunnel against it via the local tunnel agent, and keeps both
// alive until told otherwise.
//
// Usage:
//
//	# Start the bridge daemon with default configuration
//	callisto run
//
//	# Start with a custom configuration file
//	callisto run --config /path/to/config.yaml
//
//	# Inspect a running bridge
//	callisto status
//
//	# Show version information
//	callisto version
package main

func main() {
	Execute()
}
