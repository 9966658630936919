// Package proxy implements the bridge's HTTP server: a loopback-only
// listener on a fixed port that fronts the local inference provider.
// Chat completion requests are validated and may have their model
// rewritten for the remote caller's connectivity probe; all other
// requests are forwarded verbatim with /v1 path normalization.
//
// The server is owned by the tunnel manager, which binds it before
// provisioning the tunnel and stops it on teardown. It never binds a
// non-loopback interface: external reachability comes exclusively from
// the tunnel.
package proxy
