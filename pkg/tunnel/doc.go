// Package tunnel orchestrates the bridge lifecycle: binding the local
// proxy server, provisioning a public tunnel against it through the
// local tunnel agent, and tearing both down again. The Manager is the
// sole owner of the proxy instance and the tunnel handle.
package tunnel
