// Package handlers implements the bridge's two request paths: the
// validated chat completion handler, with its connectivity-probe model
// substitution, and the generic forwarder that relays everything else
// to the local provider with /v1 path normalization and unbuffered
// response streaming.
package handlers
