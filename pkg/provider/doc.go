// Package provider is the client for the locally hosted inference
// provider. It lists models, validates chat completion requests, and
// parses the provider's server-sent-event response stream into typed
// chunks.
package provider
