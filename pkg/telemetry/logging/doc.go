// Package logging provides the explicitly constructed structured logger
// used throughout Callisto.
//
// The daemon builds one Logger at startup, passes its slog handle into
// every component at construction, and calls Shutdown during teardown.
// Credential material (tunnel auth tokens, bearer headers) is redacted
// before records reach the output stream.
package logging
