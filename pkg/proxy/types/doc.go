// Package types defines the wire shapes the bridge itself originates:
// proxy_error bodies with discriminant codes, and the minimal chat
// completion view the handlers inspect before forwarding. Provider
// payloads are otherwise passed through untouched.
package types
