// Package middleware provides the HTTP middleware chain for the bridge
// server: fixed-policy CORS, request ID assignment, panic recovery, and
// request logging with metrics.
//
// The CORS policy is deliberately not configurable. The bridge fronts a
// local inference provider for a known set of callers (editor webviews
// and the fixed remote frontends), so the allow-list is compiled in.
package middleware
